package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivirity/busimulator/model"
)

func TestPassengerBoardAlightLifecycle(t *testing.T) {
	p := &model.Passenger{ID: 1, ArriveTime: 100, Origin: model.Trunk(1, model.PhaseArrived), Dest: model.Trunk(3, model.PhaseArrived)}
	assert.False(t, p.IsOnboard())
	assert.False(t, p.Completed())

	p.MarkBoarded(150)
	assert.True(t, p.IsOnboard())

	p.MarkAlighted(400, model.Trunk(3, model.PhaseArrived))
	assert.False(t, p.IsOnboard())
	assert.True(t, p.Completed())
}

func TestPassengerMarkBoardedBeforeArrivingPanics(t *testing.T) {
	p := &model.Passenger{ID: 1, ArriveTime: 100}
	assert.Panics(t, func() { p.MarkBoarded(50) })
}

func TestPassengerMarkAlightedWithoutBoardingPanics(t *testing.T) {
	p := &model.Passenger{ID: 1, ArriveTime: 100}
	assert.Panics(t, func() { p.MarkAlighted(200, model.Trunk(1, model.PhaseArrived)) })
}

func TestPassengerGetStatistics(t *testing.T) {
	p := &model.Passenger{
		ID:         1,
		ArriveTime: 0,
		Origin:     model.Trunk(1, model.PhaseArrived),
		Dest:       model.Trunk(2, model.PhaseArrived),
	}
	p.MarkBoarded(60)
	p.MarkAlighted(360, model.Trunk(2, model.PhaseArrived))
	p.AddBusWait(30)

	coord := func(model.Location) model.Coord { return model.Coord{} }
	p.GetStatistics(1.4, coord)

	assert.InDelta(t, 5.0, p.InVehicleTime, 1e-9)       // (360-60)/60
	assert.InDelta(t, 1.5, p.StationWaitTime, 1e-9)      // (60-0+30)/60
	assert.InDelta(t, 6.5, p.FullJourneyTime, 1e-9)      // in-vehicle + station wait (zero walking legs)
	require.NotNil(t, p.AlightTime)
}

func TestClonePassengersResetsProgress(t *testing.T) {
	p := &model.Passenger{ID: 1, ArriveTime: 0}
	p.MarkBoarded(10)
	p.MarkAlighted(20, model.Trunk(1, model.PhaseArrived))
	p.AddBusWait(5)

	clones := model.ClonePassengers([]*model.Passenger{p})
	require.Len(t, clones, 1)
	clone := clones[0]

	assert.Nil(t, clone.BoardTime)
	assert.Nil(t, clone.AlightTime)
	assert.Equal(t, 0, clone.BusWaitAccrued)
	assert.Equal(t, p.ID, clone.ID)

	// Original is untouched and the clone is an independent pointer.
	assert.NotNil(t, p.BoardTime)
	assert.NotSame(t, p, clone)
}
