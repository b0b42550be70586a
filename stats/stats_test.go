package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shivirity/busimulator/config"
	"github.com/shivirity/busimulator/model"
	"github.com/shivirity/busimulator/stats"
)

func completedPassenger(id int, inVehicle, busWaitSeconds, fullJourney, stationWait float64) *model.Passenger {
	boarded, alighted := 0, 1
	return &model.Passenger{
		ID:              id,
		BoardTime:       &boarded,
		AlightTime:      &alighted,
		InVehicleTime:   inVehicle,
		BusWaitAccrued:  int(busWaitSeconds),
		FullJourneyTime: fullJourney,
		StationWaitTime: stationWait,
	}
}

func TestComputeReturnsIncompletePenaltyWhenAnyPassengerUnfinished(t *testing.T) {
	cfg := config.Default()
	passengers := map[int]*model.Passenger{
		1: completedPassenger(1, 10, 60, 20, 5),
		2: {ID: 2}, // never alighted
	}
	summary := stats.Compute(cfg, passengers, nil, 50)
	assert.True(t, summary.Incomplete)
	assert.Equal(t, 500000000.0, summary.PowerConsumpConditionKWh)
	assert.Equal(t, 37.0, summary.AvgInVehicleMin)
	assert.Equal(t, 7.0, summary.AvgFullJourneyMin)
}

func TestComputeAveragesAcrossPassengers(t *testing.T) {
	cfg := config.Default()
	passengers := map[int]*model.Passenger{
		1: completedPassenger(1, 10, 60, 20, 5),
		2: completedPassenger(2, 20, 120, 30, 15),
	}
	summary := stats.Compute(cfg, passengers, map[int]*model.CabRecord{}, 50)

	assert.False(t, summary.Incomplete)
	assert.InDelta(t, 15.0, summary.AvgInVehicleMin, 1e-9)
	assert.InDelta(t, 1.5, summary.AvgBusWaitMin, 1e-9)
	assert.InDelta(t, 25.0, summary.AvgFullJourneyMin, 1e-9)
	assert.InDelta(t, 10.0, summary.AvgStationWaitMin, 1e-9)
	assert.Equal(t, 0.0, summary.MaxOccupancyRate)
	assert.Equal(t, 0.0, summary.AvgOccupancyRate)

	wantWage := 40 * cfg.DriverWageNew / 10000
	assert.InDelta(t, wantWage, summary.DriverWageWan, 1e-9)
}

func TestComputeUsesOldConstantsForBaselineMode(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "baseline"
	passengers := map[int]*model.Passenger{1: completedPassenger(1, 10, 0, 20, 5)}
	cabs := map[int]*model.CabRecord{1: {ID: 1, DistanceM: 1000}}

	summary := stats.Compute(cfg, passengers, cabs, 90)

	assert.InDelta(t, 1000*cfg.ConsumpSpeedOld, summary.PowerConsumpEqualSpeedKWh, 1e-9)
	assert.InDelta(t, 1000*cfg.ConsumpConditionOld, summary.PowerConsumpConditionKWh, 1e-9)
	assert.InDelta(t, 20*cfg.DriverWageOld/10000, summary.DriverWageWan, 1e-9)
}

func TestComputeOccupancyRatesKeyOnFirstDepartureWindow(t *testing.T) {
	cfg := config.Default()
	passengers := map[int]*model.Passenger{1: completedPassenger(1, 0, 0, 0, 0)}
	cabs := map[int]*model.CabRecord{
		// first departure inside the early window [6h, 8h)
		1: {ID: 1, DistanceM: 1000, DepartTime: []int{21700, 21800}, PassAtDep: []int{9, 9}},
		// first departure inside the noon window [10h, 12h)
		2: {ID: 2, DistanceM: 2000, DepartTime: []int{36100, 36200}, PassAtDep: []int{3, 5}},
	}

	summary := stats.Compute(cfg, passengers, cabs, 10)

	assert.InDelta(t, 0.9, summary.MaxOccupancyRate, 1e-9)
	assert.InDelta(t, 0.65, summary.AvgOccupancyRate, 1e-9)
	assert.InDelta(t, 0.9, summary.AvgOccupancyEarly, 1e-9)
	assert.InDelta(t, 0.4, summary.AvgOccupancyNoon, 1e-9)
	assert.Equal(t, 0.0, summary.AvgOccupancyLate)

	assert.InDelta(t, 3000*cfg.ConsumpSpeedNew, summary.PowerConsumpEqualSpeedKWh, 1e-9)
	assert.InDelta(t, 0.31*0.23*3000*cfg.ConsumpConditionNew, summary.CarbonEmissionG, 1e-9)
}

func TestComputeReturnsZeroSummaryForNoPassengers(t *testing.T) {
	cfg := config.Default()
	summary := stats.Compute(cfg, map[int]*model.Passenger{}, map[int]*model.CabRecord{}, 50)
	assert.Equal(t, stats.Summary{}, summary)
}
