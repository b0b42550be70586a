package lineconf_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivirity/busimulator/lineconf"
	"github.com/shivirity/busimulator/model"
)

func threeStationLine(mode lineconf.Mode) *lineconf.Line {
	stations := []*lineconf.Station{
		{ID: 1, Name: "A", Coord: model.Coord{Lat: 0, Lon: 0}, DistanceToNext: 1000, SpeedToNext: 10},
		{ID: 2, Name: "B", Coord: model.Coord{Lat: 0.01, Lon: 0}, DistanceToNext: 1000, SpeedToNext: 10},
		{ID: 3, Name: "C", Coord: model.Coord{Lat: 0.02, Lon: 0}},
	}
	return lineconf.NewLine(mode, stations)
}

func TestLineStationAndBranchLookup(t *testing.T) {
	line := threeStationLine(lineconf.ModeSingle)
	assert.Equal(t, 3, line.MaxStation())
	require.NotNil(t, line.Station(2))
	assert.Equal(t, "B", line.Station(2).Name)
	assert.Nil(t, line.Station(0))
	assert.Nil(t, line.Station(4))

	branch := &lineconf.SideBranch{AnchorMain: 1, BranchID: 1, Stops: []*lineconf.SideStop{{Order: 1}}}
	line.AddBranch(branch)
	assert.Same(t, branch, line.Branch(1, 1))
	assert.Nil(t, line.Branch(1, 2))
}

func TestLineEnqueueAndWaitingLen(t *testing.T) {
	line := threeStationLine(lineconf.ModeBaseline)
	line.Enqueue(model.Trunk(1, model.PhaseArrived), 101)
	line.Enqueue(model.Trunk(1, model.PhaseArrived), 102)
	assert.Equal(t, 2, line.WaitingLen(model.Trunk(1, model.PhaseArrived)))

	id, ok := line.Station(1).Dequeue()
	require.True(t, ok)
	assert.Equal(t, 101, id)
	assert.Equal(t, 1, line.WaitingLen(model.Trunk(1, model.PhaseArrived)))
}

func TestLineCloneResetsWaitingPoolsAndIsIndependent(t *testing.T) {
	line := threeStationLine(lineconf.ModeSingle)
	branch := &lineconf.SideBranch{AnchorMain: 1, BranchID: 1, Stops: []*lineconf.SideStop{{Order: 1}}}
	line.AddBranch(branch)
	line.Enqueue(model.Trunk(1, model.PhaseArrived), 1)
	line.Enqueue(model.SideStop(1, 1, 1, model.PhaseArrived), 2)

	clone := line.Clone()
	assert.Equal(t, 0, clone.WaitingLen(model.Trunk(1, model.PhaseArrived)))
	assert.Equal(t, 0, clone.WaitingLen(model.SideStop(1, 1, 1, model.PhaseArrived)))

	// Mutating the clone must not reach back into the original.
	clone.Enqueue(model.Trunk(2, model.PhaseArrived), 99)
	assert.Equal(t, 0, line.WaitingLen(model.Trunk(2, model.PhaseArrived)))
	assert.Equal(t, 1, line.WaitingLen(model.Trunk(1, model.PhaseArrived)))
}

func TestBuildArrivalStreamSortsByArriveTime(t *testing.T) {
	line := threeStationLine(lineconf.ModeBaseline)
	trips := []lineconf.RawTrip{
		{UpTimestampSeconds: 300, UpStation: 1, DownStation: 3},
		{UpTimestampSeconds: 100, UpStation: 2, DownStation: 3},
	}
	rng := rand.New(rand.NewSource(1))
	cfg := lineconf.JitterConfig{MaxStationWaitSeconds: 0, WalkSpeedMps: 1.4}
	nextID := 0
	out := lineconf.BuildArrivalStream(trips, line, cfg, rng, func() int { nextID++; return nextID })

	require.Len(t, out, 2)
	assert.LessOrEqual(t, out[0].ArriveTime, out[1].ArriveTime)
}

func TestBuildArrivalStreamResolvesSideBranchInMultiMode(t *testing.T) {
	line := threeStationLine(lineconf.ModeMulti)
	line.AddBranch(&lineconf.SideBranch{
		AnchorMain: 1,
		BranchID:   1,
		Stops:      []*lineconf.SideStop{{Order: 1, Coord: model.Coord{Lat: 5, Lon: 5}}},
		SpeedMps:   5,
	})
	trips := []lineconf.RawTrip{
		{UpTimestampSeconds: 0, UpStation: 1, DownStation: 2, UpCoord: model.Coord{Lat: 5, Lon: 5}},
	}
	rng := rand.New(rand.NewSource(1))
	cfg := lineconf.JitterConfig{MaxStationWaitSeconds: 0, WalkSpeedMps: 1.4}
	nextID := 0
	out := lineconf.BuildArrivalStream(trips, line, cfg, rng, func() int { nextID++; return nextID })

	require.Len(t, out, 1)
	assert.False(t, out[0].Origin.IsTrunk())
	assert.True(t, out[0].DivertedToSide)
}
