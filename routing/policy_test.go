package routing_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shivirity/busimulator/config"
	"github.com/shivirity/busimulator/lineconf"
	"github.com/shivirity/busimulator/model"
	"github.com/shivirity/busimulator/routing"
)

func twoStationLine() *lineconf.Line {
	stations := []*lineconf.Station{
		{ID: 1, Name: "A"},
		{ID: 2, Name: "B"},
	}
	return lineconf.NewLine(lineconf.ModeSingle, stations)
}

func consistWithDest(id int, destStation int) (*model.Consist, routing.DestLookup) {
	c := model.NewConsist(id, []int{id * 10}, 10, model.Trunk(1, model.PhaseArrived), model.Trunk(2, model.PhaseRunning))
	c.Board(id * 100)
	dest := func(passID int) model.Location { return model.Trunk(destStation, model.PhaseArrived) }
	return c, dest
}

func TestDecideBaselineStopsForAlighterOrWaitingPool(t *testing.T) {
	cfg := config.Default()
	p := routing.New(cfg, rand.New(rand.NewSource(1)))
	line := twoStationLine()

	c, dest := consistWithDest(1, 1) // alights at station 1
	d := p.DecideBaseline(c, 1, line, dest)
	assert.True(t, d.Stop)

	c2, dest2 := consistWithDest(2, 2) // alights elsewhere, no waiting pool
	d2 := p.DecideBaseline(c2, 1, line, dest2)
	assert.False(t, d2.Stop)

	line.Enqueue(model.Trunk(1, model.PhaseArrived), 999)
	d3 := p.DecideBaseline(c2, 1, line, dest2)
	assert.True(t, d3.Stop)
}

func TestDecideGroupSingleForcesStopForMustStopConsist(t *testing.T) {
	cfg := config.Default()
	p := routing.New(cfg, rand.New(rand.NewSource(1)))
	line := twoStationLine()

	c, dest := consistWithDest(1, 1)
	result := p.DecideGroupSingle([]*model.Consist{c}, 1, line, dest)
	assert.True(t, result[c.ID].Stop)
}

func TestDecideGroupSingleSkipsWhenAnotherConsistAlreadyWaiting(t *testing.T) {
	cfg := config.Default()
	p := routing.New(cfg, rand.New(rand.NewSource(1)))
	line := twoStationLine()
	line.Enqueue(model.Trunk(1, model.PhaseArrived), 500)

	waiting, destW := consistWithDest(1, 9)
	waiting.IsWaiting = true
	newcomer, destN := consistWithDest(2, 9)
	_ = destW

	result := p.DecideGroupSingle([]*model.Consist{waiting, newcomer}, 1, line, destN)
	assert.False(t, result[newcomer.ID].Stop)
}

func TestDecideSideStopNonReturningStopsForAlighter(t *testing.T) {
	cfg := config.Default()
	p := routing.New(cfg, rand.New(rand.NewSource(1)))
	line := twoStationLine()

	loc := model.SideStop(1, 1, 1, model.PhaseArrived)
	c := model.NewConsist(1, []int{10}, 10, model.Trunk(1, model.PhaseArrived), loc)
	c.Board(100)
	dest := func(passID int) model.Location { return loc }

	d := p.DecideSideStop(c, loc, false, line, dest, true)
	assert.True(t, d.Stop)
}

func TestDecideSideStopReturningStopsOnlyWhenFirstAndPoolNonEmpty(t *testing.T) {
	cfg := config.Default()
	p := routing.New(cfg, rand.New(rand.NewSource(1)))
	line := twoStationLine()
	line.AddBranch(&lineconf.SideBranch{AnchorMain: 1, BranchID: 1, Stops: []*lineconf.SideStop{{Order: 1}}})
	loc := model.SideStop(1, 1, 1, model.PhaseArrived)
	line.Enqueue(loc, 42)

	c := model.NewConsist(1, []int{10}, 10, loc, loc)
	c.IsReturning = true
	dest := func(passID int) model.Location { return model.Trunk(1, model.PhaseArrived) }

	assert.True(t, p.DecideSideStop(c, loc, false, line, dest, true).Stop)
	assert.False(t, p.DecideSideStop(c, loc, false, line, dest, false).Stop)
}

func TestMultiDownFirstStopsWhenConsistHasAlighter(t *testing.T) {
	cfg := config.Default()
	p := routing.New(cfg, rand.New(rand.NewSource(1)))
	line := twoStationLine()

	c, dest := consistWithDest(1, 1)
	noneOccupied := func(int) bool { return false }
	result := p.MultiDownFirst([]*model.Consist{c}, 1, line, dest, 0, noneOccupied)
	assert.True(t, result[c.ID].Stop)
	assert.Equal(t, 0, result[c.ID].Turn)
}

func TestMultiUpFirstDivertsTowardLargerWaitingPool(t *testing.T) {
	cfg := config.Default()
	p := routing.New(cfg, rand.New(rand.NewSource(1)))
	line := twoStationLine()
	line.AddBranch(&lineconf.SideBranch{AnchorMain: 1, BranchID: 1, Stops: []*lineconf.SideStop{{Order: 1}}})
	line.AddBranch(&lineconf.SideBranch{AnchorMain: 1, BranchID: 2, Stops: []*lineconf.SideStop{{Order: 1}}})
	line.Enqueue(model.SideStop(1, 1, 1, model.PhaseArrived), 1)
	line.Enqueue(model.SideStop(1, 2, 1, model.PhaseArrived), 2)
	line.Enqueue(model.SideStop(1, 2, 1, model.PhaseArrived), 3)

	c, dest := consistWithDest(1, 9) // no alighter, no side-destined onboard passenger
	noneOccupied := func(int) bool { return false }
	result := p.MultiUpFirst([]*model.Consist{c}, 1, line, dest, 0, noneOccupied)
	assert.Equal(t, 2, result[c.ID].Turn)
	assert.True(t, result[c.ID].CanReturnStop)
}

func TestMultiDownFirstSendsUncoveredBranchWhenOtherAlreadyOccupied(t *testing.T) {
	cfg := config.Default()
	p := routing.New(cfg, rand.New(rand.NewSource(1)))
	line := twoStationLine()

	c, dest := consistWithDest(1, 9) // no alighter, no side-destined onboard passenger, no waiting pools
	branch1Occupied := func(branch int) bool { return branch == 1 }
	result := p.MultiDownFirst([]*model.Consist{c}, 1, line, dest, 0, branch1Occupied)
	assert.Equal(t, 2, result[c.ID].Turn)
	assert.True(t, result[c.ID].CanReturnStop)
}
