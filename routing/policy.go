// Package routing implements the Routing Policy (spec §4.3): the per-stop
// stop/turn/return decisions, grounded on
// original_source/route_decide.py's route_decider for shape (group snapshot,
// must-stop/alternate-pool resolution, down-first/up-first skeletons) and on
// spec.md §4.3's prose for the exact multi-mode rules, which is more precise
// than the stubs in route_decide.py's earlier revisions.
package routing

import (
	"math/rand"
	"sort"

	"github.com/shivirity/busimulator/config"
	"github.com/shivirity/busimulator/lineconf"
	"github.com/shivirity/busimulator/model"
)

// DestLookup resolves a passenger id to its alighting Location.
type DestLookup = model.DestLookup

// Decision is the per-consist output of a routing pass (spec §4.3).
type Decision struct {
	Stop          bool
	Turn          int // 0 = trunk, 1/2 = branch
	CanReturnStop bool
}

// Policy evaluates stop/turn/return decisions for one or more consists
// co-located at a station.
type Policy struct {
	cfg config.Scenario
	rng *rand.Rand
}

// New builds a Policy. rng must be the engine's single seeded generator
// (Design Notes: "never consult a global generator").
func New(cfg config.Scenario, rng *rand.Rand) *Policy {
	return &Policy{cfg: cfg, rng: rng}
}

// DecideBaseline implements spec §4.3 "Baseline": dwell iff some on-board
// passenger alights here or the waiting pool is non-empty.
func (p *Policy) DecideBaseline(c *model.Consist, station int, line *lineconf.Line, dest DestLookup) Decision {
	stop := c.IsToStop(station, dest) || line.WaitingLen(model.Trunk(station, model.PhaseArrived)) > 0
	return Decision{Stop: stop}
}

// DecideGroupSingle implements spec §4.3 "Single-line modular (group
// decision)" over a group of consists newly arrived at, or already
// dwelling at, the same main station.
func (p *Policy) DecideGroupSingle(group []*model.Consist, station int, line *lineconf.Line, dest DestLookup) map[int]Decision {
	result := make(map[int]Decision, len(group))

	var alreadyWaiting, newlyArrived, mustStop []*model.Consist
	var alternates []*model.Consist

	for _, c := range group {
		if c.IsWaiting {
			alreadyWaiting = append(alreadyWaiting, c)
		} else {
			newlyArrived = append(newlyArrived, c)
		}
	}
	waitingPoolNonEmpty := line.WaitingLen(model.Trunk(station, model.PhaseArrived)) > 0
	hasWaitingConsist := len(alreadyWaiting) > 0

	for _, c := range newlyArrived {
		switch {
		case c.IsToStop(station, dest):
			result[c.ID] = Decision{Stop: true}
			mustStop = append(mustStop, c)
		case hasWaitingConsist:
			result[c.ID] = Decision{Stop: false}
		case !waitingPoolNonEmpty:
			result[c.ID] = Decision{Stop: false}
		default:
			alternates = append(alternates, c)
		}
	}

	if len(alternates) > 0 {
		absorbers := append(append([]*model.Consist{}, mustStop...), alreadyWaiting...)
		sumExisting, sumAlighters, totalCap := 0, 0, 0
		for _, c := range absorbers {
			sumExisting += c.PassCount()
			sumAlighters += c.StopPassNum(station, dest)
			totalCap += c.MaxCapacity()
		}
		waitingCount := line.WaitingLen(model.Trunk(station, model.PhaseArrived))
		estimated := sumExisting - sumAlighters + waitingCount
		threshold := float64(totalCap) * p.cfg.RateMaxStop

		if float64(estimated) < threshold {
			for _, c := range alternates {
				result[c.ID] = Decision{Stop: false}
			}
		} else {
			sort.Slice(alternates, func(i, j int) bool {
				return alternates[i].SumStationsToGo(station, dest) < alternates[j].SumStationsToGo(station, dest)
			})
			residual := float64(estimated) - threshold
			for _, c := range alternates {
				if residual <= 0 {
					result[c.ID] = Decision{Stop: false}
					continue
				}
				result[c.ID] = Decision{Stop: true}
				residual -= float64(c.RemainingCapacity())
			}
		}
	}

	return result
}

// sideDestinedCounts counts aboard passengers whose destination is branch 1
// or branch 2 off the given main station.
func sideDestinedCounts(c *model.Consist, mainStation int, dest DestLookup) (branch1, branch2 int) {
	for _, id := range c.AllPassengerIDs() {
		d := dest(id)
		if d.IsTrunk() || d.MainComponent() != mainStation {
			continue
		}
		if d.Branch == 1 {
			branch1++
		} else if d.Branch == 2 {
			branch2++
		}
	}
	return
}

// DecideSideStop implements spec §4.3's side-branch-stop rule shared by
// both the down-first and up-first variants: a not-returning consist stops
// iff it has an alighter here (the last side-stop also permits boarding up
// to capacity); a returning consist stops at an intermediate side-stop iff
// it is first to reach a non-empty pool and has capacity.
func (p *Policy) DecideSideStop(c *model.Consist, loc model.Location, isLastStop bool, line *lineconf.Line, dest DestLookup, firstReturningHere bool) Decision {
	if !c.IsReturning {
		hasAlighter := false
		for _, id := range c.AllPassengerIDs() {
			if dest(id) == loc {
				hasAlighter = true
				break
			}
		}
		stop := hasAlighter || (isLastStop && line.WaitingLen(loc) > 0 && c.RemainingCapacity() > 0)
		return Decision{Stop: stop}
	}
	stop := firstReturningHere && line.WaitingLen(loc) > 0 && c.RemainingCapacity() > 0
	return Decision{Stop: stop}
}

// MultiDownFirst implements spec §4.3's "Multi-mode (down-first rule)" for
// the main-line-station part of the decision. branchOccupied reports whether
// some other active consist is currently away on the given side branch off
// this station, so a consist with no aboard side-destined passengers and no
// waiting-pool asymmetry can still be sent to cover a branch nobody is
// currently serving.
func (p *Policy) MultiDownFirst(group []*model.Consist, station int, line *lineconf.Line, dest DestLookup, stoppedAlready int, branchOccupied func(branch int) bool) map[int]Decision {
	result := make(map[int]Decision, len(group))

	var returning, arrived []*model.Consist
	for _, c := range group {
		if c.IsReturning {
			returning = append(returning, c)
		} else {
			arrived = append(arrived, c)
		}
	}

	// Returning consists: honour can_return_stop, contend for the main pool
	// like the single-line alternate-pool algorithm; others cruise.
	var allowedReturning []*model.Consist
	for _, c := range returning {
		if c.CanReturnStop {
			allowedReturning = append(allowedReturning, c)
		} else {
			result[c.ID] = Decision{Stop: false}
		}
	}
	if len(allowedReturning) > 0 {
		for id, d := range p.DecideGroupSingle(allowedReturning, station, line, dest) {
			result[id] = d
		}
	}

	var haveAlighters, noAlighters []*model.Consist
	for _, c := range arrived {
		if c.IsToStop(station, dest) {
			haveAlighters = append(haveAlighters, c)
		} else {
			noAlighters = append(noAlighters, c)
		}
	}

	for _, c := range haveAlighters {
		b1, b2 := sideDestinedCounts(c, station, dest)
		dominant, count := 1, b1
		if b2 > count {
			dominant, count = 2, b2
		}
		passNum := c.PassCount()
		if count >= p.cfg.MainLineStopTurnThreshold && float64(count) >= p.cfg.MainLineStopTurnRateThreshold*float64(passNum) {
			result[c.ID] = Decision{Stop: true, Turn: dominant, CanReturnStop: true}
		} else {
			result[c.ID] = Decision{Stop: true, Turn: 0}
		}
	}

	for _, c := range noAlighters {
		b1, b2 := sideDestinedCounts(c, station, dest)
		switch {
		case b1 > 0 && b2 == 0:
			result[c.ID] = Decision{Stop: false, Turn: 1, CanReturnStop: true}
		case b2 > 0 && b1 == 0:
			result[c.ID] = Decision{Stop: false, Turn: 2, CanReturnStop: true}
		case b1 > 0 && b2 > 0:
			turn := 1
			if b2 > b1 {
				turn = 2
			}
			result[c.ID] = Decision{Stop: true, Turn: turn, CanReturnStop: true}
		default:
			w1 := line.WaitingLen(model.SideStop(station, 1, 1, model.PhaseArrived))
			w2 := line.WaitingLen(model.SideStop(station, 2, 1, model.PhaseArrived))
			occ1, occ2 := branchOccupied(1), branchOccupied(2)
			switch {
			case !occ1 && occ2:
				result[c.ID] = Decision{Stop: false, Turn: 1, CanReturnStop: true}
			case !occ2 && occ1:
				result[c.ID] = Decision{Stop: false, Turn: 2, CanReturnStop: true}
			case w1 > 0 && w2 == 0:
				result[c.ID] = Decision{Stop: false, Turn: 1, CanReturnStop: true}
			case w2 > 0 && w1 == 0:
				result[c.ID] = Decision{Stop: false, Turn: 2, CanReturnStop: true}
			case line.WaitingLen(model.Trunk(station, model.PhaseArrived)) > 0 &&
				stoppedAlready <= p.cfg.OnlyMainLineStopThreshold && c.RemainingCapacity() > 0:
				result[c.ID] = Decision{Stop: true, Turn: 0}
			default:
				result[c.ID] = Decision{Stop: false, Turn: 0}
			}
		}
	}

	return result
}

// MultiUpFirst implements spec §4.3's "Multi-mode (up-first rule)": same
// skeleton as down-first but prioritises lifting waiting side-branch
// passengers over delivering aboard ones. branchOccupied reports whether
// some other active consist is currently away on the given side branch off
// this station (see MultiDownFirst).
func (p *Policy) MultiUpFirst(group []*model.Consist, station int, line *lineconf.Line, dest DestLookup, stoppedAlready int, branchOccupied func(branch int) bool) map[int]Decision {
	result := make(map[int]Decision, len(group))

	var returning, arrived []*model.Consist
	for _, c := range group {
		if c.IsReturning {
			returning = append(returning, c)
		} else {
			arrived = append(arrived, c)
		}
	}

	var allowedReturning []*model.Consist
	for _, c := range returning {
		if c.CanReturnStop {
			allowedReturning = append(allowedReturning, c)
		} else {
			result[c.ID] = Decision{Stop: false}
		}
	}
	if len(allowedReturning) > 0 {
		for id, d := range p.DecideGroupSingle(allowedReturning, station, line, dest) {
			result[id] = d
		}
	}

	for _, c := range arrived {
		hasSideDrop := c.IsToStop(station, dest) // side-destined handled via Turn below
		b1, b2 := sideDestinedCounts(c, station, dest)
		w1 := line.WaitingLen(model.SideStop(station, 1, 1, model.PhaseArrived))
		w2 := line.WaitingLen(model.SideStop(station, 2, 1, model.PhaseArrived))

		willingToDivert := c.PassCount() <= p.cfg.MainLineTurnMaxPassNum
		occ1, occ2 := branchOccupied(1), branchOccupied(2)

		switch {
		case !willingToDivert:
			if hasSideDrop || b1+b2 > 0 {
				result[c.ID] = Decision{Stop: true, Turn: 0}
			} else {
				result[c.ID] = Decision{Stop: false, Turn: 0}
			}
		case !occ1 && occ2:
			result[c.ID] = Decision{Stop: false, Turn: 1, CanReturnStop: true}
		case !occ2 && occ1:
			result[c.ID] = Decision{Stop: false, Turn: 2, CanReturnStop: true}
		case w1 == 0 && w2 == 0:
			if hasSideDrop || b1+b2 > 0 {
				result[c.ID] = Decision{Stop: true, Turn: 0}
			} else {
				result[c.ID] = Decision{Stop: false, Turn: 0}
			}
		case w1 != w2:
			turn := 1
			if w2 > w1 {
				turn = 2
			}
			result[c.ID] = Decision{Stop: false, Turn: turn, CanReturnStop: true}
		default:
			// Equal waiting pools: pick a branch at random with the seeded
			// generator. Pool-head arrival times are not compared.
			turn := 1
			if p.rng.Intn(2) == 1 {
				turn = 2
			}
			result[c.ID] = Decision{Stop: false, Turn: turn, CanReturnStop: true}
		}
	}

	return result
}
