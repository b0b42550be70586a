// Package reorg implements the Reorganization Policy (spec §4.4): the
// split/merge eligibility decisions and the successor-consist construction
// that realises them, grounded on original_source/sim.py's assign_reorg
// (decision) and the sep_dec/comb_dec execution branch of run_step
// (mode='single').
package reorg

import (
	"sort"

	"github.com/shivirity/busimulator/config"
	"github.com/shivirity/busimulator/model"
)

// Policy is the Reorganization Policy. Its Decide evaluates split
// eligibility first, then (only if no split is chosen) merge eligibility
// against the co-located group, mirroring assign_reorg's "不同时sep和comb"
// (never both at once) rule.
type Policy struct {
	cfg config.Scenario
}

// New builds a Policy.
func New(cfg config.Scenario) *Policy {
	return &Policy{cfg: cfg}
}

// Decide returns the manoeuvre c should arm for execution at its next timer
// expiry, or model.Manoeuvre{} (ManoeuvreNone) if neither split nor merge
// applies. group is every other consist sharing c's current station and
// phase, already filtered to candidates with no manoeuvre already armed.
func (p *Policy) Decide(c *model.Consist, group []*model.Consist, station int, dest model.DestLookup, distToNext, speedToNext float64, stopTime int) model.Manoeuvre {
	if trail, ok := p.evalSplit(c, station, dest, distToNext, speedToNext, stopTime); ok {
		return model.Manoeuvre{Kind: model.ManoeuvreSplit, SplitTrailCabs: trail}
	}
	if partner, side, ok := p.evalMerge(c, group, station, dest, distToNext, speedToNext); ok {
		return model.Manoeuvre{Kind: model.ManoeuvreMerge, Partner: partner, Side: side}
	}
	return model.Manoeuvre{}
}

// evalSplit implements assign_reorg's separation branch: a consist of 2+
// cabs with more than MinSepPassNum next-station alighters splits its rear
// cabs off when the dwell time saved for the passengers staying aboard
// (stay-aboard count × stopTime) is at least the manoeuvre cost.
func (p *Policy) evalSplit(c *model.Consist, station int, dest model.DestLookup, distToNext, speedToNext float64, stopTime int) (trailCabs int, ok bool) {
	if c.CabCount() < 2 {
		return 0, false
	}
	nextDown := c.StopPassNum(station+1, dest)
	if nextDown <= p.cfg.MinSepPassNum {
		return 0, false
	}
	notDown := c.PassCount() - nextDown
	saved := float64(notDown) * float64(stopTime)
	cost := float64(p.cfg.SepDurationSeconds) - p.cfg.SepDistMeters/speedToNext
	if saved < cost {
		return 0, false
	}
	frontCap := c.CabCaps[0]
	trail := nextDown/frontCap + 1
	if trail >= c.CabCount() {
		trail = c.CabCount() - 1
	}
	if trail < 1 {
		return 0, false
	}
	return trail, true
}

// evalMerge implements assign_reorg's combination branch: scans candidates
// co-located with c, nearest-first by remaining section time, and accepts
// the first that satisfies all three conditions (route-distance
// feasibility, front-load-alighting-soon, rear-load-staying-long).
func (p *Policy) evalMerge(c *model.Consist, group []*model.Consist, station int, dest model.DestLookup, distToNext, speedToNext float64) (partner int, side int, ok bool) {
	candidates := make([]*model.Consist, 0, len(group))
	for _, g := range group {
		if g.ID == c.ID {
			continue
		}
		if c.CabCount()+g.CabCount() > p.cfg.MaxCabsPerConsist {
			continue
		}
		candidates = append(candidates, g)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TimeCount > candidates[j].TimeCount
	})

	for _, front := range candidates {
		feasible := float64(front.TimeCount) < p.cfg.CombDistMeters/speedToNext+
			(1-p.cfg.RateCombRoute)*((distToNext-p.cfg.CombDistMeters)/speedToNext)
		if !feasible {
			continue
		}
		frontAlighting := front.GetOffPasNum(station+2, station+p.cfg.CombForeStations, dest)
		if front.PassCount() != 0 && float64(frontAlighting)/float64(front.PassCount()) < p.cfg.RateFrontPass {
			continue
		}
		rearStaying := c.GetOffPasNum(station+p.cfg.CombForeStations, 1<<30, dest)
		if c.PassCount() != 0 && float64(rearStaying)/float64(c.PassCount()) < p.cfg.RateRearPass {
			continue
		}
		return front.ID, 1, true
	}
	return 0, 0, false
}

// SplitTimeCount computes the armed consist's section timer once a split
// manoeuvre fires at section-start (sim.py's SEP_DURATION formula).
func (p *Policy) SplitTimeCount(distToNext, speedToNext float64) int {
	return int(float64(p.cfg.SepDurationSeconds)+(distToNext-p.cfg.DistanceFixMeters-p.cfg.SepDistMeters)/speedToNext) + 1
}

// CombineTimeCount computes both merging consists' shared section timer
// once a merge manoeuvre fires (sim.py's COMB_DURATION formula).
func (p *Policy) CombineTimeCount(distToNext, speedToNext float64) int {
	return int(float64(p.cfg.CombDurationSeconds)+(distToNext-p.cfg.DistanceFixMeters-p.cfg.CombDistMeters)/speedToNext) + 1
}

// Split builds the two successor consists produced when c peels off its
// trailing trailCabs cabs into a new rear consist, front keeping the lead
// cabs under c's own id. Passenger membership follows the cab it was
// already seated in — the caller re-sorts each half with
// model.Consist.SortPassengers once the split is realised.
func Split(c *model.Consist, trailCabs int, rearID int) (front, rear *model.Consist) {
	n := c.CabCount()
	frontN := n - trailCabs

	front = &model.Consist{
		ID:           c.ID,
		CabIDs:       append([]int{}, c.CabIDs[:frontN]...),
		CabCaps:      append([]int{}, c.CabCaps[:frontN]...),
		Cabs:         append([][]int{}, c.Cabs[:frontN]...),
		Location:     c.Location,
		NextLocation: c.NextLocation,
		Able:         true,
		State:        model.StateActive,
	}
	rear = &model.Consist{
		ID:           rearID,
		CabIDs:       append([]int{}, c.CabIDs[frontN:]...),
		CabCaps:      append([]int{}, c.CabCaps[frontN:]...),
		Cabs:         append([][]int{}, c.Cabs[frontN:]...),
		Location:     c.Location,
		NextLocation: c.NextLocation,
		Able:         true,
		State:        model.StateActive,
	}
	return front, rear
}

// Merge concatenates two consists' cabs into one successor, front first
// (side 0) then rear (side 1), per DESIGN.md's Open Question (a) resolution:
// side tags, stored once on the Manoeuvre, decide cab order symmetrically
// rather than depending on which consist's decision fired first.
func Merge(front, rear *model.Consist, newID int) *model.Consist {
	merged := &model.Consist{
		ID:           newID,
		CabIDs:       append(append([]int{}, front.CabIDs...), rear.CabIDs...),
		CabCaps:      append(append([]int{}, front.CabCaps...), rear.CabCaps...),
		Cabs:         append(append([][]int{}, front.Cabs...), rear.Cabs...),
		Location:     front.Location,
		NextLocation: front.NextLocation,
		Able:         true,
		State:        model.StateActive,
	}
	return merged
}
