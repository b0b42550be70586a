// Package engine implements the Simulation Engine (spec §4.6): the fixed-step
// tick loop that advances every consist, applies the Dispatch/Routing/
// Reorganization policies, and terminates into a statistics Summary.
// Grounded on original_source/sim.py's Sim.run/run_step/assign_action/
// update_passengers, restructured from its single monolithic run_step
// branch-by-mode into one tick method with per-phase helpers, the way
// jwmdev-brt08/backend/sim/runner.go separates its event loop from its
// per-bus step function.
package engine

import (
	"math/rand"
	"sort"

	"github.com/shivirity/busimulator/config"
	"github.com/shivirity/busimulator/dispatch"
	"github.com/shivirity/busimulator/lineconf"
	"github.com/shivirity/busimulator/model"
	"github.com/shivirity/busimulator/reorg"
	"github.com/shivirity/busimulator/routing"
	"github.com/shivirity/busimulator/simerr"
	"github.com/shivirity/busimulator/stats"
)

// Engine owns every central registry for one run: passengers, consists, cab
// ledgers, and the single seeded RNG, which it hands to the routing policy
// for its tie-breaks (Design Notes: "never consult a global generator").
// Dispatch draws no random numbers, and arrival/position jitter is applied
// before the engine is built, by lineconf.BuildArrivalStream with the
// caller's own generator.
type Engine struct {
	cfg  config.Scenario
	line *lineconf.Line

	dispatchPolicy *dispatch.Policy
	routingPolicy  *routing.Policy
	reorgPolicy    *reorg.Policy
	rng            *rand.Rand

	t int

	passengers map[int]*model.Passenger
	consists   map[int]*model.Consist
	cabs       map[int]*model.CabRecord

	arrivals   []*model.Passenger
	arrivalIdx int

	nextConsistID int
	nextCabID     int

	dispatchedCapacity int // capacity of the most recently dispatched cab, for stats normalisation
}

// New builds an Engine ready to Run.
func New(cfg config.Scenario, line *lineconf.Line, arrivals []*model.Passenger, depCount, depDuration [24]int) *Engine {
	passengers := make(map[int]*model.Passenger, len(arrivals))
	for _, p := range arrivals {
		passengers[p.ID] = p
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Engine{
		cfg:            cfg,
		line:           line,
		dispatchPolicy: dispatch.New(cfg, depCount, depDuration),
		routingPolicy:  routing.New(cfg, rng),
		reorgPolicy:    reorg.New(cfg),
		rng:            rng,
		t:              cfg.SimStartT,
		passengers:     passengers,
		consists:       make(map[int]*model.Consist),
		cabs:           make(map[int]*model.CabRecord),
		arrivals:       arrivals,
	}
}

func (e *Engine) dest(passID int) model.Location {
	p, ok := e.passengers[passID]
	if !ok {
		simerr.Invariant("engine.dest", "passenger id not found in registry")
	}
	return p.Dest
}

// Run advances the tick loop to completion and returns the statistics
// summary (spec §4.6, §6).
func (e *Engine) Run() stats.Summary {
	e.dispatchOne()

	for e.t < e.cfg.HardCapT && (e.t < e.cfg.SimEndT || !e.allTerminal() || !e.allAlighted()) {
		e.admitArrivals()
		if e.dispatchPolicy.CanDispatch(e.t) {
			e.dispatchOne()
		}
		e.decideRouting()
		e.stepConsists()
		e.decideReorg()
		e.t += e.cfg.MinStep
	}

	for _, p := range e.passengers {
		p.GetStatistics(e.cfg.WalkSpeedMps, e.line.StationCoord)
	}
	return stats.Compute(e.cfg, e.passengers, e.cabs, e.dispatchedCapacity)
}

// ConsistSnapshot is one consist's externally-visible state at a tick, used
// by the live SSE stream and the GTFS-realtime feed.
type ConsistSnapshot struct {
	ID         int
	Location   string
	PassCount  int
	CabCount   int
	IsWaiting  bool
	IsReturning bool
}

// Tick is emitted once per simulated step by RunStreaming.
type Tick struct {
	Time     int
	Consists []ConsistSnapshot
	Done     bool
	Summary  *stats.Summary
}

func (e *Engine) snapshot() []ConsistSnapshot {
	out := make([]ConsistSnapshot, 0, len(e.consists))
	for _, c := range e.consists {
		if c.State == model.StateEnded {
			continue
		}
		out = append(out, ConsistSnapshot{
			ID:          c.ID,
			Location:    c.Location.String(),
			PassCount:   c.PassCount(),
			CabCount:    c.CabCount(),
			IsWaiting:   c.IsWaiting,
			IsReturning: c.IsReturning,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunStreaming runs the same tick loop as Run but emits a Tick after every
// simulated step, for a live SSE consumer (spec §4.6 side effect: the run
// itself is unaffected by whether anyone is listening). Stops early once the
// stop channel is closed, without computing a final Summary.
func (e *Engine) RunStreaming(stop <-chan struct{}, out chan<- Tick) {
	defer close(out)
	e.dispatchOne()

	for e.t < e.cfg.HardCapT && (e.t < e.cfg.SimEndT || !e.allTerminal() || !e.allAlighted()) {
		select {
		case <-stop:
			return
		default:
		}
		e.admitArrivals()
		if e.dispatchPolicy.CanDispatch(e.t) {
			e.dispatchOne()
		}
		e.decideRouting()
		e.stepConsists()
		e.decideReorg()
		e.t += e.cfg.MinStep
		out <- Tick{Time: e.t, Consists: e.snapshot()}
	}

	for _, p := range e.passengers {
		p.GetStatistics(e.cfg.WalkSpeedMps, e.line.StationCoord)
	}
	summary := stats.Compute(e.cfg, e.passengers, e.cabs, e.dispatchedCapacity)
	out <- Tick{Time: e.t, Consists: e.snapshot(), Done: true, Summary: &summary}
}

func (e *Engine) allTerminal() bool {
	for _, c := range e.consists {
		if c.State != model.StateEnded && c.Able {
			return false
		}
	}
	return true
}

func (e *Engine) allAlighted() bool {
	for _, p := range e.passengers {
		if !p.Completed() {
			return false
		}
	}
	return true
}

// admitArrivals enqueues every passenger whose materialisation instant has
// arrived into its origin stop's waiting pool.
func (e *Engine) admitArrivals() {
	for e.arrivalIdx < len(e.arrivals) && e.arrivals[e.arrivalIdx].ArriveTime <= e.t {
		p := e.arrivals[e.arrivalIdx]
		e.line.Enqueue(p.Origin, p.ID)
		e.arrivalIdx++
	}
}

// dispatchOne creates a new consist from the Dispatch Policy's decision and
// places it at the line's first station, awaiting its first routing
// decision (spec §4.1/§4.6).
func (e *Engine) dispatchOne() {
	dec := e.dispatchPolicy.Decide(e.t)
	cabIDs := make([]int, dec.CabCount)
	for i := range cabIDs {
		id := e.nextCabID
		e.nextCabID++
		cabIDs[i] = id
		e.cabs[id] = &model.CabRecord{ID: id, Capacity: dec.Capacity, StartTime: e.t}
	}
	e.dispatchedCapacity = dec.Capacity

	id := e.nextConsistID
	e.nextConsistID++
	start := model.Trunk(1, model.PhaseArrived)
	c := model.NewConsist(id, cabIDs, dec.Capacity, start, start)
	c.Able = true
	e.consists[id] = c
}

// groupAtTrunk returns every active consist sitting at the same trunk
// location (station, phase), including ones already decided or dwelling
// there, sorted by id.
func (e *Engine) groupAtTrunk(loc model.Location) []*model.Consist {
	var group []*model.Consist
	for _, c := range e.consists {
		if !c.Able || c.State == model.StateEnded {
			continue
		}
		if c.Location.IsTrunk() && c.Location == loc {
			group = append(group, c)
		}
	}
	sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
	return group
}

// branchOccupied reports whether some other active consist is currently away
// on the given side branch off the given main station (spec §4.3(c): a
// multi-mode routing decision may only pick a branch when the other branch
// already has coverage, or when the waiting pools are asymmetric).
func (e *Engine) branchOccupied(main, branch int) bool {
	for _, c := range e.consists {
		if !c.Able || c.State == model.StateEnded {
			continue
		}
		if !c.Location.IsTrunk() && c.Location.Main == main && c.Location.Branch == branch {
			return true
		}
	}
	return false
}

// activeConsistsOrdered returns every active consist sorted by descending
// location number, so stepping and reorg decisions always process a
// following consist no later than its predecessor within one tick (spec §5).
// Consists tied at the same location — a dwell completed by several
// consists at one station in the same tick — are then ordered by descending
// remaining capacity, so boarding off the shared waiting pool goes to the
// largest consist first (spec §4.6), and any remaining tie by ascending id.
// Plain map iteration over e.consists is randomised per process and must
// never be used for stepping/reorg order.
func (e *Engine) activeConsistsOrdered() []*model.Consist {
	out := make([]*model.Consist, 0, len(e.consists))
	for _, c := range e.consists {
		if c.Able && c.State != model.StateEnded {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := out[i].Location.Number(), out[j].Location.Number()
		if ni != nj {
			return ni > nj
		}
		if ri, rj := out[i].RemainingCapacity(), out[j].RemainingCapacity(); ri != rj {
			return ri > rj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// decideRouting runs the Routing Policy once per consist per arrival: any
// active consist sitting at a trunk station in PhaseArrived that has not yet
// been decided for this arrival joins its group decision.
func (e *Engine) decideRouting() {
	seen := map[model.Location]bool{}
	for _, c := range e.activeConsistsOrdered() {
		if c.Decided {
			continue
		}
		if !c.Location.IsTrunk() || c.Location.At != model.PhaseArrived {
			continue
		}
		if seen[c.Location] {
			continue
		}
		seen[c.Location] = true
		group := e.groupAtTrunk(c.Location)
		station := c.Location.Main

		switch e.cfg.Mode {
		case "baseline":
			for _, g := range group {
				d := e.routingPolicy.DecideBaseline(g, station, e.line, e.dest)
				e.applyDecision(g, d)
			}
		case "single":
			decs := e.routingPolicy.DecideGroupSingle(group, station, e.line, e.dest)
			for _, g := range group {
				if d, ok := decs[g.ID]; ok {
					e.applyDecision(g, d)
				}
			}
		default: // multi, multi_order
			var decs map[int]routing.Decision
			stopped := 0
			for _, g := range group {
				if g.ToStop {
					stopped++
				}
			}
			occupied := func(branch int) bool { return e.branchOccupied(station, branch) }
			if e.cfg.RouteRule == "up_first" {
				decs = e.routingPolicy.MultiUpFirst(group, station, e.line, e.dest, stopped, occupied)
			} else {
				decs = e.routingPolicy.MultiDownFirst(group, station, e.line, e.dest, stopped, occupied)
			}
			for _, g := range group {
				if d, ok := decs[g.ID]; ok {
					e.applyDecision(g, d)
				}
			}
		}
	}
}

func (e *Engine) applyDecision(c *model.Consist, d routing.Decision) {
	c.ToStop = d.Stop
	c.ToTurn = d.Turn
	c.CanReturnStop = d.CanReturnStop
	c.Decided = true
	if c.ToStop {
		c.StopCount = e.cfg.StopTime(e.cfg.Mode, e.t)
	}
}

// decideReorg runs the Reorganization Policy (spec §4.4) for every single
// -mode consist flagged ToDecTrans by its dwell completion.
func (e *Engine) decideReorg() {
	if e.cfg.Mode != "single" {
		return
	}
	for _, c := range e.activeConsistsOrdered() {
		if !c.ToDecTrans {
			continue
		}
		if c.PendingManoeuvre.Kind != model.ManoeuvreNone {
			// A merge partner decided earlier in this same pass already armed
			// this consist; re-deciding here would clobber that assignment.
			c.ToDecTrans = false
			continue
		}
		station := c.Location.Main
		distToNext := e.line.DistanceToNext(station)
		speedToNext := e.line.SpeedToNext(station)
		group := e.groupAtTrunk(c.Location)
		var others []*model.Consist
		for _, g := range group {
			if g.ID != c.ID && g.PendingManoeuvre.Kind == model.ManoeuvreNone {
				others = append(others, g)
			}
		}
		m := e.reorgPolicy.Decide(c, others, station, e.dest, distToNext, speedToNext, e.cfg.StopTime(e.cfg.Mode, e.t))
		if m.Kind == model.ManoeuvreMerge {
			if partner, ok := e.consists[m.Partner]; ok {
				partner.PendingManoeuvre = model.Manoeuvre{Kind: model.ManoeuvreMerge, Partner: c.ID, Side: 0}
			}
		}
		c.PendingManoeuvre = m
		c.ToDecTrans = false
	}
}

// stepConsists advances every active consist by one MinStep (spec §4.6).
func (e *Engine) stepConsists() {
	for _, c := range e.activeConsistsOrdered() {
		if !c.Location.IsTrunk() {
			e.stepSideBranch(c)
			continue
		}
		if c.Location.At == model.PhaseRunning {
			e.stepRunning(c)
		} else {
			e.stepArrived(c)
		}
	}
}

func (e *Engine) stepRunning(c *model.Consist) {
	if c.TimeCount > e.cfg.MinStep {
		c.TimeCount -= e.cfg.MinStep
		return
	}
	if c.ActiveManoeuvre.Kind != model.ManoeuvreNone {
		e.executeManoeuvre(c)
		return
	}
	next := c.Location.Main + 1
	c.TimeCount = 0
	c.Location = model.Trunk(next, model.PhaseArrived)
	c.NextLocation = model.Trunk(next, model.PhaseRunning)
	c.Decided = false
}

func (e *Engine) stepArrived(c *model.Consist) {
	if !c.ToStop {
		e.departSection(c)
		return
	}
	if !c.IsWaiting {
		c.IsWaiting = true
	}
	if c.StopCount > e.cfg.MinStep {
		c.StopCount -= e.cfg.MinStep
		return
	}
	c.StopCount = 0
	e.boardAlight(c)

	if c.Location.Main == e.line.MaxStation() {
		e.endConsist(c)
		return
	}
	c.ToDecTrans = c.CabCount() > 1 // single-mode reorg considered after every dwell
	e.departSection(c)
}

// boardAlight realises the dwell's passenger exchange: alighters leave
// first, then the full `stop_time` is billed as bus wait to every other
// aboard passenger (DESIGN.md Open Question (b)), then the waiting pool
// boards front-to-back.
func (e *Engine) boardAlight(c *model.Consist) {
	station := c.Location.Main
	for _, id := range c.AllPassengerIDs() {
		p := e.passengers[id]
		if p.Dest.MainComponent() == station && p.Dest.IsTrunk() {
			p.MarkAlighted(e.t, p.Dest)
			c.RemovePassenger(id)
		}
	}
	for _, id := range c.AllPassengerIDs() {
		e.passengers[id].AddBusWait(e.cfg.StopTime(e.cfg.Mode, e.t))
	}
	for {
		id, ok := e.line.Station(station).Dequeue()
		if !ok {
			break
		}
		if !c.Board(id) {
			e.line.Station(station).Waiting = append([]int{id}, e.line.Station(station).Waiting...)
			break
		}
		e.passengers[id].MarkBoarded(e.t)
	}
	if c.CabCount() > 1 {
		c.SortPassengers(station, e.dest, e.cfg.NumBehindStations)
	}
}

func (e *Engine) departSection(c *model.Consist) {
	station := c.Location.Main
	dist := e.line.DistanceToNext(station)
	speed := e.line.SpeedToNext(station)
	c.IsWaiting = false
	c.ToStop = false
	c.Location = model.Trunk(station, model.PhaseRunning)
	c.NextLocation = model.Trunk(station+1, model.PhaseArrived)
	c.Running = true
	c.TimeCount = int((dist-e.cfg.DistanceFixMeters)/speed) + 1

	for _, cabID := range c.CabIDs {
		e.cabs[cabID].DistanceM += dist
	}
	for i, cabID := range c.CabIDs {
		e.cabs[cabID].RecordDeparture(e.t, len(c.Cabs[i]))
	}

	if c.PendingManoeuvre.Kind != model.ManoeuvreNone {
		e.armManoeuvre(c, dist, speed)
	}
}

func (e *Engine) armManoeuvre(c *model.Consist, dist, speed float64) {
	switch c.PendingManoeuvre.Kind {
	case model.ManoeuvreSplit:
		c.TimeCount = e.reorgPolicy.SplitTimeCount(dist, speed) - e.cfg.MinStep
		c.ActiveManoeuvre = c.PendingManoeuvre
		c.PendingManoeuvre = model.Manoeuvre{}
	case model.ManoeuvreMerge:
		t := e.reorgPolicy.CombineTimeCount(dist, speed) - e.cfg.MinStep
		c.TimeCount = t
		c.ActiveManoeuvre = c.PendingManoeuvre
		c.PendingManoeuvre = model.Manoeuvre{}
		if partner, ok := e.consists[c.ActiveManoeuvre.Partner]; ok {
			partner.TimeCount = t
			partner.ActiveManoeuvre = model.Manoeuvre{Kind: model.ManoeuvreMerge, Partner: c.ID, Side: 1 - c.ActiveManoeuvre.Side}
			partner.PendingManoeuvre = model.Manoeuvre{}
		}
	}
}

// executeManoeuvre realises an armed split or merge once its section timer
// reaches zero, replacing the consist(s) involved with their successor(s).
// The armed timer already spans the whole section, so each successor is
// placed at the next station's arrival, awaiting its routing decision
// (reorg.Split/reorg.Merge, spec §4.4).
func (e *Engine) executeManoeuvre(c *model.Consist) {
	station := c.Location.Main
	arrived := model.Trunk(station+1, model.PhaseArrived)
	departing := model.Trunk(station+1, model.PhaseRunning)

	switch c.ActiveManoeuvre.Kind {
	case model.ManoeuvreSplit:
		rearID := e.nextConsistID
		e.nextConsistID++
		front, rear := reorg.Split(c, c.ActiveManoeuvre.SplitTrailCabs, rearID)
		front.TimeCount, front.Location, front.NextLocation = 0, arrived, departing
		rear.TimeCount, rear.Location, rear.NextLocation = 0, arrived, departing
		front.ActiveManoeuvre = model.Manoeuvre{}
		rear.ActiveManoeuvre = model.Manoeuvre{}
		front.SuccessorIDs = []int{front.ID, rear.ID}
		front.SortPassengers(station, e.dest, e.cfg.NumBehindStations)
		if rear.CabCount() > 1 {
			rear.SortPassengers(station, e.dest, e.cfg.NumBehindStations)
		}
		e.consists[front.ID] = front
		e.consists[rear.ID] = rear

	case model.ManoeuvreMerge:
		partner, ok := e.consists[c.ActiveManoeuvre.Partner]
		if !ok || partner.State == model.StateEnded {
			return // already realised by the partner's own pass this tick
		}
		front, rear := c, partner
		if c.ActiveManoeuvre.Side != 0 {
			front, rear = partner, c
		}
		mergedID := e.nextConsistID
		e.nextConsistID++
		merged := reorg.Merge(front, rear, mergedID)
		merged.TimeCount, merged.Location, merged.NextLocation = 0, arrived, departing
		merged.SortPassengers(station, e.dest, e.cfg.NumBehindStations)
		front.State = model.StateEnded
		front.SuccessorIDs = []int{mergedID}
		rear.State = model.StateEnded
		rear.SuccessorIDs = []int{mergedID}
		e.consists[mergedID] = merged
	}
}

func (e *Engine) endConsist(c *model.Consist) {
	c.State = model.StateEnded
	if c.PassCount() != 0 {
		simerr.Invariant("engine.endConsist", "consist reached terminus with passengers still aboard")
	}
	for _, cabID := range c.CabIDs {
		t := e.t
		e.cabs[cabID].EndTime = &t
	}
}

// stepSideBranch advances a consist currently diverted onto a side-branch
// (spec §4.3/§4.6 side-branch excursion). Outbound travel uses
// DecideSideStop to decide dwell at each intermediate stop; at the last
// stop the consist flips IsReturning and retraces its steps back to the
// anchor, where it rejoins the trunk.
func (e *Engine) stepSideBranch(c *model.Consist) {
	branch := e.line.Branch(c.Location.Main, c.Location.Branch)
	if branch == nil {
		simerr.Invariant("engine.stepSideBranch", "consist references unknown side-branch")
	}

	if c.Location.At == model.PhaseRunning {
		if c.TimeCount > e.cfg.MinStep {
			c.TimeCount -= e.cfg.MinStep
			return
		}
		c.TimeCount = 0
		if c.IsReturning {
			if c.Location.Order <= 1 {
				c.Location = model.Trunk(c.Location.Main, model.PhaseArrived)
				c.NextLocation = model.Trunk(c.Location.Main, model.PhaseRunning)
				c.IsReturning = false
				c.ToTurn = 0
				c.Decided = false
				return
			}
			c.Location = model.SideStop(c.Location.Main, c.Location.Branch, c.Location.Order-1, model.PhaseArrived)
		} else {
			c.Location = model.SideStop(c.Location.Main, c.Location.Branch, c.Location.Order+1, model.PhaseArrived)
		}
		return
	}

	// Arrived at a side-stop (order 1..len(Stops)).
	isLast := c.Location.Order == len(branch.Stops)
	firstReturningHere := true // single-occupant side-branch excursions in this model
	d := e.routingPolicy.DecideSideStop(c, c.Location, isLast, e.line, e.dest, firstReturningHere)

	if d.Stop && !c.IsWaiting {
		c.IsWaiting = true
		c.StopCount = e.cfg.StopTime(e.cfg.Mode, e.t)
	}
	if c.IsWaiting {
		if c.StopCount > e.cfg.MinStep {
			c.StopCount -= e.cfg.MinStep
			return
		}
		c.StopCount = 0
		e.boardAlightSide(c)
		c.IsWaiting = false
	}

	if isLast && !c.IsReturning {
		c.IsReturning = true
	}

	stop := branch.Stop(c.Location.Order)
	c.Location = model.SideStop(c.Location.Main, c.Location.Branch, c.Location.Order, model.PhaseRunning)
	c.TimeCount = int(stop.DistanceToNext/branch.SpeedMps) + 1
}

func (e *Engine) boardAlightSide(c *model.Consist) {
	loc := model.SideStop(c.Location.Main, c.Location.Branch, c.Location.Order, model.PhaseArrived)
	for _, id := range c.AllPassengerIDs() {
		p := e.passengers[id]
		if p.Dest == loc {
			p.MarkAlighted(e.t, loc)
			c.RemovePassenger(id)
		}
	}
	branch := e.line.Branch(c.Location.Main, c.Location.Branch)
	stop := branch.Stop(c.Location.Order)
	for {
		id, ok := stop.Dequeue()
		if !ok {
			break
		}
		if !c.Board(id) {
			stop.Waiting = append([]int{id}, stop.Waiting...)
			break
		}
		e.passengers[id].MarkBoarded(e.t)
	}
}
