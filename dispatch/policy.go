// Package dispatch implements the Dispatch Policy (spec §4.1), grounded on
// original_source/dep_decide.py's dep_decider. Its baseline branch is a
// direct port; the single/multi per-hour-table rules complete dep_decide.py's
// stubs exactly as spec.md §4.1 specifies them.
package dispatch

import "github.com/shivirity/busimulator/config"

// Decision is the output of the dispatch policy: how many cabs to dispatch
// and the capacity each of those cabs has.
type Decision struct {
	CabCount int
	Capacity int
}

// Policy decides when and how much to dispatch.
type Policy struct {
	cfg config.Scenario

	depCount    [24]int
	depDuration [24]int

	lastDep int
	started bool
}

// New builds a Policy. depCount/depDuration are the per-hour dispatch
// tables used by the single/multi modes; baseline ignores them.
func New(cfg config.Scenario, depCount, depDuration [24]int) *Policy {
	return &Policy{cfg: cfg, depCount: depCount, depDuration: depDuration}
}

// CanDispatch reports whether a new consist may be dispatched at time t.
// A first dispatch is always forced by the engine calling Decide before any
// CanDispatch check (spec §4.1 "a first dispatch is forced at simulation
// start"), so this only gates subsequent dispatches.
func (p *Policy) CanDispatch(t int) bool {
	if t > p.cfg.LastBusT {
		return false
	}
	if !p.started {
		return true
	}
	if p.cfg.Mode == "baseline" {
		return t-p.lastDep >= p.cfg.BaselineHeadwaySeconds
	}
	hour := t / 3600
	if hour < 0 {
		hour = 0
	}
	if hour > 23 {
		hour = 23
	}
	return t-p.lastDep >= p.depDuration[hour]
}

// Decide returns the dispatch decision for time t and records it as the
// last dispatch.
func (p *Policy) Decide(t int) Decision {
	p.lastDep = t
	p.started = true

	if p.cfg.Mode == "baseline" {
		return Decision{CabCount: 1, Capacity: p.cfg.LargeBusCapacity}
	}
	hour := t / 3600
	if hour < 0 {
		hour = 0
	}
	if hour > 23 {
		hour = 23
	}
	cabs := p.depCount[hour]
	if cabs < 1 {
		cabs = 1
	}
	if cabs > p.cfg.MaxCabsPerConsist {
		cabs = p.cfg.MaxCabsPerConsist
	}
	return Decision{CabCount: cabs, Capacity: p.cfg.SmallCabCapacity}
}
