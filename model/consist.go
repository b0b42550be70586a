package model

import "sort"

// ConsistState is the coarse lifecycle state of a consist (spec §3/§4.6).
type ConsistState int

const (
	StateActive ConsistState = iota
	StateEnded
)

// ManoeuvreKind annotates a pending reorganization on a consist — a
// clearer design than overwriting the travel timer in place, per Design
// Notes: "a clearer design records the manoeuvre as a typed annotation".
type ManoeuvreKind int

const (
	ManoeuvreNone ManoeuvreKind = iota
	ManoeuvreSplit
	ManoeuvreMerge
)

// Manoeuvre is the typed annotation carried by a consist between the
// Reorganization Policy's decision and its execution at timer expiry.
type Manoeuvre struct {
	Kind ManoeuvreKind

	// Split: number of trailing cabs peeled off into the rear successor.
	SplitTrailCabs int

	// Merge: partner consist id and this consist's side, 0 = front
	// (supplies cabs first), 1 = rear (supplies cabs second). Resolved
	// once when requested, not re-derived at execution time — see
	// DESIGN.md Open Question (a).
	Partner int
	Side    int
}

// Consist is one routed vehicle of 1-3 cabs (spec §3 "Vehicle (consist)").
// Passenger membership is tracked by id into a shared registry, per Design
// Notes ("stable integer ids into central registries"); Consist itself owns
// no passenger pointers.
type Consist struct {
	ID       int
	CabIDs   []int
	CabCaps  []int   // per-cab capacity, aligned with CabIDs
	Cabs     [][]int // passenger ids per cab, aligned with CabIDs

	Location     Location
	NextLocation Location
	Running      bool
	TimeCount    int // remaining seconds in the current section/manoeuvre
	StopCount    int // remaining dwell seconds

	IsWaiting  bool
	ToStop     bool
	ToDecTrans bool
	Decided    bool // routing decision already made for the current arrival

	PendingManoeuvre Manoeuvre // set by the Reorganization Policy, consumed at next timer expiry
	ActiveManoeuvre  Manoeuvre // realised when TimeCount reaches zero mid-manoeuvre

	ToTurn        int // 0 = trunk, 1/2 = branch
	IsReturning   bool
	CanReturnStop bool

	Able         bool
	SuccessorIDs []int
	State        ConsistState
}

// NewConsist constructs a freshly dispatched consist with cabCount empty
// cabs of the given per-cab capacity, starting at the line's first station.
func NewConsist(id int, cabIDs []int, capacity int, start Location, nextStart Location) *Consist {
	c := &Consist{
		ID:           id,
		CabIDs:       cabIDs,
		CabCaps:      make([]int, len(cabIDs)),
		Cabs:         make([][]int, len(cabIDs)),
		Location:     start,
		NextLocation: nextStart,
		Able:         true,
		State:        StateActive,
	}
	for i := range c.CabCaps {
		c.CabCaps[i] = capacity
	}
	return c
}

// CabCount is the number of cabs currently composing this consist.
func (c *Consist) CabCount() int { return len(c.CabIDs) }

// MaxCapacity is the consist's total passenger capacity across all cabs.
func (c *Consist) MaxCapacity() int {
	sum := 0
	for _, cap := range c.CabCaps {
		sum += cap
	}
	return sum
}

// PassCount is the total number of aboard passengers (invariant I1).
func (c *Consist) PassCount() int {
	sum := 0
	for _, cab := range c.Cabs {
		sum += len(cab)
	}
	return sum
}

// RemainingCapacity is MaxCapacity - PassCount.
func (c *Consist) RemainingCapacity() int {
	return c.MaxCapacity() - c.PassCount()
}

// AllPassengerIDs flattens the cab lists in cab order.
func (c *Consist) AllPassengerIDs() []int {
	out := make([]int, 0, c.PassCount())
	for _, cab := range c.Cabs {
		out = append(out, cab...)
	}
	return out
}

// Board appends a single passenger id to the first cab with spare capacity,
// preserving front-to-back fill order (mirrors env/bus.py's get_on).
func (c *Consist) Board(passID int) bool {
	for i := range c.Cabs {
		if len(c.Cabs[i]) < c.CabCaps[i] {
			c.Cabs[i] = append(c.Cabs[i], passID)
			return true
		}
	}
	return false
}

// RemovePassenger deletes a passenger id from whichever cab holds it.
func (c *Consist) RemovePassenger(passID int) bool {
	for i, cab := range c.Cabs {
		for j, id := range cab {
			if id == passID {
				c.Cabs[i] = append(cab[:j], cab[j+1:]...)
				return true
			}
		}
	}
	return false
}

// DestLookup resolves a passenger's alighting station, via the same lookup
// the engine uses for every passenger-destination comparison in this file.
type DestLookup func(passID int) Location

// IsToStop reports whether any aboard passenger alights at this trunk
// station (env/bus.py's is_to_stop).
func (c *Consist) IsToStop(station int, dest DestLookup) bool {
	for _, id := range c.AllPassengerIDs() {
		if dest(id).MainComponent() == station {
			return true
		}
	}
	return false
}

// StopPassNum counts aboard passengers alighting at the given trunk station
// (env/bus.py's stop_pass_num).
func (c *Consist) StopPassNum(station int, dest DestLookup) int {
	n := 0
	for _, id := range c.AllPassengerIDs() {
		if dest(id).MainComponent() == station {
			n++
		}
	}
	return n
}

// GetOffPasNum counts aboard passengers alighting in [sStation, eStation)
// in trunk terms (env/bus.py's get_off_pas_num).
func (c *Consist) GetOffPasNum(sStation, eStation int, dest DestLookup) int {
	n := 0
	for _, id := range c.AllPassengerIDs() {
		m := dest(id).MainComponent()
		if m >= sStation && m < eStation {
			n++
		}
	}
	return n
}

// SumStationsToGo sums, over aboard passengers, their remaining trunk
// stations from the given station (env/bus.py's sum_stations_to_go).
func (c *Consist) SumStationsToGo(station int, dest DestLookup) int {
	sum := 0
	for _, id := range c.AllPassengerIDs() {
		sum += dest(id).MainComponent() - station
	}
	return sum
}

// SortPassengers re-indexes aboard passengers across cabs so long-haul
// riders occupy the front cabs and near-term alighters (remaining stations
// <= numBehind) are concentrated in the tail cab (spec §4.5, env/bus.py's
// sort_passengers). A no-op for single-cab consists or an empty consist.
func (c *Consist) SortPassengers(station int, dest DestLookup, numBehind int) {
	if c.CabCount() == 1 || c.PassCount() == 0 {
		return
	}
	ids := c.AllPassengerIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		ri := dest(ids[i]).MainComponent() - station
		rj := dest(ids[j]).MainComponent() - station
		return ri > rj // descending remaining stations: long-haul first
	})

	var longHaul, shortHaul []int
	for _, id := range ids {
		if dest(id).MainComponent()-station <= numBehind {
			shortHaul = append(shortHaul, id)
		} else {
			longHaul = append(longHaul, id)
		}
	}

	frontCapacity := 0
	for _, cap := range c.CabCaps[:len(c.CabCaps)-1] {
		frontCapacity += cap
	}

	newCabs := make([][]int, c.CabCount())

	if len(longHaul) >= frontCapacity {
		// Long-haul riders alone fill every front cab; the tail absorbs the
		// remainder of long-haul plus all near-term alighters.
		idx := 0
		cab := 0
		for idx < frontCapacity {
			newCabs[cab] = append(newCabs[cab], longHaul[idx])
			if len(newCabs[cab]) == c.CabCaps[cab] {
				cab++
			}
			idx++
		}
		tail := append([]int{}, longHaul[idx:]...)
		tail = append(tail, shortHaul...)
		newCabs[c.CabCount()-1] = tail
	} else {
		// Front cabs hold only what long-haul demand requires; remaining
		// front cabs are left as empty padding, tail is the short-haul
		// reservoir.
		idx := 0
		cab := 0
		for idx < len(longHaul) {
			newCabs[cab] = append(newCabs[cab], longHaul[idx])
			if len(newCabs[cab]) == c.CabCaps[cab] {
				cab++
			}
			idx++
		}
		newCabs[c.CabCount()-1] = append([]int{}, shortHaul...)
	}
	c.Cabs = newCabs
}
