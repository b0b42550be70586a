// Package lineconf holds the line topology: main-line stations,
// side-branches, waiting pools, and the sorted passenger arrival stream —
// spec.md §3 "Station"/"Waiting pool" and §4.2 "Line Loader".
package lineconf

import "github.com/shivirity/busimulator/model"

// Station is one main-line stop, 1..N in travel direction.
type Station struct {
	ID             int
	Name           string
	Coord          model.Coord
	DistanceToNext float64 // meters; 0 for the last station
	SpeedToNext    float64 // meters/second; 0 for the last station
	AllowLayover   bool

	Waiting []int // insertion-ordered waiting passenger ids
}

// Enqueue appends a passenger id to the tail of the waiting pool.
func (s *Station) Enqueue(passID int) {
	s.Waiting = append(s.Waiting, passID)
}

// Dequeue pops the head of the waiting pool. ok is false if empty.
func (s *Station) Dequeue() (passID int, ok bool) {
	if len(s.Waiting) == 0 {
		return 0, false
	}
	passID = s.Waiting[0]
	s.Waiting = s.Waiting[1:]
	return passID, true
}

// SideStop is one intermediate stop (order 1..K-1) on a side-branch.
type SideStop struct {
	Order          int
	Coord          model.Coord
	DistanceToNext float64 // meters, toward the next side-stop (or back to anchor on the last one)
	Waiting        []int
}

// Enqueue appends a passenger id to the tail of this side-stop's pool.
func (s *SideStop) Enqueue(passID int) { s.Waiting = append(s.Waiting, passID) }

// Dequeue pops the head of this side-stop's waiting pool.
func (s *SideStop) Dequeue() (passID int, ok bool) {
	if len(s.Waiting) == 0 {
		return 0, false
	}
	passID = s.Waiting[0]
	s.Waiting = s.Waiting[1:]
	return passID, true
}

// SideBranch is a short off-trunk diversion anchored at a main station,
// offered in orientation 1 or 2, partitioned into len(Stops) uniform
// segments (spec §3 "Station").
type SideBranch struct {
	AnchorMain int
	BranchID   int // 1 or 2
	Stops      []*SideStop
	SpeedMps   float64 // derived from the anchor's section speed
}

// Stop returns the side-stop at the given order (1-indexed), or nil.
func (b *SideBranch) Stop(order int) *SideStop {
	if order < 1 || order > len(b.Stops) {
		return nil
	}
	return b.Stops[order-1]
}
