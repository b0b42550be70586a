package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Phase is the within-station/within-section phase of a location code.
type Phase int

const (
	// PhaseArrived marks a consist that has reached a stop (station or
	// side-stop) and has no remaining travel in the current section.
	PhaseArrived Phase = 0
	// PhaseRunning marks a consist mid-section, travelling toward the next
	// stop.
	PhaseRunning Phase = 5
)

// Location is the tagged variant the hot path operates over (see Design
// Notes): either a trunk station or a side-branch stop, each with a phase.
// The string encodings ("S@P" / "M#B#O#P") are kept for serialization
// boundaries only (CLI reports, SSE payloads, GTFS-RT snapshots); engine
// code never parses or formats a location string on the hot path.
type Location struct {
	Main   int // main-line station id, 1..N
	Branch int // 0 = trunk, 1 or 2 = a side-branch
	Order  int // side-stop order 1..K-1; 0 on the trunk
	At     Phase
}

// Trunk builds a main-line location.
func Trunk(main int, at Phase) Location {
	return Location{Main: main, Branch: 0, Order: 0, At: at}
}

// SideStop builds a side-branch location.
func SideStop(main, branch, order int, at Phase) Location {
	return Location{Main: main, Branch: branch, Order: order, At: at}
}

// IsTrunk reports whether the location sits on the main line.
func (l Location) IsTrunk() bool { return l.Branch == 0 }

// Number gives the value used to order consists for per-tick stepping and
// decision priority: descending by this value means a following consist
// never overtakes its predecessor within one tick.
func (l Location) Number() float64 {
	return float64(l.Main) + float64(l.At)/10.0
}

// String renders the location in the source's textual form.
func (l Location) String() string {
	if l.IsTrunk() {
		return fmt.Sprintf("%d@%d", l.Main, int(l.At))
	}
	return fmt.Sprintf("%d#%d#%d#%d", l.Main, l.Branch, l.Order, int(l.At))
}

// ParseLocation parses the textual encoding back into a Location. Used only
// at serialization boundaries.
func ParseLocation(s string) (Location, error) {
	if strings.Contains(s, "@") {
		parts := strings.SplitN(s, "@", 2)
		if len(parts) != 2 {
			return Location{}, errors.Errorf("malformed trunk location %q", s)
		}
		main, err := strconv.Atoi(parts[0])
		if err != nil {
			return Location{}, errors.Wrapf(err, "parsing trunk location %q", s)
		}
		at, err := strconv.Atoi(parts[1])
		if err != nil {
			return Location{}, errors.Wrapf(err, "parsing trunk location %q", s)
		}
		return Trunk(main, Phase(at)), nil
	}
	if strings.Contains(s, "#") {
		parts := strings.Split(s, "#")
		if len(parts) != 4 {
			return Location{}, errors.Errorf("malformed side location %q", s)
		}
		vals := make([]int, 4)
		for i, p := range parts {
			v, err := strconv.Atoi(p)
			if err != nil {
				return Location{}, errors.Wrapf(err, "parsing side location %q", s)
			}
			vals[i] = v
		}
		return SideStop(vals[0], vals[1], vals[2], Phase(vals[3])), nil
	}
	return Location{}, errors.Errorf("unrecognized location encoding %q", s)
}

// MainComponent returns the main-line station a destination (trunk or side)
// is anchored at — used by the reorganization and routing policies, which
// reason about "stations to go" purely in trunk terms even for side-destined
// passengers.
func (l Location) MainComponent() int { return l.Main }
