package lineconf

import (
	"math"
	"math/rand"
	"sort"

	"github.com/shivirity/busimulator/model"
)

// Mode is the operating regime (spec.md §1/§4).
type Mode string

const (
	ModeBaseline   Mode = "baseline"
	ModeSingle     Mode = "single"
	ModeMulti      Mode = "multi"
	ModeMultiOrder Mode = "multi_order"
)

// Line is the topology the engine steps consists over: main-line stations,
// optional side-branches keyed by (anchor station, branch id), and the
// waiting pools owned by stations and side-stops (spec.md §3).
type Line struct {
	Mode     Mode
	Stations []*Station // 1-indexed by Stations[i-1].ID == i
	Branches map[[2]int]*SideBranch
}

// NewLine builds an (as yet empty) line of the given stations.
func NewLine(mode Mode, stations []*Station) *Line {
	return &Line{Mode: mode, Stations: stations, Branches: map[[2]int]*SideBranch{}}
}

// MaxStation is the last main-line station id.
func (l *Line) MaxStation() int { return len(l.Stations) }

// Station looks up a main-line station by 1-indexed id.
func (l *Line) Station(id int) *Station {
	if id < 1 || id > len(l.Stations) {
		return nil
	}
	return l.Stations[id-1]
}

// Branch looks up a side-branch by anchor station and branch id (1 or 2).
func (l *Line) Branch(anchor, branchID int) *SideBranch {
	return l.Branches[[2]int{anchor, branchID}]
}

// AddBranch registers a side-branch.
func (l *Line) AddBranch(b *SideBranch) {
	l.Branches[[2]int{b.AnchorMain, b.BranchID}] = b
}

// Clone returns a deep copy of the line topology with every waiting pool
// reset to empty, so a second run over the same loaded line starts from a
// clean slate (the CLI's concurrent -runs and the server's concurrent
// /api/stream connections both rely on this to stay share-nothing, spec §5).
func (l *Line) Clone() *Line {
	stations := make([]*Station, len(l.Stations))
	for i, st := range l.Stations {
		cp := *st
		cp.Waiting = nil
		stations[i] = &cp
	}
	out := &Line{Mode: l.Mode, Stations: stations, Branches: map[[2]int]*SideBranch{}}
	for key, b := range l.Branches {
		stops := make([]*SideStop, len(b.Stops))
		for i, s := range b.Stops {
			cp := *s
			cp.Waiting = nil
			stops[i] = &cp
		}
		out.Branches[key] = &SideBranch{AnchorMain: b.AnchorMain, BranchID: b.BranchID, Stops: stops, SpeedMps: b.SpeedMps}
	}
	return out
}

// StationCoord resolves any Location (trunk or side) to the coordinate of
// the stop it names, for passenger walking-leg statistics.
func (l *Line) StationCoord(loc model.Location) model.Coord {
	if loc.IsTrunk() {
		if st := l.Station(loc.Main); st != nil {
			return st.Coord
		}
		return model.Coord{}
	}
	if b := l.Branch(loc.Main, loc.Branch); b != nil {
		if s := b.Stop(loc.Order); s != nil {
			return s.Coord
		}
	}
	return model.Coord{}
}

// DistanceToNext and SpeedToNext expose the section the consist is
// currently crossing, in trunk terms.
func (l *Line) DistanceToNext(station int) float64 {
	if st := l.Station(station); st != nil {
		return st.DistanceToNext
	}
	return 0
}

func (l *Line) SpeedToNext(station int) float64 {
	if st := l.Station(station); st != nil {
		return st.SpeedToNext
	}
	return 0
}

// Enqueue adds a passenger id to the waiting pool named by loc.
func (l *Line) Enqueue(loc model.Location, passID int) {
	if loc.IsTrunk() {
		if st := l.Station(loc.Main); st != nil {
			st.Enqueue(passID)
		}
		return
	}
	if b := l.Branch(loc.Main, loc.Branch); b != nil {
		if s := b.Stop(loc.Order); s != nil {
			s.Enqueue(passID)
		}
	}
}

// WaitingLen reports the waiting-pool length named by loc.
func (l *Line) WaitingLen(loc model.Location) int {
	if loc.IsTrunk() {
		if st := l.Station(loc.Main); st != nil {
			return len(st.Waiting)
		}
		return 0
	}
	if b := l.Branch(loc.Main, loc.Branch); b != nil {
		if s := b.Stop(loc.Order); s != nil {
			return len(s.Waiting)
		}
	}
	return 0
}

// JitterConfig parameterizes the Line Loader's randomisation (spec §4.2),
// grounded on env/line.py's get_random_t/get_random_pos and consts.py's
// PASSENGER_SPEED.
type JitterConfig struct {
	MaxStationWaitSeconds int     // uniform [0, this) subtracted from the raw arrival instant
	BoxLatHalfWidth       float64 // degrees; uniform [-w, w] jitter around the station centroid
	BoxLonHalfWidth       float64
	WalkSpeedMps          float64

	// multi_order crowding-mark parameters (consts.py INTERVAL/NUM_LB/NUM_UB).
	CrowdInterval        int
	CrowdLowerBound      int
	CrowdUpperBound      int
	PeakWindows          [][2]int // [start,end) seconds, e.g. 07-09h and 17-19h
	CanTurnAtPeakHours   bool
}

// RawTrip is one parsed passenger chain record, before jitter and
// side-branch resolution (spec §4.2/§6).
type RawTrip struct {
	UpTimestampSeconds int // raw instant derived from the source timestamp
	UpStation          int
	DownStation        int
	UpCoord            model.Coord
	DownCoord          model.Coord
}

// BuildArrivalStream turns raw trip records into Passenger records sorted
// by actual stop-arrival time, applying jitter and (for multi/multi_order)
// side-branch resolution (spec §4.2). nextID assigns passenger ids.
func BuildArrivalStream(trips []RawTrip, line *Line, cfg JitterConfig, rng *rand.Rand, nextID func() int) []*model.Passenger {
	out := make([]*model.Passenger, 0, len(trips))

	// multi_order crowding state: per origin station, a sliding window of
	// recent boarding instants, used to decide whether a boarder whose
	// window count falls in [CrowdLowerBound, CrowdUpperBound) gets diverted
	// to the side-branch variant.
	recentBoardings := map[int][]int{}

	for _, trip := range trips {
		upT := trip.UpTimestampSeconds - rng.Intn(maxInt(cfg.MaxStationWaitSeconds, 1))
		origin := jitterCoord(trip.UpCoord, cfg, rng)
		dest := jitterCoord(trip.DownCoord, cfg, rng)

		p := &model.Passenger{
			ID:          nextID(),
			OriginCoord: origin,
			DestCoord:   dest,
			Origin:      model.Trunk(trip.UpStation, model.PhaseArrived),
			Dest:        model.Trunk(trip.DownStation, model.PhaseArrived),
			ArriveTime:  upT,
		}

		if line.Mode == ModeMulti || line.Mode == ModeMultiOrder {
			resolveSideBranch(p, line, cfg, &p.Origin, trip.UpCoord, true)
			resolveSideBranch(p, line, cfg, &p.Dest, trip.DownCoord, false)
		}

		if line.Mode == ModeMultiOrder {
			applyCrowdingMark(p, cfg, recentBoardings)
		}

		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ArriveTime < out[j].ArriveTime })
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func jitterCoord(center model.Coord, cfg JitterConfig, rng *rand.Rand) model.Coord {
	return model.Coord{
		Lat: center.Lat + (rng.Float64()*2-1)*cfg.BoxLatHalfWidth,
		Lon: center.Lon + (rng.Float64()*2-1)*cfg.BoxLonHalfWidth,
	}
}

// resolveSideBranch picks the nearest candidate among the anchor station
// and its side-stops, and if a side-stop wins, rewrites *loc and shifts
// ArriveTime by the walking-time differential (spec §4.2, on-boarding leg
// only; the destination leg's shift does not affect ArriveTime).
func resolveSideBranch(p *model.Passenger, line *Line, cfg JitterConfig, loc *model.Location, raw model.Coord, isOrigin bool) {
	anchor := loc.Main
	best := *loc
	bestDist := math.Inf(1)
	if st := line.Station(anchor); st != nil {
		bestDist = haversine(raw, st.Coord)
	}
	for branchID := 1; branchID <= 2; branchID++ {
		b := line.Branch(anchor, branchID)
		if b == nil {
			continue
		}
		for _, s := range b.Stops {
			d := haversine(raw, s.Coord)
			if d < bestDist {
				bestDist = d
				best = model.SideStop(anchor, branchID, s.Order, model.PhaseArrived)
			}
		}
	}
	if best != *loc {
		if isOrigin {
			oldDist := haversine(raw, line.StationCoord(*loc))
			newDist := haversine(raw, line.StationCoord(best))
			shift := (newDist - oldDist) / cfg.WalkSpeedMps
			p.ArriveTime += int(shift)
			p.DivertedToSide = true
		}
		*loc = best
	}
}

func haversine(a, b model.Coord) float64 {
	const earthRadiusM = 6371008.8
	const degToRad = math.Pi / 180
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad
	la1 := a.Lat * degToRad
	la2 := b.Lat * degToRad
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(la1)*math.Cos(la2)*sinLon*sinLon
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// applyCrowdingMark implements consts.py's INTERVAL/NUM_LB/NUM_UB crowding
// rule: within each sliding window per origin main station, a boarder whose
// window count (including itself) is in [LB, UB), outside peak hours (or
// with peak-turns enabled), is marked side-branch-bound.
func applyCrowdingMark(p *model.Passenger, cfg JitterConfig, recent map[int][]int) {
	main := p.Origin.MainComponent()
	window := recent[main]
	cutoff := p.ArriveTime - cfg.CrowdInterval
	kept := window[:0]
	for _, t := range window {
		if t > cutoff {
			kept = append(kept, t)
		}
	}
	kept = append(kept, p.ArriveTime)
	recent[main] = kept

	count := len(kept)
	inPeak := false
	for _, w := range cfg.PeakWindows {
		if p.ArriveTime >= w[0] && p.ArriveTime < w[1] {
			inPeak = true
			break
		}
	}
	if count >= cfg.CrowdLowerBound && count < cfg.CrowdUpperBound && (!inPeak || cfg.CanTurnAtPeakHours) {
		p.DivertedToSide = true
	}
}
