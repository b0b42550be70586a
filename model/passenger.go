package model

import "math"

// Coord is a (lat, lon) pair in decimal degrees.
type Coord struct {
	Lat float64
	Lon float64
}

// Passenger is the immutable-identity, mutable-progress record for one
// trip. Identity fields are set once at materialisation; the rest are
// filled in as the trip progresses through boarding, dwell and alighting.
//
// Invariant: once set, BoardTime <= AlightTime, and ArriveTime <= BoardTime.
// A passenger is never aboard two consists at once (enforced by the engine,
// which removes a passenger from a waiting pool the instant it appends the
// passenger id to a cab).
type Passenger struct {
	ID int

	OriginCoord Coord
	DestCoord   Coord

	// Origin/Dest are the passenger's boarding/alighting locations already
	// resolved by the Line Loader (trunk or side-branch stop).
	Origin Location
	Dest   Location

	DivertedToSide bool

	ArriveTime int // seconds since midnight; instant materialised at origin stop

	// Mutable progress.
	BoardTime  *int
	AlightTime *int

	// ActualAlightLoc is the location recorded by MarkAlighted; the engine
	// always records the passenger's Dest.
	ActualAlightLoc Location

	// BusWaitAccrued is the cumulative dwell time (seconds) billed to this
	// passenger while aboard a consist that stopped without the passenger
	// alighting (see spec Open Question (b): full stop_time, once per
	// completed dwell).
	BusWaitAccrued int

	// Derived at end of run by GetStatistics.
	WalkDistOriginM float64
	WalkDistDestM   float64
	WalkTimeOrigin  float64 // seconds
	WalkTimeDest    float64 // seconds
	InVehicleTime   float64 // minutes
	StationWaitTime float64 // minutes
	FullJourneyTime float64 // minutes
}

// MarkBoarded records boarding time. Panics (an invariant violation, not a
// recoverable condition) if the passenger already alighted or boards before
// arriving.
func (p *Passenger) MarkBoarded(t int) {
	if p.AlightTime != nil {
		panic("passenger boarded after alighting")
	}
	if t < p.ArriveTime {
		panic("passenger boarded before arriving")
	}
	bt := t
	p.BoardTime = &bt
}

// MarkAlighted records alight time and the actual alighting location.
func (p *Passenger) MarkAlighted(t int, loc Location) {
	if p.BoardTime == nil {
		panic("passenger alighted without having boarded")
	}
	if t < *p.BoardTime {
		panic("passenger alighted before boarding")
	}
	at := t
	p.AlightTime = &at
	p.ActualAlightLoc = loc
}

// AddBusWait accrues dwell time billed while aboard and not alighting.
func (p *Passenger) AddBusWait(seconds int) {
	p.BusWaitAccrued += seconds
}

// IsOnboard reports whether the passenger has boarded but not yet alighted.
func (p *Passenger) IsOnboard() bool {
	return p.BoardTime != nil && p.AlightTime == nil
}

// Completed reports whether the trip finished.
func (p *Passenger) Completed() bool {
	return p.AlightTime != nil
}

// ClonePassengers copies each passenger's identity fields into a fresh
// record with progress fields reset, so a second run over the same
// generated arrival stream starts from a clean slate (share-nothing runs,
// spec §5).
func ClonePassengers(src []*Passenger) []*Passenger {
	out := make([]*Passenger, len(src))
	for i, p := range src {
		cp := *p
		cp.BoardTime = nil
		cp.AlightTime = nil
		cp.BusWaitAccrued = 0
		cp.ActualAlightLoc = Location{}
		cp.WalkDistOriginM, cp.WalkDistDestM, cp.WalkTimeOrigin, cp.WalkTimeDest = 0, 0, 0, 0
		cp.InVehicleTime, cp.StationWaitTime, cp.FullJourneyTime = 0, 0, 0
		out[i] = &cp
	}
	return out
}

// haversineMeters is the great-circle distance between two coordinates,
// used for walking legs between a jittered origin/destination and the stop
// actually used (mirrors the grid-box jitter in env/line.py's
// get_random_pos, converted to a walking distance/time the way
// env/passenger.py's get_distance derives one from two coordinates).
func haversineMeters(a, b Coord) float64 {
	const earthRadiusM = 6371008.8
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad
	la1 := a.Lat * degToRad
	la2 := b.Lat * degToRad
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(la1)*math.Cos(la2)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusM * c
}

const degToRad = 3.141592653589793 / 180

// GetStatistics computes the derived, end-of-run fields for this passenger.
// walkSpeedMps is the fixed pedestrian speed (spec §3/§6, consts.py
// PASSENGER_SPEED). stationCoord resolves a Location to the lat/lon the
// Line model assigned it, for the walking-leg distance.
func (p *Passenger) GetStatistics(walkSpeedMps float64, stationCoord func(Location) Coord) {
	if p.BoardTime == nil || p.AlightTime == nil {
		return
	}
	originStopCoord := stationCoord(p.Origin)
	destStopCoord := stationCoord(p.ActualAlightLoc)

	p.WalkDistOriginM = haversineMeters(p.OriginCoord, originStopCoord)
	p.WalkDistDestM = haversineMeters(p.DestCoord, destStopCoord)
	p.WalkTimeOrigin = p.WalkDistOriginM / walkSpeedMps
	p.WalkTimeDest = p.WalkDistDestM / walkSpeedMps

	inVehicleSeconds := float64(*p.AlightTime - *p.BoardTime)
	p.InVehicleTime = inVehicleSeconds / 60
	stationWaitSeconds := float64(*p.BoardTime-p.ArriveTime) + float64(p.BusWaitAccrued)
	p.StationWaitTime = stationWaitSeconds / 60
	fullSeconds := inVehicleSeconds + stationWaitSeconds + p.WalkTimeOrigin + p.WalkTimeDest
	p.FullJourneyTime = fullSeconds / 60
}
