// Package lineio parses the tabular inputs the engine consumes (spec §6):
// station table, distance list, speed list, passenger chain records,
// dispatch tables, and an optional side-branch table. Parsing uses
// github.com/gocarina/gocsv, the way tidbyt-gtfs parses its GTFS static
// tables, in place of the original Python prototype's pandas.read_csv
// (sim.py's read_in, env/line.py's get_passenger_info).
package lineio

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/shivirity/busimulator/lineconf"
	"github.com/shivirity/busimulator/model"
)

// stationRow mirrors the original's station_info.csv.
type stationRow struct {
	Station      string  `csv:"station"`
	Direction    int     `csv:"direction"`
	Lat          float64 `csv:"lat"`
	Lon          float64 `csv:"lon"`
	AllowLayover bool    `csv:"allow_layover"`
}

// distanceRow mirrors distance_matrix_{dir}.csv.
type distanceRow struct {
	Dist float64 `csv:"dist"`
}

// speedRow mirrors speed_list_{dir}.csv.
type speedRow struct {
	Speed float64 `csv:"speed"`
}

// depCountRow / depDurationRow mirror dep_num_{dir}.csv / dep_duration_{dir}.csv,
// one row per hour 0..23.
type depCountRow struct {
	Hour   int `csv:"hour"`
	DepNum int `csv:"dep_num"`
}

type depDurationRow struct {
	Hour        int `csv:"hour"`
	DepDuration int `csv:"dep_duration"`
}

// passengerRow mirrors the chain_data.csv trip records.
type passengerRow struct {
	Direction       int     `csv:"direction"`
	UpTimestamp     int     `csv:"up_time"`
	CurrentLocation string  `csv:"current_location"`
	DownLocation    string  `csv:"down_location"`
	UpLat           float64 `csv:"up_lat"`
	UpLon           float64 `csv:"up_lon"`
	DownLat         float64 `csv:"down_lat"`
	DownLon         float64 `csv:"down_lon"`
}

// sideBranchRow mirrors an optional side_branches.csv.
type sideBranchRow struct {
	AnchorStation string  `csv:"anchor_station"`
	BranchID      int     `csv:"branch_id"`
	Order         int     `csv:"order"`
	Lat           float64 `csv:"lat"`
	Lon           float64 `csv:"lon"`
	DistToNext    float64 `csv:"distance_to_next_m"`
}

// LoadLine builds a lineconf.Line from the station/distance/speed CSV
// readers for one direction, plus an optional side-branch CSV reader.
func LoadLine(mode lineconf.Mode, direction int, stationsR, distancesR, speedsR io.Reader, sideBranchesR io.Reader) (*lineconf.Line, error) {
	var stationRows []*stationRow
	if err := gocsv.Unmarshal(stationsR, &stationRows); err != nil {
		return nil, errors.Wrap(err, "parsing station table")
	}
	var distRows []*distanceRow
	if err := gocsv.Unmarshal(distancesR, &distRows); err != nil {
		return nil, errors.Wrap(err, "parsing distance list")
	}
	var speedRows []*speedRow
	if err := gocsv.Unmarshal(speedsR, &speedRows); err != nil {
		return nil, errors.Wrap(err, "parsing speed list")
	}

	var filtered []*stationRow
	for _, r := range stationRows {
		if r.Direction == direction {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return nil, errors.Errorf("no stations found for direction %d", direction)
	}
	if len(distRows) != len(filtered)-1 || len(speedRows) != len(filtered)-1 {
		return nil, errors.Errorf(
			"distance/speed list length mismatch: %d stations need %d sections, got dist=%d speed=%d",
			len(filtered), len(filtered)-1, len(distRows), len(speedRows))
	}

	stations := make([]*lineconf.Station, len(filtered))
	for i, r := range filtered {
		st := &lineconf.Station{
			ID:           i + 1,
			Name:         r.Station,
			Coord:        model.Coord{Lat: r.Lat, Lon: r.Lon},
			AllowLayover: r.AllowLayover,
		}
		if i < len(distRows) {
			st.DistanceToNext = distRows[i].Dist
			st.SpeedToNext = speedRows[i].Speed
		}
		stations[i] = st
	}

	line := lineconf.NewLine(mode, stations)

	if sideBranchesR != nil {
		var rows []*sideBranchRow
		if err := gocsv.Unmarshal(sideBranchesR, &rows); err != nil {
			return nil, errors.Wrap(err, "parsing side-branch table")
		}
		type branchKey struct {
			anchor string
			id     int
		}
		byBranch := map[branchKey][]*sideBranchRow{}
		for _, r := range rows {
			key := branchKey{r.AnchorStation, r.BranchID}
			byBranch[key] = append(byBranch[key], r)
		}
		nameToID := map[string]int{}
		for _, st := range stations {
			nameToID[st.Name] = st.ID
		}
		for key, rs := range byBranch {
			anchorID, ok := nameToID[key.anchor]
			if !ok {
				return nil, errors.Errorf("side-branch anchor station %q not found", key.anchor)
			}
			branchID := key.id
			stops := make([]*lineconf.SideStop, len(rs))
			for i, r := range rs {
				stops[i] = &lineconf.SideStop{
					Order:          r.Order,
					Coord:          model.Coord{Lat: r.Lat, Lon: r.Lon},
					DistanceToNext: r.DistToNext,
				}
			}
			anchorSpeed := stations[anchorID-1].SpeedToNext
			line.AddBranch(&lineconf.SideBranch{
				AnchorMain: anchorID,
				BranchID:   branchID,
				Stops:      stops,
				SpeedMps:   anchorSpeed,
			})
		}
	}

	return line, nil
}

// LoadDispatchTable reads the per-hour dep-count/dep-duration CSVs into
// 24-length arrays (spec §4.1/§6).
func LoadDispatchTable(countR, durationR io.Reader) (depCount [24]int, depDuration [24]int, err error) {
	var countRows []*depCountRow
	if err := gocsv.Unmarshal(countR, &countRows); err != nil {
		return depCount, depDuration, errors.Wrap(err, "parsing dep_num table")
	}
	var durRows []*depDurationRow
	if err := gocsv.Unmarshal(durationR, &durRows); err != nil {
		return depCount, depDuration, errors.Wrap(err, "parsing dep_duration table")
	}
	if len(countRows) != 24 || len(durRows) != 24 {
		return depCount, depDuration, errors.Errorf(
			"dispatch tables must cover 24 hours, got dep_num=%d dep_duration=%d", len(countRows), len(durRows))
	}
	for _, r := range countRows {
		if r.Hour < 0 || r.Hour > 23 {
			return depCount, depDuration, errors.Errorf("dep_num hour %d out of range", r.Hour)
		}
		depCount[r.Hour] = r.DepNum
	}
	for _, r := range durRows {
		if r.Hour < 0 || r.Hour > 23 {
			return depCount, depDuration, errors.Errorf("dep_duration hour %d out of range", r.Hour)
		}
		depDuration[r.Hour] = r.DepDuration
	}
	return depCount, depDuration, nil
}

// LoadPassengerChain reads the raw trip-chain CSV, filters by direction,
// and resolves up/down station names to 1-indexed trunk station ids.
func LoadPassengerChain(r io.Reader, direction int, stationIndex map[string]int) ([]lineconf.RawTrip, error) {
	var rows []*passengerRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.Wrap(err, "parsing passenger chain")
	}
	out := make([]lineconf.RawTrip, 0, len(rows))
	for _, row := range rows {
		if row.Direction != direction {
			continue
		}
		up, ok := stationIndex[row.CurrentLocation]
		if !ok {
			return nil, errors.Errorf("passenger chain references unknown up-station %q", row.CurrentLocation)
		}
		down, ok := stationIndex[row.DownLocation]
		if !ok {
			return nil, errors.Errorf("passenger chain references unknown down-station %q", row.DownLocation)
		}
		out = append(out, lineconf.RawTrip{
			UpTimestampSeconds: row.UpTimestamp,
			UpStation:          up,
			DownStation:        down,
			UpCoord:            model.Coord{Lat: row.UpLat, Lon: row.UpLon},
			DownCoord:          model.Coord{Lat: row.DownLat, Lon: row.DownLon},
		})
	}
	return out, nil
}

// StationIndex builds a name->id lookup from a built Line, for
// LoadPassengerChain callers that parse the line first.
func StationIndex(line *lineconf.Line) map[string]int {
	idx := make(map[string]int, line.MaxStation())
	for i := 1; i <= line.MaxStation(); i++ {
		idx[line.Station(i).Name] = i
	}
	return idx
}
