package lineio_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivirity/busimulator/lineconf"
	"github.com/shivirity/busimulator/lineio"
)

const stationsCSV = `station,direction,lat,lon,allow_layover
A,0,10.0,20.0,false
B,0,10.1,20.1,false
C,0,10.2,20.2,true
A,1,10.0,20.0,false
B,1,10.1,20.1,false
`

const distancesCSV = `dist
1000
1500
`

const speedsCSV = `speed
10
12
`

func TestLoadLineFiltersByDirectionAndBuildsSections(t *testing.T) {
	line, err := lineio.LoadLine(lineconf.ModeSingle, 0,
		strings.NewReader(stationsCSV), strings.NewReader(distancesCSV), strings.NewReader(speedsCSV), nil)
	require.NoError(t, err)

	require.Equal(t, 3, line.MaxStation())
	assert.Equal(t, "A", line.Station(1).Name)
	assert.Equal(t, "C", line.Station(3).Name)
	assert.True(t, line.Station(3).AllowLayover)
	assert.Equal(t, 1000.0, line.Station(1).DistanceToNext)
	assert.Equal(t, 12.0, line.Station(2).SpeedToNext)
	assert.Equal(t, 0.0, line.Station(3).DistanceToNext)
}

func TestLoadLineRejectsDistanceSpeedLengthMismatch(t *testing.T) {
	badDistances := "dist\n1000\n"
	_, err := lineio.LoadLine(lineconf.ModeSingle, 0,
		strings.NewReader(stationsCSV), strings.NewReader(badDistances), strings.NewReader(speedsCSV), nil)
	assert.Error(t, err)
}

func TestLoadLineRejectsUnknownDirection(t *testing.T) {
	_, err := lineio.LoadLine(lineconf.ModeSingle, 9,
		strings.NewReader(stationsCSV), strings.NewReader(distancesCSV), strings.NewReader(speedsCSV), nil)
	assert.Error(t, err)
}

const sideBranchesCSV = `anchor_station,branch_id,order,lat,lon,distance_to_next_m
B,1,1,10.15,20.05,300
B,1,2,10.18,20.08,250
`

func TestLoadLineAttachesSideBranch(t *testing.T) {
	line, err := lineio.LoadLine(lineconf.ModeMulti, 0,
		strings.NewReader(stationsCSV), strings.NewReader(distancesCSV), strings.NewReader(speedsCSV),
		strings.NewReader(sideBranchesCSV))
	require.NoError(t, err)

	branch := line.Branch(2, 1)
	require.NotNil(t, branch)
	assert.Len(t, branch.Stops, 2)
	assert.Equal(t, 300.0, branch.Stops[0].DistanceToNext)
	assert.Equal(t, line.Station(2).SpeedToNext, branch.SpeedMps)
}

const depCountCSV = `hour,dep_num
0,0
1,0
2,0
3,0
4,0
5,0
6,2
7,3
8,0
9,0
10,0
11,0
12,0
13,0
14,0
15,0
16,0
17,0
18,0
19,0
20,0
21,0
22,0
23,0
`

const depDurationCSV = `hour,dep_duration
0,0
1,0
2,0
3,0
4,0
5,0
6,300
7,200
8,0
9,0
10,0
11,0
12,0
13,0
14,0
15,0
16,0
17,0
18,0
19,0
20,0
21,0
22,0
23,0
`

func TestLoadDispatchTableFillsAllHours(t *testing.T) {
	count, duration, err := lineio.LoadDispatchTable(strings.NewReader(depCountCSV), strings.NewReader(depDurationCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, count[6])
	assert.Equal(t, 3, count[7])
	assert.Equal(t, 300, duration[6])
	assert.Equal(t, 0, count[0])
}

func TestLoadDispatchTableRejectsShortTable(t *testing.T) {
	_, _, err := lineio.LoadDispatchTable(strings.NewReader("hour,dep_num\n0,1\n"), strings.NewReader(depDurationCSV))
	assert.Error(t, err)
}

const passengerChainCSV = `direction,up_time,current_location,down_location,up_lat,up_lon,down_lat,down_lon
0,21600,A,C,10.0,20.0,10.2,20.2
0,21700,B,A,10.1,20.1,10.0,20.0
1,21600,A,B,10.0,20.0,10.1,20.1
`

func TestLoadPassengerChainFiltersDirectionAndResolvesStations(t *testing.T) {
	idx := map[string]int{"A": 1, "B": 2, "C": 3}
	trips, err := lineio.LoadPassengerChain(strings.NewReader(passengerChainCSV), 0, idx)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, 1, trips[0].UpStation)
	assert.Equal(t, 3, trips[0].DownStation)
	assert.Equal(t, 21600, trips[0].UpTimestampSeconds)
}

func TestLoadPassengerChainRejectsUnknownStation(t *testing.T) {
	idx := map[string]int{"A": 1}
	_, err := lineio.LoadPassengerChain(strings.NewReader(passengerChainCSV), 0, idx)
	assert.Error(t, err)
}

func TestStationIndexBuildsNameToIDMap(t *testing.T) {
	line, err := lineio.LoadLine(lineconf.ModeSingle, 0,
		strings.NewReader(stationsCSV), strings.NewReader(distancesCSV), strings.NewReader(speedsCSV), nil)
	require.NoError(t, err)
	idx := lineio.StationIndex(line)
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, idx)
}
