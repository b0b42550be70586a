// Package config holds every externally configurable constant named in
// spec.md §6 and grounded on original_source/consts.py, loadable from a
// YAML scenario file via github.com/spf13/viper (the way
// shivamshaw23-Hintro layers its service config) with CLI flag overrides
// applied by the caller (cmd/simrun uses github.com/spf13/cobra).
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Scenario is the full constant surface a run needs, defaulted from
// consts.py and overridable per scenario file.
type Scenario struct {
	Mode      string `mapstructure:"mode"` // baseline | single | multi | multi_order
	Direction int    `mapstructure:"direction"`
	Seed      int64  `mapstructure:"seed"`

	// Timing (seconds since midnight).
	SimStartT  int `mapstructure:"sim_start_t"`
	SimEndT    int `mapstructure:"sim_end_t"`
	LastBusT   int `mapstructure:"last_bus_t"`
	HardCapT   int `mapstructure:"hard_cap_t"`
	MinStep    int `mapstructure:"min_step"`

	EarlyPeakStart int `mapstructure:"early_peak_start"`
	EarlyPeakEnd   int `mapstructure:"early_peak_end"`
	NoonStart      int `mapstructure:"noon_start"`
	NoonEnd        int `mapstructure:"noon_end"`
	LatePeakStart  int `mapstructure:"late_peak_start"`
	LatePeakEnd    int `mapstructure:"late_peak_end"`

	// Capacities.
	LargeBusCapacity int `mapstructure:"large_bus_capacity"`
	LargeBusSeats    int `mapstructure:"large_bus_seats"`
	SmallCabCapacity int `mapstructure:"small_cab_capacity"`
	SmallCabSeats    int `mapstructure:"small_cab_seats"`

	// Dwell times (seconds): normal/high-peak, old (large-cab)/new (small-cab).
	OldStopNormal int `mapstructure:"old_stop_normal"`
	OldStopPeak   int `mapstructure:"old_stop_peak"`
	NewStopNormal int `mapstructure:"new_stop_normal"`
	NewStopPeak   int `mapstructure:"new_stop_peak"`

	// Energy (kWh per meter) and wage.
	ConsumpSpeedOld     float64 `mapstructure:"consump_speed_old"`
	ConsumpSpeedNew     float64 `mapstructure:"consump_speed_new"`
	ConsumpConditionOld float64 `mapstructure:"consump_condition_old"`
	ConsumpConditionNew float64 `mapstructure:"consump_condition_new"`
	DriverWageOld       float64 `mapstructure:"driver_wage_old"`
	DriverWageNew       float64 `mapstructure:"driver_wage_new"`

	// Dispatch.
	BaselineHeadwaySeconds int `mapstructure:"baseline_headway_seconds"`

	// Travel distance fix and passenger walking speed.
	DistanceFixMeters float64 `mapstructure:"distance_fix_meters"`
	WalkSpeedMps      float64 `mapstructure:"walk_speed_mps"`

	// Split/merge.
	MinSepPassNum      int     `mapstructure:"min_sep_pass_num"`
	SepDurationSeconds int     `mapstructure:"sep_duration_seconds"`
	SepDistMeters      float64 `mapstructure:"sep_dist_meters"`
	RateCombRoute      float64 `mapstructure:"rate_comb_route"`
	RateFrontPass      float64 `mapstructure:"rate_front_pass"`
	RateRearPass       float64 `mapstructure:"rate_rear_pass"`
	CombForeStations   int     `mapstructure:"comb_fore_stations"`
	CombDurationSeconds int    `mapstructure:"comb_duration_seconds"`
	CombDistMeters     float64 `mapstructure:"comb_dist_meters"`
	MaxCabsPerConsist  int     `mapstructure:"max_cabs_per_consist"`
	NumBehindStations  int     `mapstructure:"num_behind_stations"`

	// Multi-mode routing thresholds.
	MainLineStopTurnThreshold     int     `mapstructure:"main_line_stop_turn_threshold"`
	MainLineStopTurnRateThreshold float64 `mapstructure:"main_line_stop_turn_rate_threshold"`
	MainLineTurnMaxPassNum        int     `mapstructure:"main_line_turn_max_pass_num"`
	OnlyMainLineStopThreshold     int     `mapstructure:"only_main_line_stop_threshold"`
	RateMaxStop                   float64 `mapstructure:"rate_max_stop"`

	// Multi-mode routing rule: "down_first" or "up_first" (spec §4.3).
	RouteRule string `mapstructure:"route_rule"`

	// multi_order crowding marks.
	CrowdIntervalSeconds int  `mapstructure:"crowd_interval_seconds"`
	CrowdLowerBound      int  `mapstructure:"crowd_lower_bound"`
	CrowdUpperBound      int  `mapstructure:"crowd_upper_bound"`
	CanTurnAtPeakHours   bool `mapstructure:"can_turn_at_peak_hours"`

	// Line loader jitter.
	MaxStationWaitSeconds int     `mapstructure:"max_station_wait_seconds"`
	BoxLatHalfWidth       float64 `mapstructure:"box_lat_half_width"`
	BoxLonHalfWidth       float64 `mapstructure:"box_lon_half_width"`

	// Side-branch segmentation count K (yielding K-1 intermediate stops).
	SideBranchSegments int `mapstructure:"side_branch_segments"`

	// Input file paths.
	StationsCSV      string `mapstructure:"stations_csv"`
	DistancesCSV     string `mapstructure:"distances_csv"`
	SpeedsCSV        string `mapstructure:"speeds_csv"`
	PassengersCSV    string `mapstructure:"passengers_csv"`
	DepCountCSV      string `mapstructure:"dep_count_csv"`
	DepDurationCSV   string `mapstructure:"dep_duration_csv"`
	SideBranchesCSV  string `mapstructure:"side_branches_csv"`
}

// Default returns the constant surface with every value from consts.py.
func Default() Scenario {
	return Scenario{
		Mode:      "single",
		Direction: 0,
		Seed:      42,

		SimStartT: 6 * 3600,
		SimEndT:   int(21.5 * 3600),
		LastBusT:  22 * 3600,
		HardCapT:  26 * 3600,
		MinStep:   2,

		EarlyPeakStart: 7 * 3600,
		EarlyPeakEnd:   9 * 3600,
		NoonStart:      11 * 3600,
		NoonEnd:        13 * 3600,
		LatePeakStart:  17 * 3600,
		LatePeakEnd:    19 * 3600,

		LargeBusCapacity: 90,
		LargeBusSeats:    31,
		SmallCabCapacity: 20,
		SmallCabSeats:    10,

		OldStopNormal: 9 + 15 + 9,
		OldStopPeak:   10 + 30 + 10,
		NewStopNormal: 8 + 10 + 8,
		NewStopPeak:   9 + 20 + 9,

		ConsumpSpeedOld:     52.5 / 100000,
		ConsumpSpeedNew:     25.6 / 100000,
		ConsumpConditionOld: 98.4 / 100000,
		ConsumpConditionNew: 39.0 / 100000,
		DriverWageOld:       120000,
		DriverWageNew:       100000,

		BaselineHeadwaySeconds: 10 * 60,

		RouteRule: "down_first",

		DistanceFixMeters: 50,
		WalkSpeedMps:      1.4,

		MinSepPassNum:       0,
		SepDurationSeconds:  14,
		SepDistMeters:       155,
		RateCombRoute:       0.5,
		RateFrontPass:       0.3,
		RateRearPass:        0.5,
		CombForeStations:    2,
		CombDurationSeconds: 22,
		CombDistMeters:      183,
		MaxCabsPerConsist:   3,
		NumBehindStations:   1,

		MainLineStopTurnThreshold:     2,
		MainLineStopTurnRateThreshold: 0.2,
		MainLineTurnMaxPassNum:        9,
		OnlyMainLineStopThreshold:     0,
		RateMaxStop:                   1,

		CrowdIntervalSeconds: 10 * 60,
		CrowdLowerBound:      8,
		CrowdUpperBound:      100,
		CanTurnAtPeakHours:   false,

		MaxStationWaitSeconds: 10 * 60,
		BoxLatHalfWidth:       0.00584909,
		BoxLonHalfWidth:       0.00898311,

		SideBranchSegments: 5,
	}
}

// PeakWindows returns the two peak windows (early and late), used by the
// multi_order crowding rule.
func (s Scenario) PeakWindows() [][2]int {
	return [][2]int{
		{s.EarlyPeakStart, s.EarlyPeakEnd},
		{s.LatePeakStart, s.LatePeakEnd},
	}
}

// StatsWindows names the three occupancy-statistics windows (spec §6).
func (s Scenario) StatsWindows() map[string][2]int {
	return map[string][2]int{
		"early": {6 * 3600, 8 * 3600},
		"noon":  {10 * 3600, 12 * 3600},
		"late":  {16 * 3600, 18 * 3600},
	}
}

// StopTime returns the dwell duration for the given mode at time t,
// switching between normal/peak by time of day (spec §4.1 "stop_time").
func (s Scenario) StopTime(mode string, t int) int {
	peak := (t >= s.EarlyPeakStart && t < s.EarlyPeakEnd) || (t >= s.LatePeakStart && t < s.LatePeakEnd)
	if mode == "baseline" {
		if peak {
			return s.OldStopPeak
		}
		return s.OldStopNormal
	}
	if peak {
		return s.NewStopPeak
	}
	return s.NewStopNormal
}

// Load reads a YAML scenario file over the defaults using viper, the way
// shivamshaw23-Hintro layers per-service config.
func Load(path string) (Scenario, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return s, err
	}
	if err := v.Unmarshal(&s); err != nil {
		return s, err
	}
	return s, nil
}

// SimDuration is a convenience for logging/reporting.
func (s Scenario) SimDuration() time.Duration {
	return time.Duration(s.HardCapT-s.SimStartT) * time.Second
}
