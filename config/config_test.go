package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivirity/busimulator/config"
)

func TestDefaultScenarioIsSingleMode(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "single", cfg.Mode)
	assert.Equal(t, "down_first", cfg.RouteRule)
	assert.Greater(t, cfg.SimEndT, cfg.SimStartT)
}

func TestStopTimeSwitchesOnPeakAndMode(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, cfg.OldStopNormal, cfg.StopTime("baseline", cfg.SimStartT))
	assert.Equal(t, cfg.OldStopPeak, cfg.StopTime("baseline", cfg.EarlyPeakStart))
	assert.Equal(t, cfg.NewStopNormal, cfg.StopTime("single", cfg.SimStartT))
	assert.Equal(t, cfg.NewStopPeak, cfg.StopTime("single", cfg.LatePeakStart))
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadOverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	yaml := "mode: multi\nroute_rule: up_first\nseed: 7\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "multi", cfg.Mode)
	assert.Equal(t, "up_first", cfg.RouteRule)
	assert.Equal(t, int64(7), cfg.Seed)
	// Untouched fields keep their defaults.
	assert.Equal(t, config.Default().LargeBusCapacity, cfg.LargeBusCapacity)
}

func TestPeakWindowsAndStatsWindows(t *testing.T) {
	cfg := config.Default()
	assert.Len(t, cfg.PeakWindows(), 2)
	windows := cfg.StatsWindows()
	assert.Contains(t, windows, "early")
	assert.Contains(t, windows, "noon")
	assert.Contains(t, windows, "late")
}
