package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivirity/busimulator/model"
)

func TestTrunkLocationRoundTrip(t *testing.T) {
	loc := model.Trunk(7, model.PhaseRunning)
	assert.True(t, loc.IsTrunk())
	assert.Equal(t, 7, loc.MainComponent())
	assert.Equal(t, "7@5", loc.String())

	parsed, err := model.ParseLocation(loc.String())
	require.NoError(t, err)
	assert.Equal(t, loc, parsed)
}

func TestSideStopLocationRoundTrip(t *testing.T) {
	loc := model.SideStop(3, 2, 1, model.PhaseArrived)
	assert.False(t, loc.IsTrunk())
	assert.Equal(t, 3, loc.MainComponent())
	assert.Equal(t, "3#2#1#0", loc.String())

	parsed, err := model.ParseLocation(loc.String())
	require.NoError(t, err)
	assert.Equal(t, loc, parsed)
}

func TestParseLocationRejectsGarbage(t *testing.T) {
	_, err := model.ParseLocation("not-a-location")
	assert.Error(t, err)
}

func TestLocationNumberOrdersRunningBeforeArrived(t *testing.T) {
	arrived := model.Trunk(2, model.PhaseArrived)
	running := model.Trunk(1, model.PhaseRunning)
	assert.Greater(t, arrived.Number(), running.Number())
}
