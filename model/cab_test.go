package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shivirity/busimulator/model"
)

func TestCabRecordOccupancyAggregates(t *testing.T) {
	c := &model.CabRecord{ID: 1, Capacity: 20}
	c.RecordDeparture(100, 5)
	c.RecordDeparture(200, 15)
	c.RecordDeparture(300, 10)

	assert.Equal(t, 15, c.MaxOccupancy())
	assert.InDelta(t, 10.0, c.MeanOccupancy(), 1e-9)
}

func TestCabRecordMeanOccupancyInWindowKeysOnFirstDeparture(t *testing.T) {
	c := &model.CabRecord{ID: 1, Capacity: 20}
	c.RecordDeparture(7*3600+100, 8)
	c.RecordDeparture(7*3600+400, 12)

	mean, ok := c.MeanOccupancyInWindow(7*3600, 9*3600)
	assert.True(t, ok)
	assert.InDelta(t, 10.0, mean, 1e-9)

	_, ok = c.MeanOccupancyInWindow(10*3600, 12*3600)
	assert.False(t, ok)
}

func TestCabRecordEmptyOccupancy(t *testing.T) {
	c := &model.CabRecord{ID: 1, Capacity: 20}
	assert.Equal(t, 0, c.MaxOccupancy())
	assert.Equal(t, 0.0, c.MeanOccupancy())
	_, ok := c.MeanOccupancyInWindow(0, 100)
	assert.False(t, ok)
}
