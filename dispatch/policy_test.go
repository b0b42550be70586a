package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shivirity/busimulator/config"
	"github.com/shivirity/busimulator/dispatch"
)

func TestBaselineDispatchFiresAtFixedHeadway(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "baseline"
	cfg.LastBusT = 24 * 3600
	p := dispatch.New(cfg, [24]int{}, [24]int{})

	assert.True(t, p.CanDispatch(0)) // first dispatch always forced
	d := p.Decide(0)
	assert.Equal(t, 1, d.CabCount)
	assert.Equal(t, cfg.LargeBusCapacity, d.Capacity)

	assert.False(t, p.CanDispatch(cfg.BaselineHeadwaySeconds-1))
	assert.True(t, p.CanDispatch(cfg.BaselineHeadwaySeconds))
}

func TestSingleModeUsesPerHourDispatchTable(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "single"
	cfg.LastBusT = 24 * 3600
	var depCount, depDuration [24]int
	depCount[6] = 2
	depDuration[6] = 120
	p := dispatch.New(cfg, depCount, depDuration)

	d := p.Decide(6 * 3600)
	assert.Equal(t, 2, d.CabCount)
	assert.Equal(t, cfg.SmallCabCapacity, d.Capacity)

	assert.False(t, p.CanDispatch(6*3600+119))
	assert.True(t, p.CanDispatch(6*3600+120))
}

func TestDispatchCapsCabCountAtMaxCabsPerConsist(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "multi"
	var depCount, depDuration [24]int
	depCount[6] = cfg.MaxCabsPerConsist + 5
	p := dispatch.New(cfg, depCount, depDuration)

	d := p.Decide(6 * 3600)
	assert.Equal(t, cfg.MaxCabsPerConsist, d.CabCount)
}

func TestDispatchNeverFiresPastLastBusT(t *testing.T) {
	cfg := config.Default()
	cfg.LastBusT = 1000
	p := dispatch.New(cfg, [24]int{}, [24]int{})
	assert.False(t, p.CanDispatch(1001))
}
