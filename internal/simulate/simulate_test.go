package simulate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepMovesPosition(t *testing.T) {
	d := NewDevice(48.8566, 2.3522, 1)
	lat, lon := d.Lat, d.Lon

	for i := 0; i < 10; i++ {
		d.Step(1.0)
	}

	assert.True(t, lat != d.Lat || lon != d.Lon, "position should drift")
	assert.GreaterOrEqual(t, d.SpeedMps, 2.0)
	assert.LessOrEqual(t, d.SpeedMps, 33.0)
	assert.GreaterOrEqual(t, d.BearingDeg, 0.0)
	assert.Less(t, d.BearingDeg, 360.0)
}

func TestSmoothMagnitudeStaysNearBaseline(t *testing.T) {
	d := NewDevice(0, 0, 2)
	for i := 0; i < 1000; i++ {
		m := d.SmoothMagnitude()
		assert.GreaterOrEqual(t, m, int32(940))
		assert.LessOrEqual(t, m, int32(1060))
	}
}

func TestHitPeakRanges(t *testing.T) {
	d := NewDevice(0, 0, 3)
	for i := 0; i < 200; i++ {
		assert.InDelta(t, 2500, d.HitPeakMg(1), 500)
		assert.InDelta(t, 4000, d.HitPeakMg(2), 1000)
		assert.InDelta(t, 6500, d.HitPeakMg(3), 1500)
	}
}

func TestRandomSeverityCoversTiers(t *testing.T) {
	d := NewDevice(0, 0, 4)
	seen := map[int]int{}
	for i := 0; i < 1000; i++ {
		s := d.RandomSeverity()
		require.GreaterOrEqual(t, s, 1)
		require.LessOrEqual(t, s, 3)
		seen[s]++
	}
	assert.Greater(t, seen[1], seen[3], "minor hits should dominate")
}

func TestWaveformShape(t *testing.T) {
	d := NewDevice(0, 0, 5)
	peak := int32(5000)
	w := d.Waveform(peak, 51)
	require.Len(t, w, 51)

	maxIdx, maxVal := 0, int32(math.MinInt32)
	for i, v := range w {
		if v > maxVal {
			maxIdx, maxVal = i, v
		}
	}
	assert.InDelta(t, 25, maxIdx, 3, "peak should sit near the center")
	assert.InDelta(t, float64(peak), float64(maxVal), 300)
	// Edges decay back toward the road baseline.
	assert.Less(t, w[0], peak/2)
	assert.Less(t, w[50], peak/2)
}
