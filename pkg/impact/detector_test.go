package impact

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIntervalMs = 20 // 50 Hz

// feedSmooth pushes n baseline samples within ±5% of level and requires that
// none of them triggers. Returns the next timestamp.
func feedSmooth(t *testing.T, d *Detector, rng *rand.Rand, startMs int64, n int, level int32) int64 {
	t.Helper()
	ts := startMs
	for range n {
		jitter := 1 + (rng.Float64()*0.1 - 0.05)
		mag := int32(float64(level) * jitter)
		hit := d.Process(ts, mag, 0)
		require.Nil(t, hit, "smooth road must never trigger (ts=%d mag=%d)", ts, mag)
		ts += sampleIntervalMs
	}
	return ts
}

func TestSmoothRoadNeverTriggers(t *testing.T) {
	d := NewDetector(DefaultConfig())
	rng := rand.New(rand.NewSource(4))
	feedSmooth(t, d, rng, 0, 3000, 1000)
}

func TestSingleSpikeDetectedOnce(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)
	rng := rand.New(rand.NewSource(8))

	ts := feedSmooth(t, d, rng, 0, 200, 1000)

	hit := d.Process(ts, 4000, 0)
	require.NotNil(t, hit)
	assert.Equal(t, ts, hit.TimestampMs)
	assert.Equal(t, int32(4000), hit.PeakMagnitudeMg)
	assert.InDelta(t, 1000, hit.BaselineMg, 60)
	assert.InDelta(t, 400, hit.PeakToBaselineRatioPct, 30)
	ts += sampleIntervalMs

	// Identical spike inside the cooldown window is suppressed.
	suppressed := d.Process(ts, 4000, 0)
	assert.Nil(t, suppressed)

	// Settle past the cooldown on smooth road, then spike again.
	settleSamples := int(cfg.CooldownMs/sampleIntervalMs) + 5
	ts = feedSmooth(t, d, rng, ts+sampleIntervalMs, settleSamples, 1000)

	again := d.Process(ts, 4000, 0)
	assert.NotNil(t, again)
}

func TestMinimumSampleCount(t *testing.T) {
	d := NewDetector(DefaultConfig())

	// A huge spike with fewer than MinSamples buffered yields nothing.
	for i := range 9 {
		hit := d.Process(int64(i)*sampleIntervalMs, 8000, 0)
		assert.Nil(t, hit)
	}
}

func TestAbsoluteFloorBlocksJitter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinMagnitudeMg = 1800
	d := NewDetector(cfg)
	rng := rand.New(rand.NewSource(12))

	// Near-zero baseline: relative factor alone would fire constantly.
	ts := feedSmooth(t, d, rng, 0, 100, 100)
	hit := d.Process(ts, 900, 0) // 9x baseline but under the floor
	assert.Nil(t, hit)
}

func TestWaveformLengthAlwaysFixed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 10
	d := NewDetector(cfg)

	// Spike right after the minimum sample count: the peak sits within
	// WaveformSamples/2 of the stream start, so the left side zero-pads.
	ts := int64(0)
	for range 10 {
		d.Process(ts, 1000, 0)
		ts += sampleIntervalMs
	}
	hit := d.Process(ts, 5000, 0)
	require.NotNil(t, hit)
	assert.Len(t, hit.Waveform, cfg.WaveformSamples)

	// Peak value present, leading edge zero-padded.
	assert.Contains(t, hit.Waveform, int32(5000))
	assert.Equal(t, int32(0), hit.Waveform[0])
}

func TestSeverityBoundaries(t *testing.T) {
	cases := []struct {
		ratio float64
		want  int
	}{
		{2.99, 1},
		{3.00, 2},
		{4.99, 2},
		{5.00, 3},
		{9.0, 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifySeverity(tc.ratio), "ratio %.2f", tc.ratio)
	}
}

func TestSeverityFromStream(t *testing.T) {
	d := NewDetector(DefaultConfig())
	rng := rand.New(rand.NewSource(17))

	ts := feedSmooth(t, d, rng, 0, 500, 1000)
	hit := d.Process(ts, 6000, 0)
	require.NotNil(t, hit)

	// Peak around 6x a ~1000 mg baseline.
	assert.Equal(t, 3, hit.Severity)
}

func TestDurationEstimate(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDetector(cfg)
	rng := rand.New(rand.NewSource(23))

	ts := feedSmooth(t, d, rng, 0, 300, 1000)

	// Elevated run of 4 samples before the trigger sample.
	for range 4 {
		// Below the trigger threshold but above baseline*1.5.
		require.Nil(t, d.Process(ts, 1700, 0))
		ts += sampleIntervalMs
	}
	hit := d.Process(ts, 4000, 0)
	require.NotNil(t, hit)

	// Elevated region spans the 4 run samples plus the peak itself.
	assert.Equal(t, int64(4*sampleIntervalMs), hit.DurationMs)
}

func TestRecentWindow(t *testing.T) {
	d := NewDetector(DefaultConfig())
	for i := range int64(100) {
		d.Process(i*sampleIntervalMs, 1000, 0)
	}

	recent := d.Recent(200)
	require.NotEmpty(t, recent)
	last := recent[len(recent)-1]
	first := recent[0]
	assert.Equal(t, int64(99*sampleIntervalMs), last.TimestampMs)
	assert.GreaterOrEqual(t, first.TimestampMs, last.TimestampMs-200)
	assert.Len(t, recent, 11) // 200 ms at 20 ms spacing, inclusive cutoff
}

func TestResetClearsCooldownAndBuffer(t *testing.T) {
	d := NewDetector(DefaultConfig())
	rng := rand.New(rand.NewSource(31))

	ts := feedSmooth(t, d, rng, 0, 200, 1000)
	require.NotNil(t, d.Process(ts, 4000, 0))

	d.Reset()
	assert.Empty(t, d.Recent(10_000))

	// After reset the buffer must refill before anything triggers.
	hit := d.Process(ts+sampleIntervalMs, 8000, 0)
	assert.Nil(t, hit)
}

func TestRingEviction(t *testing.T) {
	r := newSampleRing(4)
	for i := range int64(6) {
		r.Push(AccelSample{TimestampMs: i, MagnitudeMg: int32(i)})
	}
	assert.Equal(t, 4, r.Len())

	snap := r.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, int64(2), snap[0].TimestampMs)
	assert.Equal(t, int64(5), snap[3].TimestampMs)
}
