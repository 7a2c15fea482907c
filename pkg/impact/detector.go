// Package impact detects road impacts ("pothole hits") from an accelerometer
// magnitude stream using an adaptive median baseline with relative and
// absolute trigger floors.
package impact

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/nidsdepoule/roadcore/internal/logging"
)

// AccelSample is one accelerometer magnitude reading in milli-g.
type AccelSample struct {
	TimestampMs int64 `json:"timestamp_ms"`
	MagnitudeMg int32 `json:"magnitude_mg"`
}

// HitEvent is the immutable result of one detection. Ownership transfers to
// the caller; the detector keeps no reference.
type HitEvent struct {
	TimestampMs            int64   `json:"timestamp_ms"`
	PeakMagnitudeMg        int32   `json:"peak_magnitude_mg"`
	DurationMs             int64   `json:"duration_ms"`
	Severity               int     `json:"severity"`
	Waveform               []int32 `json:"waveform"`
	BaselineMg             int32   `json:"baseline_mg"`
	PeakToBaselineRatioPct int32   `json:"peak_to_baseline_ratio_pct"`
}

// Config holds the detection tunables.
type Config struct {
	ThresholdFactor float64 `mapstructure:"threshold_factor"`  // relative trigger: mag >= baseline * factor
	MinMagnitudeMg  int32   `mapstructure:"min_magnitude_mg"`  // absolute floor against hand-held jitter
	CooldownMs      int64   `mapstructure:"cooldown_ms"`       // minimum spacing between events
	WaveformSamples int     `mapstructure:"waveform_samples"`  // fixed HitEvent waveform length
	BufferSize      int     `mapstructure:"buffer_size"`       // ring capacity (~30 s at 50 Hz)
	MinSamples      int     `mapstructure:"min_samples"`       // baseline not meaningful below this
}

// DefaultConfig returns the tuning used on-device: 50 Hz stream, 30 s ring.
func DefaultConfig() Config {
	return Config{
		ThresholdFactor: 2.5,
		MinMagnitudeMg:  1800,
		CooldownMs:      3000,
		WaveformSamples: 150,
		BufferSize:      1500,
		MinSamples:      10,
	}
}

// peakSearchWindow bounds the peak search to the most recent samples so the
// extracted waveform localizes the current event, not a stale one.
const peakSearchWindow = 50

// durationFactor scales the baseline for the elevated-region duration scan.
const durationFactor = 1.5

// Detector consumes an accelerometer magnitude stream and emits HitEvents.
// The ring buffer is guarded by a mutex because sensor delivery and manual
// Recent snapshots may race.
type Detector struct {
	mu        sync.Mutex
	cfg       Config
	ring      *sampleRing
	lastHitMs int64
	hasHit    bool
	logger    logging.Logger
}

// NewDetector creates a detector; zero config fields take defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.ThresholdFactor == 0 {
		cfg.ThresholdFactor = def.ThresholdFactor
	}
	if cfg.MinMagnitudeMg == 0 {
		cfg.MinMagnitudeMg = def.MinMagnitudeMg
	}
	if cfg.CooldownMs == 0 {
		cfg.CooldownMs = def.CooldownMs
	}
	if cfg.WaveformSamples == 0 {
		cfg.WaveformSamples = def.WaveformSamples
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = def.MinSamples
	}

	return &Detector{
		cfg:  cfg,
		ring: newSampleRing(cfg.BufferSize),
		logger: logging.WithFields(logging.Fields{
			"component": "impact_detector",
		}),
	}
}

// Process ingests one sample and returns a HitEvent if an impact is detected,
// nil otherwise. speedMps is accepted for future speed-aware thresholds and
// is intentionally unused in the trigger decision.
func (d *Detector) Process(timestampMs int64, magnitudeMg int32, speedMps float32) *HitEvent {
	_ = speedMps // reserved: speed-aware thresholding hook

	d.mu.Lock()
	defer d.mu.Unlock()

	d.ring.Push(AccelSample{TimestampMs: timestampMs, MagnitudeMg: magnitudeMg})

	if d.ring.Len() < d.cfg.MinSamples {
		return nil
	}
	if d.hasHit && timestampMs-d.lastHitMs < d.cfg.CooldownMs {
		return nil
	}

	samples := d.ring.Snapshot()
	baseline := medianAbsMagnitude(samples)

	mag := math.Abs(float64(magnitudeMg))
	if mag < baseline*d.cfg.ThresholdFactor || magnitudeMg < d.cfg.MinMagnitudeMg {
		return nil
	}

	d.lastHitMs = timestampMs
	d.hasHit = true

	peakIdx := d.findRecentPeak(samples)
	peak := samples[peakIdx].MagnitudeMg
	ratio := float64(peak) / math.Max(baseline, 1)

	event := &HitEvent{
		TimestampMs:            timestampMs,
		PeakMagnitudeMg:        peak,
		DurationMs:             d.estimateDuration(samples, baseline),
		Severity:               classifySeverity(ratio),
		Waveform:               d.extractWaveform(samples, peakIdx),
		BaselineMg:             int32(math.Round(baseline)),
		PeakToBaselineRatioPct: int32(math.Round(ratio * 100)),
	}

	d.logger.Debug("impact detected", logging.Fields{
		"timestamp_ms": timestampMs,
		"peak_mg":      peak,
		"baseline_mg":  event.BaselineMg,
		"severity":     event.Severity,
		"duration_ms":  event.DurationMs,
	})

	return event
}

// Recent returns a snapshot of the samples within durationMs of the newest
// buffered sample.
func (d *Detector) Recent(durationMs int64) []AccelSample {
	d.mu.Lock()
	defer d.mu.Unlock()

	samples := d.ring.Snapshot()
	if len(samples) == 0 {
		return nil
	}

	cutoff := samples[len(samples)-1].TimestampMs - durationMs
	start := sort.Search(len(samples), func(i int) bool {
		return samples[i].TimestampMs >= cutoff
	})
	return samples[start:]
}

// Reset clears the buffer and the cooldown state.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ring.Reset()
	d.lastHitMs = 0
	d.hasHit = false
}

// medianAbsMagnitude computes the median of absolute magnitudes over the
// whole buffer. The O(n log n) sort per call is a deliberate tradeoff: the
// buffer is bounded at ~1500 samples and arrives at 50 Hz.
func medianAbsMagnitude(samples []AccelSample) float64 {
	mags := make([]float64, len(samples))
	for i, s := range samples {
		mags[i] = math.Abs(float64(s.MagnitudeMg))
	}
	sort.Float64s(mags)
	return stat.Quantile(0.5, stat.Empirical, mags, nil)
}

// findRecentPeak returns the index of the largest absolute magnitude among
// the most recent peakSearchWindow samples.
func (d *Detector) findRecentPeak(samples []AccelSample) int {
	start := max(0, len(samples)-peakSearchWindow)
	peakIdx := start
	peakVal := math.Abs(float64(samples[start].MagnitudeMg))
	for i := start + 1; i < len(samples); i++ {
		if v := math.Abs(float64(samples[i].MagnitudeMg)); v > peakVal {
			peakVal = v
			peakIdx = i
		}
	}
	return peakIdx
}

// extractWaveform copies a fixed-length window centered on the peak,
// zero-padding where the window crosses a buffer edge.
func (d *Detector) extractWaveform(samples []AccelSample, peakIdx int) []int32 {
	waveform := make([]int32, d.cfg.WaveformSamples)
	half := d.cfg.WaveformSamples / 2
	for i := range waveform {
		src := peakIdx - half + i
		if src >= 0 && src < len(samples) {
			waveform[i] = samples[src].MagnitudeMg
		}
	}
	return waveform
}

// estimateDuration finds the most recent elevated region — magnitudes above
// baseline * durationFactor — scanning backward from the buffer end, and
// returns the timestamp delta across it. Zero when nothing is elevated.
func (d *Detector) estimateDuration(samples []AccelSample, baseline float64) int64 {
	threshold := baseline * durationFactor

	end := -1
	for i := len(samples) - 1; i >= 0; i-- {
		if math.Abs(float64(samples[i].MagnitudeMg)) > threshold {
			end = i
			break
		}
	}
	if end < 0 {
		return 0
	}

	start := end
	for i := end - 1; i >= 0; i-- {
		if math.Abs(float64(samples[i].MagnitudeMg)) <= threshold {
			break
		}
		start = i
	}

	return samples[end].TimestampMs - samples[start].TimestampMs
}

// classifySeverity maps peak/baseline ratio to a 1..3 tier. Boundaries are
// exclusive-below: exactly 3.0 is severity 2, exactly 5.0 is severity 3.
func classifySeverity(ratio float64) int {
	switch {
	case ratio < 3.0:
		return 1
	case ratio < 5.0:
		return 2
	default:
		return 3
	}
}
