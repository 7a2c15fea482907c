// Package stability decides whether the device is rigidly mounted in a
// vehicle by tracking the smoothed gravity vector of the raw 3-axis
// accelerometer stream, gated by speed.
package stability

import (
	"math"
	"sync"

	"github.com/nidsdepoule/roadcore/internal/logging"
)

// gravityAlpha is the EMA smoothing constant: g' = alpha*g + (1-alpha)*sample.
const gravityAlpha = 0.8

// Config holds the mount-decision tunables.
type Config struct {
	StableSeconds int     `mapstructure:"stable_seconds"` // qualifying time before mounting
	SampleRateHz  int     `mapstructure:"sample_rate_hz"` // accelerometer rate
	MaxDriftMg    float64 `mapstructure:"max_drift_mg"`   // gravity drift that breaks stability
	MinSpeedMps   float64 `mapstructure:"min_speed_mps"`  // speed gate for mounting
}

// DefaultConfig returns the on-device tuning: 3 s of stability at 50 Hz,
// 150 mg drift tolerance, mounting only above walking speed.
func DefaultConfig() Config {
	return Config{
		StableSeconds: 3,
		SampleRateHz:  50,
		MaxDriftMg:    150,
		MinSpeedMps:   2.0,
	}
}

// GravityEstimate is the exponentially-smoothed gravity vector plus the
// stability bookkeeping derived from it.
type GravityEstimate struct {
	Gx, Gy, Gz  float64
	StableCount int
	IsMounted   bool
}

// Detector maintains the gravity estimate. State is mutex-guarded because
// sensor delivery and speed updates arrive from different contexts.
type Detector struct {
	mu          sync.Mutex
	cfg         Config
	requiredCnt int
	estimate    GravityEstimate
	initialized bool
	speedMps    float64
	logger      logging.Logger
}

// NewDetector creates a detector; zero config fields take defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.StableSeconds == 0 {
		cfg.StableSeconds = def.StableSeconds
	}
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = def.SampleRateHz
	}
	if cfg.MaxDriftMg == 0 {
		cfg.MaxDriftMg = def.MaxDriftMg
	}
	if cfg.MinSpeedMps == 0 {
		cfg.MinSpeedMps = def.MinSpeedMps
	}

	return &Detector{
		cfg:         cfg,
		requiredCnt: cfg.StableSeconds * cfg.SampleRateHz,
		logger: logging.WithFields(logging.Fields{
			"component": "stability_detector",
		}),
	}
}

// Process ingests one raw 3-axis sample in milli-g.
func (d *Detector) Process(x, y, z float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// First sample seeds the estimate directly; evaluating drift against an
	// uninitialized vector would destabilize spuriously.
	if !d.initialized {
		d.estimate.Gx, d.estimate.Gy, d.estimate.Gz = x, y, z
		d.initialized = true
		return
	}

	oldX, oldY, oldZ := d.estimate.Gx, d.estimate.Gy, d.estimate.Gz
	d.estimate.Gx = gravityAlpha*oldX + (1-gravityAlpha)*x
	d.estimate.Gy = gravityAlpha*oldY + (1-gravityAlpha)*y
	d.estimate.Gz = gravityAlpha*oldZ + (1-gravityAlpha)*z

	dx := d.estimate.Gx - oldX
	dy := d.estimate.Gy - oldY
	dz := d.estimate.Gz - oldZ
	drift := math.Sqrt(dx*dx + dy*dy + dz*dz)

	if drift >= d.cfg.MaxDriftMg {
		// A real reorientation un-mounts immediately, counter regardless.
		d.estimate.StableCount = 0
		if d.estimate.IsMounted {
			d.logger.Info("device un-mounted", logging.Fields{
				"drift_mg": drift,
			})
		}
		d.estimate.IsMounted = false
		return
	}

	d.estimate.StableCount++
	if !d.estimate.IsMounted && d.estimate.StableCount >= d.requiredCnt && d.speedMps >= d.cfg.MinSpeedMps {
		d.estimate.IsMounted = true
		d.logger.Info("device mounted", logging.Fields{
			"stable_count": d.estimate.StableCount,
			"speed_mps":    d.speedMps,
		})
	}
}

// UpdateSpeed records the last known speed. Losing speed does not un-mount;
// mounting is deliberately hysteretic to tolerate traffic stops.
func (d *Detector) UpdateSpeed(speedMps float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speedMps = speedMps
}

// IsMounted reports the current mount state.
func (d *Detector) IsMounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.estimate.IsMounted
}

// Estimate returns a copy of the current gravity estimate.
func (d *Detector) Estimate() GravityEstimate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.estimate
}

// Reset clears all state back to pre-initialization.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.estimate = GravityEstimate{}
	d.initialized = false
	d.speedMps = 0
}
