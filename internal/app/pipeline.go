// Package app wires the on-device detectors into a single pipeline: the
// accelerometer path feeds the stability and impact detectors, the audio
// path feeds the voice activity segmenter and keyword spotter.
package app

import (
	"fmt"
	"math"
	"sync"

	"github.com/nidsdepoule/roadcore/configs"
	"github.com/nidsdepoule/roadcore/internal/logging"
	"github.com/nidsdepoule/roadcore/pkg/impact"
	"github.com/nidsdepoule/roadcore/pkg/mfcc"
	"github.com/nidsdepoule/roadcore/pkg/spotter"
	"github.com/nidsdepoule/roadcore/pkg/stability"
	"github.com/nidsdepoule/roadcore/pkg/vad"
)

// HitSink receives confirmed pothole impacts.
type HitSink interface {
	OnHit(hit *impact.HitEvent)
}

// HitSinkFunc adapts a function to the HitSink interface.
type HitSinkFunc func(hit *impact.HitEvent)

// OnHit implements HitSink.
func (f HitSinkFunc) OnHit(hit *impact.HitEvent) { f(hit) }

// mountGraceMs keeps the impact path open briefly after the mount drops:
// the pothole shock itself perturbs the gravity estimate one or two samples
// before the magnitude trigger fires, and must not veto its own hit.
const mountGraceMs = 2000

// Pipeline owns the detector chain. Accelerometer samples and audio frames
// arrive on their respective capture goroutines; spotting runs on the
// spotter's own worker so DTW never blocks capture.
type Pipeline struct {
	cfg    *configs.Config
	logger logging.Logger

	stability *stability.Detector
	impact    *impact.Detector

	// Owned by the accelerometer goroutine, no lock.
	lastMountedMs int64
	everMounted   bool

	audioMu   sync.Mutex
	segmenter *vad.Segmenter
	spot      *spotter.Spotter

	hits HitSink
}

// PipelineOptions carries the collaborators the pipeline reports into.
// Keywords is optional; when nil no spotter is constructed and audio frames
// are ignored.
type PipelineOptions struct {
	Hits     HitSink
	Keywords spotter.Sink
	Logger   logging.Logger
}

// NewPipeline builds the detector chain from config. Keyword templates are
// loaded from cfg.Spotter.TemplateDir when a keyword sink is supplied.
func NewPipeline(cfg *configs.Config, opts PipelineOptions) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	p := &Pipeline{
		cfg:       cfg,
		logger:    logger.WithFields(logging.Fields{"component": "pipeline"}),
		stability: stability.NewDetector(cfg.Stability),
		impact:    impact.NewDetector(cfg.Impact),
		hits:      opts.Hits,
	}

	if opts.Keywords != nil {
		extractor, err := mfcc.NewExtractor(cfg.Audio)
		if err != nil {
			return nil, fmt.Errorf("failed to build feature extractor: %w", err)
		}

		profiles, err := spotter.LoadTemplates(cfg.Spotter.TemplateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load keyword templates: %w", err)
		}

		p.segmenter = vad.NewSegmenter(cfg.VAD)
		p.spot = spotter.New(spotter.Config{
			MatchThreshold: cfg.Spotter.MatchThreshold,
			Cooldown:       cfg.Spotter.Cooldown,
			QueueSize:      cfg.Spotter.QueueSize,
		}, extractor, profiles, opts.Keywords)

		p.logger.Info("Keyword spotting enabled", logging.Fields{
			"template_dir": cfg.Spotter.TemplateDir,
			"keywords":     len(profiles),
		})
	}

	return p, nil
}

// Start launches the spotter worker, if any.
func (p *Pipeline) Start() {
	if p.spot != nil {
		p.spot.Start()
	}
}

// Stop shuts the spotter down, draining queued segments first.
func (p *Pipeline) Stop() {
	if p.spot != nil {
		p.spot.Stop()
	}
}

// ProcessAccel consumes one 3-axis accelerometer sample in mg. The gravity
// tracker sees every sample; impact detection only fires while the device is
// mounted, so handheld jolts never become road reports.
func (p *Pipeline) ProcessAccel(timestampMs int64, x, y, z int32, speedMps float32) *impact.HitEvent {
	p.stability.UpdateSpeed(float64(speedMps))
	p.stability.Process(float64(x), float64(y), float64(z))

	if p.stability.IsMounted() {
		p.lastMountedMs = timestampMs
		p.everMounted = true
	}

	magnitude := int32(math.Round(math.Sqrt(
		float64(x)*float64(x) + float64(y)*float64(y) + float64(z)*float64(z))))

	hit := p.impact.Process(timestampMs, magnitude, speedMps)
	if hit == nil {
		return nil
	}

	if !p.everMounted || timestampMs-p.lastMountedMs > mountGraceMs {
		p.logger.Debug("Impact discarded, device not mounted", logging.Fields{
			"timestamp_ms": hit.TimestampMs,
			"peak_mg":      hit.PeakMagnitudeMg,
		})
		return nil
	}

	p.logger.Info("Pothole impact detected", logging.Fields{
		"timestamp_ms": hit.TimestampMs,
		"peak_mg":      hit.PeakMagnitudeMg,
		"severity":     hit.Severity,
		"duration_ms":  hit.DurationMs,
	})

	if p.hits != nil {
		p.hits.OnHit(hit)
	}
	return hit
}

// PushAudio consumes one PCM frame from the microphone capture goroutine.
// Completed speech segments are handed to the spotter queue; when the queue
// is full the segment is dropped rather than stalling capture.
func (p *Pipeline) PushAudio(frame []int16) error {
	if p.spot == nil {
		return nil
	}

	p.audioMu.Lock()
	segment, err := p.segmenter.Push(frame)
	p.audioMu.Unlock()
	if err != nil {
		return err
	}
	if segment == nil {
		return nil
	}

	// Enqueue drops and logs when the queue is full; capture never stalls.
	p.spot.Enqueue(segment)
	return nil
}

// IsMounted reports the current car-mount state.
func (p *Pipeline) IsMounted() bool {
	return p.stability.IsMounted()
}

// Mount exposes the gravity estimate for diagnostics.
func (p *Pipeline) Mount() stability.GravityEstimate {
	return p.stability.Estimate()
}

// Reset clears all detector state, as on an app foreground/background cycle.
func (p *Pipeline) Reset() {
	p.stability.Reset()
	p.impact.Reset()
	p.lastMountedMs = 0
	p.everMounted = false
	if p.segmenter != nil {
		p.audioMu.Lock()
		p.segmenter.Reset()
		p.audioMu.Unlock()
	}
}
