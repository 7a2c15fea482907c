// Package spotter orchestrates the hands-free keyword pipeline: finalized
// speech segments flow through feature extraction and DTW matching, with
// threshold arbitration and a post-acceptance cooldown.
package spotter

import (
	"math"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/nidsdepoule/roadcore/internal/logging"
	"github.com/nidsdepoule/roadcore/pkg/dtw"
	"github.com/nidsdepoule/roadcore/pkg/mfcc"
	"github.com/nidsdepoule/roadcore/pkg/vad"
)

// Event is an accepted keyword detection.
type Event struct {
	Keyword    string    `json:"keyword"`
	Distance   float64   `json:"distance"`
	Similarity float64   `json:"similarity"`
	Time       time.Time `json:"time"`
}

// Sink receives accepted keyword events. Implementations decouple detection
// from delivery; they must not block for long — the worker goroutine calls
// them inline.
type Sink interface {
	OnKeyword(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// OnKeyword implements Sink.
func (f SinkFunc) OnKeyword(e Event) { f(e) }

// Config holds the arbitration tunables.
type Config struct {
	MatchThreshold float64       `mapstructure:"match_threshold"` // single global distance threshold
	Cooldown       time.Duration `mapstructure:"cooldown"`        // suppression window after acceptance
	QueueSize      int           `mapstructure:"queue_size"`      // bounded segment queue depth
}

// DefaultConfig returns the standard arbitration setup.
func DefaultConfig() Config {
	return Config{
		MatchThreshold: 180,
		Cooldown:       2 * time.Second,
		QueueSize:      8,
	}
}

// Spotter drains a bounded queue of speech segments off the capture
// goroutine and runs the CPU-bound extract/match work on its own worker.
// Templates are read-only after construction.
type Spotter struct {
	cfg       Config
	extractor *mfcc.Extractor
	profiles  map[string][][][]float64
	sink      Sink
	logger    logging.Logger

	queue   chan *vad.Segment
	wg      conc.WaitGroup
	started bool

	lastAccept time.Time
	accepted   bool
	now        func() time.Time
}

// New creates a spotter over the given template profiles. The profile map
// must not be mutated after this call.
func New(cfg Config, extractor *mfcc.Extractor, profiles map[string][][][]float64, sink Sink) *Spotter {
	def := DefaultConfig()
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = def.MatchThreshold
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = def.QueueSize
	}

	return &Spotter{
		cfg:       cfg,
		extractor: extractor,
		profiles:  profiles,
		sink:      sink,
		queue:     make(chan *vad.Segment, cfg.QueueSize),
		now:       time.Now,
		logger: logging.WithFields(logging.Fields{
			"component": "keyword_spotter",
			"keywords":  len(profiles),
		}),
	}
}

// Start launches the worker goroutine draining the segment queue. After a
// Stop the queue is recreated, so a spotter can be restarted.
func (s *Spotter) Start() {
	if s.started {
		return
	}
	if s.queue == nil {
		s.queue = make(chan *vad.Segment, s.cfg.QueueSize)
	}
	s.started = true
	s.wg.Go(s.drain)
}

// Stop closes the queue and waits for in-flight segments to finish. A
// comparison in progress completes; there is no mid-DTW cancellation.
func (s *Spotter) Stop() {
	if !s.started {
		return
	}
	close(s.queue)
	s.wg.Wait()
	s.queue = nil
	s.started = false
}

// Enqueue hands a finalized segment to the worker without blocking the
// capture path. When the queue is full the segment is dropped and false is
// returned — losing a segment beats losing audio frames. A stopped spotter
// has a nil queue, so segments are dropped rather than sent on a closed
// channel.
func (s *Spotter) Enqueue(seg *vad.Segment) bool {
	select {
	case s.queue <- seg:
		return true
	default:
		s.logger.Warn("segment queue full, dropping segment", logging.Fields{
			"frames": seg.Frames,
		})
		return false
	}
}

func (s *Spotter) drain() {
	for seg := range s.queue {
		if event := s.ProcessSegment(seg); event != nil && s.sink != nil {
			s.sink.OnKeyword(*event)
		}
	}
}

// ProcessSegment runs one segment through extract → match → arbitration and
// returns the accepted event, or nil. Matches that land inside the cooldown
// window are still scored for diagnostics but never dispatched.
func (s *Spotter) ProcessSegment(seg *vad.Segment) *Event {
	features := s.extractor.Extract(seg.Samples)
	if len(features) == 0 {
		// Too short to frame; silently not a match, not an error.
		return nil
	}

	results := dtw.MatchAll(features, s.profiles)
	if len(results) == 0 {
		return nil
	}

	// Pick the global minimum among keywords under the single fixed
	// threshold, not the first one below it.
	bestKeyword := ""
	bestDistance := math.Inf(1)
	for keyword, distance := range results {
		if distance < s.cfg.MatchThreshold && distance < bestDistance {
			bestKeyword = keyword
			bestDistance = distance
		}
	}
	if bestKeyword == "" {
		return nil
	}

	similarity := dtw.Similarity(bestDistance, s.cfg.MatchThreshold)
	now := s.now()

	if s.accepted && now.Sub(s.lastAccept) < s.cfg.Cooldown {
		s.logger.Debug("match suppressed by cooldown", logging.Fields{
			"keyword":    bestKeyword,
			"distance":   bestDistance,
			"similarity": similarity,
		})
		return nil
	}

	s.lastAccept = now
	s.accepted = true

	s.logger.Info("keyword accepted", logging.Fields{
		"keyword":    bestKeyword,
		"distance":   bestDistance,
		"similarity": similarity,
	})

	return &Event{
		Keyword:    bestKeyword,
		Distance:   bestDistance,
		Similarity: similarity,
		Time:       now,
	}
}
