// Package vad segments a continuous audio stream into bounded speech
// segments using energy-based start/end hysteresis.
package vad

import (
	"fmt"
	"math"

	"github.com/nidsdepoule/roadcore/internal/logging"
	"github.com/nidsdepoule/roadcore/pkg/dsp"
)

// Config holds the segmenter tunables. Distinct start/end frame counts are
// the point of the design: a short pause must not chop a word, while real
// silence must terminate the segment promptly.
type Config struct {
	FrameLength      int     `mapstructure:"frame_length"`       // samples per frame (10 ms)
	StartFrames      int     `mapstructure:"start_frames"`       // consecutive loud frames to open
	EndFrames        int     `mapstructure:"end_frames"`         // consecutive quiet frames to close
	MinSegmentFrames int     `mapstructure:"min_segment_frames"` // shorter segments are discarded
	MaxSegmentFrames int     `mapstructure:"max_segment_frames"` // hard cap, force-emit
	EnergyThreshold  float64 `mapstructure:"energy_threshold"`   // normalized RMS speech threshold
}

// DefaultConfig returns the 16 kHz / 10 ms frame setup: 30 ms to open,
// 150 ms of silence to close, 3 s hard cap.
func DefaultConfig() Config {
	return Config{
		FrameLength:      160,
		StartFrames:      3,
		EndFrames:        15,
		MinSegmentFrames: 20,
		MaxSegmentFrames: 300,
		EnergyThreshold:  0.015,
	}
}

// Segment is a bounded run of raw samples bracketed by the start/end
// hysteresis, including the short pre-roll that triggered it.
type Segment struct {
	Samples []int16
	Frames  int
}

type state int

const (
	stateIdle state = iota
	stateInSpeech
)

// Segmenter consumes fixed-size audio frames and emits zero or one finalized
// segment per frame. It is push-driven and owned by a single goroutine.
type Segmenter struct {
	cfg    Config
	logger logging.Logger

	state        state
	speechCount  int // consecutive loud frames while idle
	silenceCount int // consecutive quiet frames while in speech
	preRoll      [][]int16
	segment      []int16
	frames       int
}

// NewSegmenter creates a segmenter with the given config; zero fields take
// defaults.
func NewSegmenter(cfg Config) *Segmenter {
	def := DefaultConfig()
	if cfg.FrameLength == 0 {
		cfg.FrameLength = def.FrameLength
	}
	if cfg.StartFrames == 0 {
		cfg.StartFrames = def.StartFrames
	}
	if cfg.EndFrames == 0 {
		cfg.EndFrames = def.EndFrames
	}
	if cfg.MinSegmentFrames == 0 {
		cfg.MinSegmentFrames = def.MinSegmentFrames
	}
	if cfg.MaxSegmentFrames == 0 {
		cfg.MaxSegmentFrames = def.MaxSegmentFrames
	}
	if cfg.EnergyThreshold == 0 {
		cfg.EnergyThreshold = def.EnergyThreshold
	}

	return &Segmenter{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "vad_segmenter",
		}),
	}
}

// Push processes one frame and returns a finalized segment when the end
// hysteresis fires or the hard cap is reached, nil otherwise. Frames must
// have exactly the configured length.
func (s *Segmenter) Push(frame []int16) (*Segment, error) {
	if len(frame) != s.cfg.FrameLength {
		return nil, dsp.NewContractError(dsp.ErrCodeFrameSize,
			fmt.Sprintf("audio frame length %d, expected %d", len(frame), s.cfg.FrameLength), nil)
	}

	loud := RMS(frame) >= s.cfg.EnergyThreshold

	switch s.state {
	case stateIdle:
		if !loud {
			s.speechCount = 0
			s.preRoll = s.preRoll[:0]
			return nil, nil
		}
		s.speechCount++
		// Pre-roll stays bounded to the frames that can still trigger the
		// transition; idle audio never accumulates past that.
		s.preRoll = append(s.preRoll, cloneFrame(frame))
		if len(s.preRoll) > s.cfg.StartFrames {
			s.preRoll = s.preRoll[len(s.preRoll)-s.cfg.StartFrames:]
		}
		if s.speechCount >= s.cfg.StartFrames {
			s.openSegment()
		}
		return nil, nil

	case stateInSpeech:
		// Every frame is retained regardless of its own energy.
		s.segment = append(s.segment, frame...)
		s.frames++

		if loud {
			s.silenceCount = 0
		} else {
			s.silenceCount++
		}

		if s.frames >= s.cfg.MaxSegmentFrames {
			return s.closeSegment(true), nil
		}
		if s.silenceCount >= s.cfg.EndFrames {
			return s.closeSegment(false), nil
		}
		return nil, nil
	}

	return nil, nil
}

// Reset clears all state; call when capture restarts.
func (s *Segmenter) Reset() {
	s.state = stateIdle
	s.speechCount = 0
	s.silenceCount = 0
	s.preRoll = s.preRoll[:0]
	s.segment = nil
	s.frames = 0
}

func (s *Segmenter) openSegment() {
	s.state = stateInSpeech
	s.silenceCount = 0
	s.segment = make([]int16, 0, s.cfg.MaxSegmentFrames*s.cfg.FrameLength)
	for _, f := range s.preRoll {
		s.segment = append(s.segment, f...)
	}
	s.frames = len(s.preRoll)
	s.preRoll = s.preRoll[:0]
	s.speechCount = 0
}

// closeSegment finalizes the current segment. Force-ended segments (hard cap)
// are always emitted; normally ended ones must meet the minimum length.
func (s *Segmenter) closeSegment(forced bool) *Segment {
	seg := &Segment{Samples: s.segment, Frames: s.frames}
	emit := forced || s.frames >= s.cfg.MinSegmentFrames

	s.state = stateIdle
	s.segment = nil
	s.frames = 0
	s.silenceCount = 0
	s.speechCount = 0

	if !emit {
		s.logger.Debug("segment below minimum length, discarded", logging.Fields{
			"frames": seg.Frames,
		})
		return nil
	}
	return seg
}

// RMS computes the root-mean-square of 16-bit PCM samples, normalized
// to [0, 1].
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

func cloneFrame(frame []int16) []int16 {
	out := make([]int16, len(frame))
	copy(out, frame)
	return out
}
