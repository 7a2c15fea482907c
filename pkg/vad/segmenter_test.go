package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nidsdepoule/roadcore/pkg/dsp"
)

func loudFrame(n int) []int16 {
	f := make([]int16, n)
	for i := range f {
		if i%2 == 0 {
			f[i] = 4000
		} else {
			f[i] = -4000
		}
	}
	return f
}

func quietFrame(n int) []int16 {
	return make([]int16, n)
}

// push feeds frames and collects every emitted segment.
func push(t *testing.T, s *Segmenter, frames [][]int16) []*Segment {
	t.Helper()
	var segs []*Segment
	for _, f := range frames {
		seg, err := s.Push(f)
		require.NoError(t, err)
		if seg != nil {
			segs = append(segs, seg)
		}
	}
	return segs
}

func repeat(frame []int16, n int) [][]int16 {
	out := make([][]int16, n)
	for i := range out {
		out[i] = frame
	}
	return out
}

func TestPushRejectsWrongFrameSize(t *testing.T) {
	s := NewSegmenter(DefaultConfig())
	_, err := s.Push(make([]int16, 80))
	require.Error(t, err)

	var cerr *dsp.ContractError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, dsp.ErrCodeFrameSize, cerr.Code)
}

func TestSilenceNeverEmits(t *testing.T) {
	s := NewSegmenter(DefaultConfig())
	segs := push(t, s, repeat(quietFrame(160), 500))
	assert.Empty(t, segs)
}

func TestUtteranceEmitsOnce(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSegmenter(cfg)

	var frames [][]int16
	frames = append(frames, repeat(loudFrame(160), 40)...)
	frames = append(frames, repeat(quietFrame(160), cfg.EndFrames+5)...)

	segs := push(t, s, frames)
	require.Len(t, segs, 1)

	// 40 speech frames plus the EndFrames of trailing silence.
	assert.Equal(t, 40+cfg.EndFrames, segs[0].Frames)
	assert.Len(t, segs[0].Samples, (40+cfg.EndFrames)*160)
}

func TestPreRollBoundedToStartFrames(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSegmenter(cfg)

	// Exactly StartFrames loud frames open the segment; the segment starts
	// with those frames and nothing older.
	for i := range cfg.StartFrames {
		seg, err := s.Push(loudFrame(160))
		require.NoError(t, err)
		assert.Nil(t, seg, "frame %d", i)
	}

	segs := push(t, s, append(repeat(loudFrame(160), 30), repeat(quietFrame(160), cfg.EndFrames)...))
	require.Len(t, segs, 1)
	assert.Equal(t, cfg.StartFrames+30+cfg.EndFrames, segs[0].Frames)
}

func TestBriefPauseDoesNotSplit(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSegmenter(cfg)

	var frames [][]int16
	frames = append(frames, repeat(loudFrame(160), 25)...)
	// Pause shorter than EndFrames
	frames = append(frames, repeat(quietFrame(160), cfg.EndFrames-1)...)
	frames = append(frames, repeat(loudFrame(160), 25)...)
	frames = append(frames, repeat(quietFrame(160), cfg.EndFrames)...)

	segs := push(t, s, frames)
	require.Len(t, segs, 1)
	assert.Equal(t, 25+(cfg.EndFrames-1)+25+cfg.EndFrames, segs[0].Frames)
}

func TestShortBlipDiscarded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSegmentFrames = 30
	s := NewSegmenter(cfg)

	var frames [][]int16
	frames = append(frames, repeat(loudFrame(160), 5)...)
	frames = append(frames, repeat(quietFrame(160), cfg.EndFrames+5)...)

	segs := push(t, s, frames)
	assert.Empty(t, segs)
}

func TestHardCapForceEmits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSegmentFrames = 50
	s := NewSegmenter(cfg)

	// Continuous speech, never any trailing silence.
	segs := push(t, s, repeat(loudFrame(160), 120))
	require.NotEmpty(t, segs)
	assert.Equal(t, 50, segs[0].Frames)
}

func TestResetClearsState(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSegmenter(cfg)

	push(t, s, repeat(loudFrame(160), 10))
	s.Reset()

	// After reset the open segment is gone; pure silence emits nothing.
	segs := push(t, s, repeat(quietFrame(160), cfg.EndFrames*2))
	assert.Empty(t, segs)
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.Zero(t, RMS(quietFrame(160)))
	assert.InDelta(t, 4000.0/32768.0, RMS(loudFrame(160)), 1e-9)
}
