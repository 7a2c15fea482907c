package mfcc

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/nidsdepoule/roadcore/pkg/dsp"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultConfig())
	require.NoError(t, err)
	return e
}

func synthTone(freq float64, sampleRate, n int, amplitude float64) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return pcm
}

func TestExtractEmptyInput(t *testing.T) {
	e := newTestExtractor(t)

	assert.Empty(t, e.Extract(nil))
	assert.Empty(t, e.Extract([]int16{}))
	// Shorter than one frame
	assert.Empty(t, e.Extract(make([]int16, 399)))
}

func TestExtractFrameCount(t *testing.T) {
	e := newTestExtractor(t)

	// Exactly one frame
	features := e.Extract(make([]int16, 400))
	assert.Len(t, features, 1)

	// One full second at 16 kHz: 1 + (16000-400)/160 frames,
	// trailing partial frame discarded.
	features = e.Extract(make([]int16, 16000))
	assert.Len(t, features, 1+(16000-400)/160)

	// Adding fewer than a hop of samples does not add a frame.
	features = e.Extract(make([]int16, 16000+159))
	assert.Len(t, features, 1+(16000-400)/160)
}

func TestExtractVectorWidth(t *testing.T) {
	e := newTestExtractor(t)

	features := e.Extract(synthTone(440, 16000, 4000, 8000))
	require.NotEmpty(t, features)
	for _, v := range features {
		assert.Len(t, v, e.NumCoeffs())
	}
}

func TestExtractSilenceIsFinite(t *testing.T) {
	e := newTestExtractor(t)

	// All-zero input exercises the log floor; no NaN or Inf may escape.
	features := e.Extract(make([]int16, 1600))
	require.NotEmpty(t, features)
	for _, v := range features {
		for _, c := range v {
			assert.False(t, math.IsNaN(c))
			assert.False(t, math.IsInf(c, 0))
		}
	}
}

func TestExtractDistinguishesTones(t *testing.T) {
	e := newTestExtractor(t)

	low := e.Extract(synthTone(300, 16000, 4000, 8000))
	high := e.Extract(synthTone(3000, 16000, 4000, 8000))
	require.NotEmpty(t, low)
	require.NotEmpty(t, high)

	// Distinct spectral content must land on distinct cepstra.
	var dist float64
	for i := range low[0] {
		d := low[0][i] - high[0][i]
		dist += d * d
	}
	assert.Greater(t, math.Sqrt(dist), 1.0)
}

func TestExtractDeterministic(t *testing.T) {
	e := newTestExtractor(t)
	pcm := synthTone(880, 16000, 2000, 5000)

	a := e.Extract(pcm)
	b := e.Extract(pcm)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

// magnitudeFrames builds the magnitude spectrogram the reference MFCC
// implementation consumes, using the same framing as the extractor.
func magnitudeFrames(t *testing.T, pcm []int16, cfg Config) [][]float64 {
	t.Helper()

	f, err := dsp.NewFFT(cfg.FFTSize)
	require.NoError(t, err)
	window := dsp.HammingWindow(cfg.FrameLength)

	var frames [][]float64
	for start := 0; start+cfg.FrameLength <= len(pcm); start += cfg.HopLength {
		frame := make([]float64, cfg.FrameLength)
		for i := range frame {
			frame[i] = float64(pcm[start+i]) / 32768.0
		}
		dsp.ApplyWindow(frame, frame, window)

		spec, err := f.TransformReal(frame)
		require.NoError(t, err)

		bins := make([]float64, cfg.FFTSize/2+1)
		for i := range bins {
			bins[i] = cmplx.Abs(spec[i])
		}
		frames = append(frames, bins)
	}
	return frames
}

func meanVector(t *testing.T, frames [][]float64) []float64 {
	t.Helper()
	require.NotEmpty(t, frames)

	mean := make([]float64, len(frames[0]))
	for _, frame := range frames {
		floats.Add(mean, frame)
	}
	floats.Scale(1/float64(len(frames)), mean)
	return mean
}

func TestToneOrderingAgreesWithReferenceMFCC(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestExtractor(t)

	lowA := synthTone(300, 16000, 4000, 8000)
	lowB := synthTone(300, 16000, 4000, 6000) // same pitch, quieter take
	high := synthTone(3000, 16000, 4000, 8000)

	ref := spectral.NewMFCC(cfg.SampleRate, cfg.NumCoeffs)
	refVector := func(pcm []int16) []float64 {
		coeffs, err := ref.ComputeFrames(magnitudeFrames(t, pcm, cfg))
		require.NoError(t, err)
		return meanVector(t, coeffs)
	}
	ourVector := func(pcm []int16) []float64 {
		return meanVector(t, e.Extract(pcm))
	}

	// Both implementations must place two takes of the same pitch closer
	// together than tones an octave-plus apart. Exact coefficients differ
	// (filterbank counts, normalization); the ordering must not.
	for name, vector := range map[string]func([]int16) []float64{
		"extractor": ourVector,
		"reference": refVector,
	} {
		a, b, c := vector(lowA), vector(lowB), vector(high)
		same := floats.Distance(a, b, 2)
		different := floats.Distance(a, c, 2)
		assert.Less(t, same, different, "implementation=%s", name)
	}
}

func TestNewExtractorRejectsBadFFTSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FFTSize = 500
	_, err := NewExtractor(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.FFTSize = 256 // smaller than the 400-sample frame
	_, err = NewExtractor(cfg)
	assert.Error(t, err)
}

func TestMelScaleRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 100, 700, 4000, 8000} {
		assert.InDelta(t, hz, MelToHz(HzToMel(hz)), 1e-6)
	}
	// 1000 Hz is close to 1000 mel by construction of the scale.
	assert.InDelta(t, 1000, HzToMel(1000), 1)
}
