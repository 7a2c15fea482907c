// Package mfcc turns raw PCM windows into fixed-width mel-cepstral feature
// vectors, the representation the keyword matcher compares.
package mfcc

import (
	"math"

	"github.com/nidsdepoule/roadcore/internal/logging"
	"github.com/nidsdepoule/roadcore/pkg/dsp"
)

const logEnergyFloor = 1e-10

// Config holds the extraction parameters. Zero values are replaced by
// DefaultConfig at construction.
type Config struct {
	SampleRate  int     `mapstructure:"sample_rate"`
	FrameLength int     `mapstructure:"frame_length"`
	HopLength   int     `mapstructure:"hop_length"`
	FFTSize     int     `mapstructure:"fft_size"`
	NumFilters  int     `mapstructure:"num_filters"`
	NumCoeffs   int     `mapstructure:"num_coeffs"`
	PreEmphasis float64 `mapstructure:"pre_emphasis"`
}

// DefaultConfig returns the standard 16 kHz telephony-style analysis setup:
// 25 ms frames, 10 ms hop, 512-point FFT, 26 mel filters, 13 coefficients.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		FrameLength: 400,
		HopLength:   160,
		FFTSize:     512,
		NumFilters:  26,
		NumCoeffs:   13,
		PreEmphasis: 0.97,
	}
}

// Extractor computes mel-cepstral coefficients per analysis frame. The
// Hamming window, mel filter bank and DCT matrix are all precomputed at
// construction, never per call.
type Extractor struct {
	cfg    Config
	fft    *dsp.FFT
	window []float64
	// filterBank[f] spans power-spectrum bins [filterStart[f], filterStart[f]+len)
	filterStart []int
	filterBank  [][]float64
	dct         [][]float64
	logger      logging.Logger
}

// NewExtractor creates an extractor for the given config. The FFT size must
// be a power of two and at least the frame length.
func NewExtractor(cfg Config) (*Extractor, error) {
	def := DefaultConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.FrameLength == 0 {
		cfg.FrameLength = def.FrameLength
	}
	if cfg.HopLength == 0 {
		cfg.HopLength = def.HopLength
	}
	if cfg.FFTSize == 0 {
		cfg.FFTSize = def.FFTSize
	}
	if cfg.NumFilters == 0 {
		cfg.NumFilters = def.NumFilters
	}
	if cfg.NumCoeffs == 0 {
		cfg.NumCoeffs = def.NumCoeffs
	}
	if cfg.PreEmphasis == 0 {
		cfg.PreEmphasis = def.PreEmphasis
	}

	fft, err := dsp.NewFFT(cfg.FFTSize)
	if err != nil {
		return nil, err
	}
	if cfg.FFTSize < cfg.FrameLength {
		return nil, dsp.NewContractError(dsp.ErrCodeFFTSize,
			"fft size smaller than frame length", nil)
	}

	e := &Extractor{
		cfg:    cfg,
		fft:    fft,
		window: dsp.HammingWindow(cfg.FrameLength),
		logger: logging.WithFields(logging.Fields{
			"component":   "mfcc_extractor",
			"sample_rate": cfg.SampleRate,
		}),
	}
	e.buildFilterBank()
	e.buildDCT()
	return e, nil
}

// NumCoeffs returns the width of each output vector.
func (e *Extractor) NumCoeffs() int {
	return e.cfg.NumCoeffs
}

// Extract computes one coefficient vector per analysis frame. Input shorter
// than one frame yields an empty sequence; a trailing partial frame is
// discarded.
func (e *Extractor) Extract(pcm []int16) [][]float64 {
	if len(pcm) < e.cfg.FrameLength {
		return nil
	}

	emphasized := e.preEmphasize(pcm)
	numFrames := 1 + (len(emphasized)-e.cfg.FrameLength)/e.cfg.HopLength

	features := make([][]float64, 0, numFrames)
	frame := make([]float64, e.cfg.FrameLength)

	for i := range numFrames {
		start := i * e.cfg.HopLength
		dsp.ApplyWindow(frame, emphasized[start:start+e.cfg.FrameLength], e.window)

		// Transform errors are impossible here: the buffer is sized by the
		// engine itself.
		buf, err := e.fft.TransformReal(frame)
		if err != nil {
			e.logger.Error(err, "frame transform failed")
			return nil
		}
		power := e.fft.PowerSpectrum(buf)

		features = append(features, e.cepstrum(power))
	}

	return features
}

// preEmphasize applies y[n] = x[n] - k*x[n-1] with y[0] = x[0], converting
// to float64 as it goes.
func (e *Extractor) preEmphasize(pcm []int16) []float64 {
	out := make([]float64, len(pcm))
	out[0] = float64(pcm[0])
	for i := 1; i < len(pcm); i++ {
		out[i] = float64(pcm[i]) - e.cfg.PreEmphasis*float64(pcm[i-1])
	}
	return out
}

// cepstrum applies the mel filter bank and DCT to one power spectrum.
func (e *Extractor) cepstrum(power []float64) []float64 {
	logMel := make([]float64, e.cfg.NumFilters)
	for f := range e.cfg.NumFilters {
		energy := 0.0
		start := e.filterStart[f]
		for i, w := range e.filterBank[f] {
			energy += w * power[start+i]
		}
		logMel[f] = math.Log(math.Max(energy, logEnergyFloor))
	}

	coeffs := make([]float64, e.cfg.NumCoeffs)
	for k := range e.cfg.NumCoeffs {
		sum := 0.0
		for n, v := range logMel {
			sum += v * e.dct[k][n]
		}
		coeffs[k] = sum
	}
	return coeffs
}

// buildFilterBank precomputes triangular mel filters over the power-spectrum
// bins, edges evenly spaced on the mel scale from 0 Hz to Nyquist.
func (e *Extractor) buildFilterBank() {
	numBins := e.cfg.FFTSize/2 + 1
	melLow := HzToMel(0)
	melHigh := HzToMel(float64(e.cfg.SampleRate) / 2)

	// numFilters+2 edge points on the mel scale, mapped back to FFT bins.
	edges := make([]int, e.cfg.NumFilters+2)
	for i := range edges {
		mel := melLow + (melHigh-melLow)*float64(i)/float64(e.cfg.NumFilters+1)
		hz := MelToHz(mel)
		bin := int(math.Floor(float64(e.cfg.FFTSize+1) * hz / float64(e.cfg.SampleRate)))
		if bin > numBins-1 {
			bin = numBins - 1
		}
		edges[i] = bin
	}

	e.filterStart = make([]int, e.cfg.NumFilters)
	e.filterBank = make([][]float64, e.cfg.NumFilters)

	for f := range e.cfg.NumFilters {
		left, center, right := edges[f], edges[f+1], edges[f+2]
		if center <= left {
			center = left + 1
		}
		if right <= center {
			right = center + 1
		}
		if right > numBins-1 {
			right = numBins - 1
			if center >= right {
				center = right - 1
			}
			if left >= center {
				left = center - 1
			}
		}

		weights := make([]float64, right-left+1)
		for b := left; b <= right; b++ {
			switch {
			case b < center:
				weights[b-left] = float64(b-left) / float64(center-left)
			case b == center:
				weights[b-left] = 1
			default:
				weights[b-left] = float64(right-b) / float64(right-center)
			}
		}

		e.filterStart[f] = left
		e.filterBank[f] = weights
	}
}

// buildDCT precomputes the DCT-II matrix applied to log-mel energies.
func (e *Extractor) buildDCT() {
	m := float64(e.cfg.NumFilters)
	e.dct = make([][]float64, e.cfg.NumCoeffs)
	for k := range e.cfg.NumCoeffs {
		row := make([]float64, e.cfg.NumFilters)
		for n := range e.cfg.NumFilters {
			row[n] = math.Cos(math.Pi * float64(k) * (float64(n) + 0.5) / m)
		}
		e.dct[k] = row
	}
}

// HzToMel converts a frequency in Hz to the mel scale.
func HzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// MelToHz converts a mel-scale value back to Hz.
func MelToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}
