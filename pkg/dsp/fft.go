// Package dsp provides the low-level signal-processing primitives shared by
// the audio pipeline: a radix-2 FFT engine and analysis windows.
package dsp

import (
	"fmt"
	"math"
)

// FFT is an in-place radix-2 Cooley-Tukey transform engine for a fixed
// power-of-two size. Twiddle factors and the bit-reversal permutation are
// precomputed at construction so the per-call cost is the butterflies alone.
type FFT struct {
	size     int
	twiddles []complex128
	reversed []int
}

// NewFFT creates an FFT engine for the given transform size. The size must be
// a power of two; anything else is a contract violation, not a runtime
// condition to coerce.
func NewFFT(size int) (*FFT, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, NewContractError(ErrCodeFFTSize,
			fmt.Sprintf("fft size %d is not a power of two", size), nil)
	}

	f := &FFT{
		size:     size,
		twiddles: make([]complex128, size/2),
		reversed: make([]int, size),
	}

	for k := range f.twiddles {
		angle := -2 * math.Pi * float64(k) / float64(size)
		f.twiddles[k] = complex(math.Cos(angle), math.Sin(angle))
	}

	bits := 0
	for 1<<bits < size {
		bits++
	}
	for i := range size {
		f.reversed[i] = reverseBits(i, bits)
	}

	return f, nil
}

// Size returns the configured transform size.
func (f *FFT) Size() int {
	return f.size
}

// Transform runs the forward FFT in place on buf, which must have exactly
// Size() elements.
func (f *FFT) Transform(buf []complex128) error {
	if len(buf) != f.size {
		return NewContractError(ErrCodeBufferSize,
			fmt.Sprintf("fft buffer length %d, engine size %d", len(buf), f.size), nil)
	}

	// Bit-reversal permutation
	for i, j := range f.reversed {
		if j > i {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}

	// Iterative butterflies
	for span := 2; span <= f.size; span <<= 1 {
		half := span >> 1
		step := f.size / span
		for start := 0; start < f.size; start += span {
			for k := range half {
				w := f.twiddles[k*step]
				a := buf[start+k]
				b := buf[start+k+half] * w
				buf[start+k] = a + b
				buf[start+k+half] = a - b
			}
		}
	}

	return nil
}

// TransformReal zero-pads or truncates x into a fresh complex buffer of the
// engine size and returns the transformed buffer. Convenience for callers
// framing real signals.
func (f *FFT) TransformReal(x []float64) ([]complex128, error) {
	buf := make([]complex128, f.size)
	n := min(len(x), f.size)
	for i := range n {
		buf[i] = complex(x[i], 0)
	}
	if err := f.Transform(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// PowerSpectrum computes |X[k]|^2 for the first size/2+1 bins of a
// transformed buffer.
func (f *FFT) PowerSpectrum(buf []complex128) []float64 {
	bins := f.size/2 + 1
	power := make([]float64, bins)
	for i := range bins {
		re := real(buf[i])
		im := imag(buf[i])
		power[i] = re*re + im*im
	}
	return power
}

func reverseBits(v, bits int) int {
	r := 0
	for range bits {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}
