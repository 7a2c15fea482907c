package dsp

import "math"

// HammingWindow returns an n-point Hamming window. Windows are meant to be
// computed once at construction time and reused across frames.
func HammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range n {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// ApplyWindow multiplies signal by window element-wise into dst. All three
// slices must have the same length; dst may alias signal.
func ApplyWindow(dst, signal, window []float64) {
	for i := range signal {
		dst[i] = signal[i] * window[i]
	}
}
