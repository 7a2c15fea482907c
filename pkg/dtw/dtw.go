// Package dtw compares feature sequences with banded Dynamic Time Warping
// and derives bounded similarity scores from raw distances.
package dtw

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Distance computes the DTW distance between two feature sequences using
// per-frame Euclidean cost, constrained to a Sakoe-Chiba band of half-width
// max(n,m)/2+1. The band is generous at these sequence lengths — it bounds
// work, it does not constrain matching. Memory stays O(m) via two rolling
// rows. The result is normalized by max(n, m) so longer utterances are not
// penalized for length alone. Sequences with ragged or differing coefficient
// widths have no alignment and yield +Inf; floats.Distance panics on
// mismatched lengths, and templates come from editable files on disk.
func Distance(a, b [][]float64) float64 {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return math.Inf(1)
	}

	widthA, okA := uniformWidth(a)
	widthB, okB := uniformWidth(b)
	if !okA || !okB || widthA != widthB {
		return math.Inf(1)
	}

	// The band must be at least |n-m| wide or the end cell is unreachable.
	band := max(max(n, m)/2+1, abs(n-m))

	prev := make([]float64, m+1)
	curr := make([]float64, m+1)
	for j := 1; j <= m; j++ {
		prev[j] = math.Inf(1)
	}
	prev[0] = 0

	for i := 1; i <= n; i++ {
		for j := range curr {
			curr[j] = math.Inf(1)
		}

		lo := max(1, i-band)
		hi := min(m, i+band)
		for j := lo; j <= hi; j++ {
			cost := floats.Distance(a[i-1], b[j-1], 2)
			curr[j] = cost + min(prev[j], min(curr[j-1], prev[j-1]))
		}

		prev, curr = curr, prev
	}

	return prev[m] / float64(max(n, m))
}

// BestMatch returns the minimum DTW distance between the query and any of the
// exemplar templates — one good exemplar is sufficient to accept a match, so
// exemplars are not averaged. With no templates the result is +Inf.
func BestMatch(query [][]float64, templates [][][]float64) float64 {
	best := math.Inf(1)
	for _, tmpl := range templates {
		if d := Distance(query, tmpl); d < best {
			best = d
		}
	}
	return best
}

// MatchAll computes the best distance per keyword across each keyword's
// exemplar set.
func MatchAll(query [][]float64, profiles map[string][][][]float64) map[string]float64 {
	results := make(map[string]float64, len(profiles))
	for keyword, templates := range profiles {
		results[keyword] = BestMatch(query, templates)
	}
	return results
}

// Similarity maps a distance to [0, 1]: 1 at zero distance, 0 at or beyond
// the threshold, linear in between.
func Similarity(distance, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	s := 1 - distance/threshold
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// uniformWidth returns the shared frame width of a sequence, or false when
// the frames are ragged or empty.
func uniformWidth(seq [][]float64) (int, bool) {
	width := len(seq[0])
	if width == 0 {
		return 0, false
	}
	for _, frame := range seq[1:] {
		if len(frame) != width {
			return 0, false
		}
	}
	return width, true
}
