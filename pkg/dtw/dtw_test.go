package dtw

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSequence(rng *rand.Rand, frames, width int) [][]float64 {
	seq := make([][]float64, frames)
	for i := range seq {
		v := make([]float64, width)
		for j := range v {
			v[j] = rng.Float64()*10 - 5
		}
		seq[i] = v
	}
	return seq
}

func TestDistanceSelfIsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, frames := range []int{1, 10, 80} {
		a := randomSequence(rng, frames, 13)
		assert.InDelta(t, 0, Distance(a, a), 1e-9, "frames=%d", frames)
	}
}

func TestDistanceEmptySequence(t *testing.T) {
	a := randomSequence(rand.New(rand.NewSource(1)), 5, 13)
	assert.True(t, math.IsInf(Distance(nil, a), 1))
	assert.True(t, math.IsInf(Distance(a, nil), 1))
	assert.True(t, math.IsInf(Distance(nil, nil), 1))
}

func TestDistanceMismatchedWidthsIsInf(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	a := randomSequence(rng, 20, 13)
	b := randomSequence(rng, 20, 12)

	// Different coefficient widths have no alignment; the matcher must see
	// +Inf, never a panic from the per-frame distance.
	require.NotPanics(t, func() {
		assert.True(t, math.IsInf(Distance(a, b), 1))
	})
}

func TestDistanceRaggedSequenceIsInf(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	a := randomSequence(rng, 20, 13)
	b := randomSequence(rng, 20, 13)
	b[7] = b[7][:12]

	require.NotPanics(t, func() {
		assert.True(t, math.IsInf(Distance(a, b), 1))
		assert.True(t, math.IsInf(Distance(b, a), 1))
	})
}

func TestDistanceEmptyFrameIsInf(t *testing.T) {
	a := randomSequence(rand.New(rand.NewSource(11)), 5, 13)
	b := [][]float64{{}}
	assert.True(t, math.IsInf(Distance(a, b), 1))
}

func TestDistanceSymmetricEnough(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := randomSequence(rng, 40, 13)
	b := randomSequence(rng, 55, 13)

	// Normalization divides both directions by max(n, m), so the banded
	// distance is symmetric.
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestDistanceToleratesTimeWarping(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	a := randomSequence(rng, 30, 13)

	// Stretch a by duplicating every other frame. DTW should see the
	// stretched copy as far closer to a than an unrelated sequence.
	stretched := make([][]float64, 0, 45)
	for i, v := range a {
		stretched = append(stretched, v)
		if i%2 == 0 {
			stretched = append(stretched, v)
		}
	}
	unrelated := randomSequence(rng, 30, 13)

	assert.Less(t, Distance(a, stretched), Distance(a, unrelated))
}

func TestDistanceLengthNormalization(t *testing.T) {
	// Two constant sequences differing by a fixed offset: every aligned pair
	// costs the same, so the normalized distance must not grow with length.
	mk := func(frames int, val float64) [][]float64 {
		seq := make([][]float64, frames)
		for i := range seq {
			seq[i] = []float64{val}
		}
		return seq
	}

	short := Distance(mk(10, 0), mk(10, 1))
	long := Distance(mk(100, 0), mk(100, 1))
	assert.InDelta(t, short, long, 1e-9)
	assert.InDelta(t, 1.0, short, 1e-9)
}

func TestDistanceVeryUnequalLengths(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := randomSequence(rng, 100, 13)
	b := randomSequence(rng, 10, 13)

	// The band widens to |n-m| so the end cell stays reachable.
	assert.False(t, math.IsInf(Distance(a, b), 1))
}

func TestBestMatchPicksMinimum(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	query := randomSequence(rng, 40, 13)

	far := randomSequence(rng, 40, 13)
	templates := [][][]float64{far, query, randomSequence(rng, 40, 13)}

	assert.InDelta(t, 0, BestMatch(query, templates), 1e-9)
}

func TestBestMatchNoTemplates(t *testing.T) {
	query := randomSequence(rand.New(rand.NewSource(2)), 10, 13)
	assert.True(t, math.IsInf(BestMatch(query, nil), 1))
}

func TestMatchAllSelfTemplateWins(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	query := randomSequence(rng, 50, 13)

	profiles := map[string][][][]float64{
		"stop":   {randomSequence(rng, 50, 13), randomSequence(rng, 45, 13)},
		"report": {randomSequence(rng, 40, 13), query},
		"cancel": {randomSequence(rng, 60, 13)},
	}

	results := MatchAll(query, profiles)
	require.Len(t, results, 3)

	best := ""
	bestDist := math.Inf(1)
	for kw, d := range results {
		if d < bestDist {
			best, bestDist = kw, d
		}
	}
	assert.Equal(t, "report", best)
	assert.InDelta(t, 0, bestDist, 1e-9)
}

func TestSimilarityBounds(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(0, 10))
	assert.Equal(t, 0.0, Similarity(10, 10))
	assert.Equal(t, 0.0, Similarity(25, 10))
	assert.InDelta(t, 0.5, Similarity(5, 10), 1e-9)

	// Never negative, even for garbage inputs.
	assert.Equal(t, 0.0, Similarity(math.Inf(1), 10))
	assert.Equal(t, 0.0, Similarity(1, 0))
	assert.Equal(t, 0.0, Similarity(1, -3))
}

func TestSimilarityMonotoneInDistance(t *testing.T) {
	prev := 1.0
	for d := 0.0; d <= 12; d += 0.5 {
		s := Similarity(d, 10)
		assert.LessOrEqual(t, s, prev)
		prev = s
	}
}
