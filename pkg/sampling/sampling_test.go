package sampling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	norm, err := Normalize(map[string]float64{
		"A18_25": 1, "A26_35": 1, "A36_50": 1, "A50_PLUS": 1,
	})
	require.NoError(t, err)

	total := 0.0
	for _, v := range norm {
		assert.InDelta(t, 0.25, v, 1e-9)
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestNormalizeRejectsBadWeights(t *testing.T) {
	_, err := Normalize(map[string]float64{"APP": -0.5, "WEB": 1.0})
	require.Error(t, err)

	_, err = Normalize(map[string]float64{"APP": 0, "WEB": 0})
	require.Error(t, err)

	_, err = Normalize(nil)
	require.Error(t, err)
}

func TestSpawnDeterminism(t *testing.T) {
	a := Spawn(42, 0)
	b := Spawn(42, 0)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}

	// Distinct streams off the same seed must diverge.
	c := Spawn(42, 1)
	d := Spawn(42, 2)
	same := true
	for i := 0; i < 100; i++ {
		if c.Float64() != d.Float64() {
			same = false
			break
		}
	}
	assert.False(t, same)
}

func TestWeightedDraw(t *testing.T) {
	w, err := NewWeighted(map[string]float64{"APP": 0.7, "WEB": 0.3})
	require.NoError(t, err)
	assert.Equal(t, []string{"APP", "WEB"}, w.Keys())

	src := Spawn(7, 0)
	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		counts[w.Draw(src)]++
	}
	assert.InDelta(t, 0.7, float64(counts["APP"])/10000, 0.05)
	assert.InDelta(t, 0.3, float64(counts["WEB"])/10000, 0.05)
}

func TestWeightedDrawDistinct(t *testing.T) {
	w, err := NewWeighted(map[string]float64{"A": 1, "B": 1, "C": 1})
	require.NoError(t, err)

	src := Spawn(11, 0)
	out := w.DrawDistinct(src, 2)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0], out[1])

	// Requests beyond the key count are capped.
	out = w.DrawDistinct(src, 10)
	require.Len(t, out, 3)
	seen := map[string]bool{}
	for _, k := range out {
		assert.False(t, seen[k])
		seen[k] = true
	}
}

func TestWeightedIndex(t *testing.T) {
	weights := make([]float64, 24)
	weights[3] = 1.0
	idx, err := NewWeightedIndex(weights)
	require.NoError(t, err)

	src := Spawn(3, 0)
	for i := 0; i < 50; i++ {
		assert.Equal(t, 3, idx.Draw(src))
	}

	_, err = NewWeightedIndex([]float64{0, 0})
	require.Error(t, err)
}

func TestPoissonNonNegative(t *testing.T) {
	src := Spawn(1, 0)
	for i := 0; i < 1000; i++ {
		assert.GreaterOrEqual(t, src.Poisson(2.0), 0)
	}
	assert.Equal(t, 0, src.Poisson(0))
}

func TestLogNormalRecoversParams(t *testing.T) {
	src := Spawn(9, 0)
	sum := 0.0
	n := 20000
	for i := 0; i < n; i++ {
		v := src.LogNormal(3.5, 0.8)
		require.Greater(t, v, 0.0)
		sum += math.Log(v)
	}
	assert.InDelta(t, 3.5, sum/float64(n), 0.05)
}

func TestLaplaceCentered(t *testing.T) {
	src := Spawn(11, 0)
	sum := 0.0
	n := 20000
	for i := 0; i < n; i++ {
		sum += src.Laplace(1.0)
	}
	assert.InDelta(t, 0.0, sum/float64(n), 0.1)
}

func TestUniformRange(t *testing.T) {
	src := Spawn(5, 0)
	for i := 0; i < 1000; i++ {
		v := src.UniformRange(0.6, 1.4)
		assert.GreaterOrEqual(t, v, 0.6)
		assert.Less(t, v, 1.4)
	}
}
