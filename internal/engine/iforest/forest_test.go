package iforest

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cluster returns n points around the origin plus one far outlier at the end.
func cluster(n int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, 7))
	data := make([][]float64, 0, n+1)
	for i := 0; i < n; i++ {
		data = append(data, []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})
	}
	return append(data, []float64{12, -12, 12})
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, AveragePathLength(0))
	assert.Equal(t, 0.0, AveragePathLength(1))
	assert.Equal(t, 1.0, AveragePathLength(2))
	assert.InDelta(t, 10.2448, AveragePathLength(256), 1e-3)

	prev := AveragePathLength(2)
	for n := 3; n < 1000; n++ {
		c := AveragePathLength(n)
		assert.Greater(t, c, prev, "c(n) must grow with n")
		prev = c
	}
}

func TestFit_OutlierScoresHighest(t *testing.T) {
	data := cluster(200, 1)
	f, err := Fit(data, Options{Trees: 100, Seed: 42})
	require.NoError(t, err)

	scores, err := f.Scores(data)
	require.NoError(t, err)

	outlier := scores[len(scores)-1]
	for i, s := range scores[:len(scores)-1] {
		assert.Less(t, s, outlier, "inlier %d scored above the outlier", i)
	}
	assert.Greater(t, outlier, 0.7)
}

func TestFit_Deterministic(t *testing.T) {
	data := cluster(150, 3)
	opts := Options{Trees: 50, MaxSamples: 64, Seed: 99}

	a, err := Fit(data, opts)
	require.NoError(t, err)
	b, err := Fit(data, opts)
	require.NoError(t, err)

	sa, _ := a.Scores(data)
	sb, _ := b.Scores(data)
	assert.Equal(t, sa, sb)
}

func TestFit_WorkerCountDoesNotChangeForest(t *testing.T) {
	data := cluster(120, 5)

	serial, err := Fit(data, Options{Trees: 64, Seed: 7, Workers: 1})
	require.NoError(t, err)
	parallel, err := Fit(data, Options{Trees: 64, Seed: 7, Workers: 16})
	require.NoError(t, err)

	ss, _ := serial.Scores(data)
	sp, _ := parallel.Scores(data)
	assert.Equal(t, ss, sp)
}

func TestFit_SeedChangesForest(t *testing.T) {
	data := cluster(120, 5)
	a, _ := Fit(data, Options{Trees: 10, Seed: 1})
	b, _ := Fit(data, Options{Trees: 10, Seed: 2})

	sa, _ := a.Scores(data)
	sb, _ := b.Scores(data)
	assert.NotEqual(t, sa, sb)
}

func TestFit_ConstantDataScoresHalf(t *testing.T) {
	data := make([][]float64, 20)
	for i := range data {
		data[i] = []float64{60, 1, 1, 0}
	}
	f, err := Fit(data, Options{Trees: 10, Seed: 42})
	require.NoError(t, err)

	for _, row := range data {
		s, err := f.Score(row)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, s, 1e-12)
	}
}

func TestFit_SubsampleCappedAtRows(t *testing.T) {
	data := cluster(9, 11)
	f, err := Fit(data, Options{Trees: 3, MaxSamples: 256})
	require.NoError(t, err)
	assert.Equal(t, 10, f.SampleSize())
	assert.Equal(t, 3, f.NumTrees())
}

func TestTree_DepthLimit(t *testing.T) {
	data := cluster(255, 13)
	tr := buildTree(data, 256, 3, 42)
	for _, row := range data {
		// at most 3 edges plus the residual estimate for the leaf
		assert.LessOrEqual(t, tr.pathLength(row), 3+AveragePathLength(256))
	}
	leaves := 0
	for _, n := range tr.nodes {
		if n.left < 0 {
			leaves++
		}
	}
	assert.LessOrEqual(t, leaves, 8)
}

func TestTree_LeavesPartitionSubsample(t *testing.T) {
	data := cluster(99, 17)
	tr := buildTree(data, 64, 10, 1)
	total := 0
	for _, n := range tr.nodes {
		if n.left < 0 {
			total += n.size
		}
	}
	assert.Equal(t, 64, total)
	assert.Equal(t, 64, tr.nodes[0].size)
}

func TestFit_Errors(t *testing.T) {
	_, err := Fit(nil, Options{})
	assert.Error(t, err)

	_, err = Fit([][]float64{{}}, Options{})
	assert.Error(t, err)

	_, err = Fit([][]float64{{1, 2}, {3}}, Options{})
	assert.Error(t, err)

	f, err := Fit([][]float64{{1, 2}, {3, 4}}, Options{Trees: 2})
	require.NoError(t, err)
	_, err = f.Score([]float64{1})
	assert.Error(t, err)
}

func TestScore_Range(t *testing.T) {
	data := cluster(50, 19)
	f, err := Fit(data, Options{Trees: 20, Seed: 3})
	require.NoError(t, err)
	scores, err := f.Scores(data)
	require.NoError(t, err)
	for _, s := range scores {
		assert.False(t, math.IsNaN(s))
		assert.Greater(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
