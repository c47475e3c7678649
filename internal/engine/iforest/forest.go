package iforest

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"TrafficSentinel/internal/metrics"
)

// eulerGamma is the Euler–Mascheroni constant used to approximate harmonic numbers.
const eulerGamma = 0.5772156649015329

const (
	DefaultTrees      = 100
	DefaultMaxSamples = 256
)

// Options configures forest construction.
type Options struct {
	// Trees is the ensemble size.
	Trees int
	// MaxSamples caps the subsample drawn for each tree; it is reduced to the
	// number of rows when fewer are available.
	MaxSamples int
	// MaxDepth limits tree height. Zero means ceil(log2(subsample size)).
	MaxDepth int
	// Seed is the base seed; tree i draws from a generator seeded with Seed+i.
	Seed int64
	// Workers bounds the number of trees built concurrently. Zero means NumCPU.
	Workers int
}

// Forest is a fitted isolation forest. It is safe for concurrent use.
type Forest struct {
	trees       []*tree
	sampleSize  int
	numFeatures int
	norm        float64 // c(sampleSize)
}

// Fit builds an isolation forest over data, where each row is a sample and
// each column a feature. The result depends only on data and opts, not on
// the number of workers or their scheduling.
func Fit(data [][]float64, opts Options) (*Forest, error) {
	if len(data) == 0 {
		return nil, errors.New("iforest: no samples")
	}
	numFeatures := len(data[0])
	if numFeatures == 0 {
		return nil, errors.New("iforest: samples have no features")
	}
	for i, row := range data {
		if len(row) != numFeatures {
			return nil, fmt.Errorf("iforest: row %d has %d features, want %d", i, len(row), numFeatures)
		}
	}

	if opts.Trees <= 0 {
		opts.Trees = DefaultTrees
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = DefaultMaxSamples
	}
	sampleSize := min(opts.MaxSamples, len(data))
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, opts.Trees)

	f := &Forest{
		trees:       make([]*tree, opts.Trees),
		sampleSize:  sampleSize,
		numFeatures: numFeatures,
		norm:        AveragePathLength(sampleSize),
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				// slot i is written only by the worker that built tree i
				f.trees[i] = buildTree(data, sampleSize, maxDepth, opts.Seed+int64(i))
				metrics.TreesBuilt.Inc()
			}
		}()
	}
	for i := 0; i < opts.Trees; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return f, nil
}

// SampleSize returns the number of rows each tree was trained on.
func (f *Forest) SampleSize() int {
	return f.sampleSize
}

// NumTrees returns the ensemble size.
func (f *Forest) NumTrees() int {
	return len(f.trees)
}

// PathLength returns E[h(x)], the mean adjusted path length of x over all trees.
func (f *Forest) PathLength(x []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.pathLength(x)
	}
	return sum / float64(len(f.trees))
}

// Score returns the anomaly score s(x) = 2^(-E[h(x)]/c(ψ)) in (0, 1].
// Values close to 1 are anomalous, values around 0.5 typical.
func (f *Forest) Score(x []float64) (float64, error) {
	if len(x) != f.numFeatures {
		return 0, fmt.Errorf("iforest: sample has %d features, want %d", len(x), f.numFeatures)
	}
	if f.norm == 0 {
		return 0.5, nil
	}
	return math.Exp2(-f.PathLength(x) / f.norm), nil
}

// Scores scores every row of data.
func (f *Forest) Scores(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))
	for i, row := range data {
		s, err := f.Score(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		scores[i] = s
	}
	return scores, nil
}

// AveragePathLength returns c(n), the average path length of an unsuccessful
// search in a binary search tree of n nodes.
func AveragePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	m := float64(n - 1)
	return 2*(math.Log(m)+eulerGamma) - 2*m/float64(n)
}
