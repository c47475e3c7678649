package iforest

import (
	"math/rand/v2"
)

// treeStream is the PCG stream shared by all trees; the per-tree seed selects
// the sequence.
const treeStream = 0x9e3779b97f4a7c15

type node struct {
	feature     int
	split       float64
	left, right int32 // child indices, -1 for a leaf
	size        int   // rows that reached this leaf
}

type tree struct {
	nodes []node
}

type treeBuilder struct {
	data     [][]float64
	rng      *rand.Rand
	maxDepth int
	nodes    []node
	lo, hi   []float64
	features []int
}

// buildTree grows one isolation tree on a subsample of data drawn without
// replacement.
func buildTree(data [][]float64, sampleSize, maxDepth int, seed int64) *tree {
	numFeatures := len(data[0])
	b := &treeBuilder{
		data:     data,
		rng:      rand.New(rand.NewPCG(uint64(seed), treeStream)),
		maxDepth: maxDepth,
		nodes:    make([]node, 0, 2*sampleSize),
		lo:       make([]float64, numFeatures),
		hi:       make([]float64, numFeatures),
		features: make([]int, 0, numFeatures),
	}

	// Partial Fisher–Yates: the first sampleSize entries form the subsample.
	idx := make([]int, len(data))
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < sampleSize; i++ {
		j := i + b.rng.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	b.grow(idx[:sampleSize], 0)
	return &tree{nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int32 {
	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, node{left: -1, right: -1, size: len(idx)})

	if depth >= b.maxDepth || len(idx) <= 1 {
		return id
	}

	// Only features that still vary inside this node can split it.
	numFeatures := len(b.lo)
	for f := 0; f < numFeatures; f++ {
		b.lo[f], b.hi[f] = b.data[idx[0]][f], b.data[idx[0]][f]
	}
	for _, r := range idx[1:] {
		row := b.data[r]
		for f, v := range row {
			if v < b.lo[f] {
				b.lo[f] = v
			} else if v > b.hi[f] {
				b.hi[f] = v
			}
		}
	}
	b.features = b.features[:0]
	for f := 0; f < numFeatures; f++ {
		if b.lo[f] < b.hi[f] {
			b.features = append(b.features, f)
		}
	}
	if len(b.features) == 0 {
		return id
	}

	feature := b.features[b.rng.IntN(len(b.features))]
	lo, hi := b.lo[feature], b.hi[feature]
	split := lo + b.rng.Float64()*(hi-lo)

	// Partition in place: rows below the split go left.
	k := 0
	for i, r := range idx {
		if b.data[r][feature] < split {
			idx[i], idx[k] = idx[k], idx[i]
			k++
		}
	}

	left := b.grow(idx[:k], depth+1)
	right := b.grow(idx[k:], depth+1)
	b.nodes[id] = node{feature: feature, split: split, left: left, right: right, size: len(idx)}
	return id
}

// pathLength returns the number of edges from the root to the leaf reached by
// x, plus c(leaf size) for the rows the leaf did not separate.
func (t *tree) pathLength(x []float64) float64 {
	var depth float64
	n := &t.nodes[0]
	for n.left >= 0 {
		if x[n.feature] < n.split {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
		depth++
	}
	return depth + AveragePathLength(n.size)
}
