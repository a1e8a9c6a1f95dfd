// Package anomaly implements the isolation forest outlier detector used to
// classify machine readings, together with its binary persistence format.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

const (
	// maxSubSample caps the per-tree sample size
	maxSubSample = 256
	eulerGamma   = 0.5772156649
	leafIndex    = -1
)

var (
	// ErrDegenerateSample is returned when the training set cannot support a fit.
	ErrDegenerateSample = errors.New("degenerate training sample")
	// ErrNotFitted is returned when scoring against an empty model.
	ErrNotFitted = errors.New("model not fitted")
	// ErrDimension is returned when a feature vector has the wrong length.
	ErrDimension = errors.New("feature dimension mismatch")
)

// Params controls a fit. Identical params and samples always yield an identical model.
type Params struct {
	Trees         int
	SubSample     int // 0 selects min(256, len(samples))
	Contamination float64
	Seed          int64
}

// DefaultParams mirrors the engine defaults.
func DefaultParams() Params {
	return Params{
		Trees:         100,
		Contamination: 0.10,
		Seed:          42,
	}
}

// Node is one node of an isolation tree. Leaves have Left == Right == -1.
// Min and Max hold the observed range of the split feature at that node.
type Node struct {
	Feature int
	Split   float64
	Min     float64
	Max     float64
	Left    int32
	Right   int32
	Size    int
}

// Tree is an isolation tree stored as a flat node slice rooted at index 0.
type Tree struct {
	Nodes []Node
}

// Model is a fitted isolation forest.
type Model struct {
	ID            string
	Features      []string
	Trees         []Tree
	SubSample     int
	Threshold     float64
	Contamination float64
	Seed          int64
	Samples       int
	TrainedAt     time.Time
}

// Fit builds a model from the drained training samples in one batch.
func Fit(samples [][]float64, features []string, p Params) (*Model, error) {
	if err := checkSamples(samples, len(features)); err != nil {
		return nil, err
	}
	if p.Trees <= 0 {
		return nil, fmt.Errorf("trees must be positive, got %d", p.Trees)
	}
	if p.Contamination <= 0 || p.Contamination >= 0.5 {
		return nil, fmt.Errorf("contamination must be in (0, 0.5), got %v", p.Contamination)
	}

	subSample := p.SubSample
	if subSample <= 0 || subSample > len(samples) {
		subSample = len(samples)
	}
	if subSample > maxSubSample {
		subSample = maxSubSample
	}
	maxDepth := int(math.Ceil(math.Log2(float64(subSample))))

	rng := rand.New(rand.NewSource(p.Seed))
	b := &builder{rng: rng, maxDepth: maxDepth, dims: len(features)}

	m := &Model{
		ID:            uuid.NewString(),
		Features:      append([]string(nil), features...),
		Trees:         make([]Tree, 0, p.Trees),
		SubSample:     subSample,
		Contamination: p.Contamination,
		Seed:          p.Seed,
		Samples:       len(samples),
		TrainedAt:     time.Now().UTC(),
	}

	for i := 0; i < p.Trees; i++ {
		perm := rng.Perm(len(samples))[:subSample]
		sample := make([][]float64, subSample)
		for j, idx := range perm {
			sample[j] = samples[idx]
		}
		tree := Tree{Nodes: make([]Node, 0, 2*subSample)}
		b.build(&tree, sample, 0)
		m.Trees = append(m.Trees, tree)
	}

	// threshold: the (1 - contamination) quantile of the training scores
	scores := make([]float64, len(samples))
	for i, s := range samples {
		scores[i] = m.score(s)
	}
	sort.Float64s(scores)
	m.Threshold = stat.Quantile(1-p.Contamination, stat.LinInterp, scores, nil)

	return m, nil
}

// Score returns the anomaly score in (0, 1]; higher is more anomalous.
func (m *Model) Score(x []float64) (float64, error) {
	if len(m.Trees) == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != len(m.Features) {
		return 0, fmt.Errorf("%w: got %d values, model expects %d", ErrDimension, len(x), len(m.Features))
	}
	return m.score(x), nil
}

// IsOutlier reports whether a score exceeds the fitted threshold.
func (m *Model) IsOutlier(score float64) bool {
	return score > m.Threshold
}

func (m *Model) score(x []float64) float64 {
	total := 0.0
	for i := range m.Trees {
		total += m.Trees[i].pathLength(x)
	}
	avg := total / float64(len(m.Trees))
	c := averagePathLength(m.SubSample)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

func (t *Tree) pathLength(x []float64) float64 {
	idx := int32(0)
	depth := 0
	for {
		n := &t.Nodes[idx]
		if n.Left == leafIndex {
			return float64(depth) + averagePathLength(n.Size)
		}
		v := x[n.Feature]
		// a value outside the range seen at this node is isolated by the next cut
		if v < n.Min || v > n.Max {
			return float64(depth + 1)
		}
		if v < n.Split {
			idx = n.Left
		} else {
			idx = n.Right
		}
		depth++
	}
}

type builder struct {
	rng      *rand.Rand
	maxDepth int
	dims     int
}

// build appends the subtree for data and returns its node index.
func (b *builder) build(t *Tree, data [][]float64, depth int) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{Left: leafIndex, Right: leafIndex, Size: len(data)})

	if len(data) <= 1 || depth >= b.maxDepth {
		return idx
	}

	// pick among features that still vary at this node
	candidates := make([]int, 0, b.dims)
	for f := 0; f < b.dims; f++ {
		lo, hi := featureRange(data, f)
		if hi > lo {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return idx
	}

	feature := candidates[b.rng.Intn(len(candidates))]
	lo, hi := featureRange(data, feature)
	split := lo + b.rng.Float64()*(hi-lo)

	left := make([][]float64, 0, len(data))
	right := make([][]float64, 0, len(data))
	for _, p := range data {
		if p[feature] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return idx
	}

	l := b.build(t, left, depth+1)
	r := b.build(t, right, depth+1)

	t.Nodes[idx] = Node{
		Feature: feature,
		Split:   split,
		Min:     lo,
		Max:     hi,
		Left:    l,
		Right:   r,
		Size:    len(data),
	}
	return idx
}

func featureRange(data [][]float64, f int) (float64, float64) {
	lo, hi := data[0][f], data[0][f]
	for _, p := range data[1:] {
		if p[f] < lo {
			lo = p[f]
		}
		if p[f] > hi {
			hi = p[f]
		}
	}
	return lo, hi
}

// averagePathLength is c(n), the mean unsuccessful-search path length of a BST.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

func checkSamples(samples [][]float64, dims int) error {
	if dims == 0 {
		return fmt.Errorf("%w: no features configured", ErrDegenerateSample)
	}
	if len(samples) < 2 {
		return fmt.Errorf("%w: need at least 2 samples, got %d", ErrDegenerateSample, len(samples))
	}
	for i, s := range samples {
		if len(s) != dims {
			return fmt.Errorf("%w: sample %d has %d values, want %d", ErrDimension, i, len(s), dims)
		}
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: sample %d contains a non-finite value", ErrDegenerateSample, i)
			}
		}
	}

	column := make([]float64, len(samples))
	for f := 0; f < dims; f++ {
		for i, s := range samples {
			column[i] = s[f]
		}
		if stat.Variance(column, nil) > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: zero variance across all features", ErrDegenerateSample)
}
