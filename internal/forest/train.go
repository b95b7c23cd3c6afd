package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TrainOptions controls Train.
type TrainOptions struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	// MaxFeatures is the number of candidate features per split. Zero means
	// floor(sqrt(n_features)).
	MaxFeatures int
	Seed        uint64
}

// DefaultTrainOptions mirrors a small bagged CART ensemble.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Trees: 100, MaxDepth: 10, MinSamplesLeaf: 1}
}

// Train fits a random forest of gini CART trees on bootstrap samples of X.
// y holds class indices into classes. Identical inputs and Seed produce an
// identical forest.
func Train(X mat.Matrix, y []int, classes []string, opts TrainOptions) (*Forest, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.New("forest: empty training matrix")
	}
	if len(y) != r {
		return nil, fmt.Errorf("forest: %d labels for %d rows", len(y), r)
	}
	if len(classes) == 0 {
		return nil, errors.New("forest: no classes")
	}
	for i, v := range y {
		if v < 0 || v >= len(classes) {
			return nil, fmt.Errorf("forest: label %d at row %d out of range", v, i)
		}
	}
	if opts.Trees <= 0 {
		return nil, fmt.Errorf("forest: trees must be positive, got %d", opts.Trees)
	}
	if opts.MaxDepth <= 0 {
		return nil, fmt.Errorf("forest: max depth must be positive, got %d", opts.MaxDepth)
	}
	if opts.MinSamplesLeaf <= 0 {
		opts.MinSamplesLeaf = 1
	}
	mf := opts.MaxFeatures
	if mf <= 0 {
		mf = int(math.Sqrt(float64(c)))
	}
	if mf < 1 {
		mf = 1
	}
	if mf > c {
		mf = c
	}

	data := mat.DenseCopyOf(X)
	f := &Forest{
		Classes:   append([]string(nil), classes...),
		NFeatures: c,
		Trees:     make([]Tree, opts.Trees),
	}
	for t := range f.Trees {
		b := &builder{
			x:        data,
			y:        y,
			k:        len(classes),
			maxDepth: opts.MaxDepth,
			minLeaf:  opts.MinSamplesLeaf,
			maxFeat:  mf,
			rng:      rand.New(rand.NewPCG(opts.Seed, uint64(t))),
		}
		sample := make([]int, r)
		for i := range sample {
			sample[i] = b.rng.IntN(r)
		}
		b.grow(sample, 0)
		f.Trees[t] = Tree{Nodes: b.nodes}
	}
	return f, nil
}

type builder struct {
	x        *mat.Dense
	y        []int
	k        int
	maxDepth int
	minLeaf  int
	maxFeat  int
	rng      *rand.Rand
	nodes    []Node
}

func (b *builder) counts(idx []int) []float64 {
	out := make([]float64, b.k)
	for _, i := range idx {
		out[b.y[i]]++
	}
	return out
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	s := 1.0
	for _, c := range counts {
		p := c / n
		s -= p * p
	}
	return s
}

// grow appends the subtree for idx and returns its root index. Children are
// always appended after their parent.
func (b *builder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: Leaf})
	counts := b.counts(idx)

	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf || gini(counts, float64(len(idx))) == 0 {
		b.nodes[id].Value = counts
		return id
	}
	feat, thr, ok := b.bestSplit(idx, counts)
	if !ok {
		b.nodes[id].Value = counts
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x.At(i, feat) <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = feat
	b.nodes[id].Threshold = thr
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit searches a random subset of features for the threshold with the
// lowest weighted gini impurity. ok is false when no split improves on the
// parent.
func (b *builder) bestSplit(idx []int, parent []float64) (feat int, thr float64, ok bool) {
	n := float64(len(idx))
	best := n * gini(parent, n)
	_, c := b.x.Dims()

	sorted := make([]int, len(idx))
	left := make([]float64, b.k)
	right := make([]float64, b.k)
	for _, f := range b.rng.Perm(c)[:b.maxFeat] {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x.At(sorted[i], f) < b.x.At(sorted[j], f)
		})
		for j := range left {
			left[j] = 0
		}
		copy(right, parent)

		for pos := 0; pos < len(sorted)-1; pos++ {
			cls := b.y[sorted[pos]]
			left[cls]++
			right[cls]--

			nl := float64(pos + 1)
			nr := n - nl
			if int(nl) < b.minLeaf || int(nr) < b.minLeaf {
				continue
			}
			v, next := b.x.At(sorted[pos], f), b.x.At(sorted[pos+1], f)
			if v == next {
				continue
			}
			score := nl*gini(left, nl) + nr*gini(right, nr)
			if score < best-1e-12 {
				best = score
				feat = f
				thr = v + (next-v)/2
				ok = true
			}
		}
	}
	return feat, thr, ok
}
