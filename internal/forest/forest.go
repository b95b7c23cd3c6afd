// Package forest evaluates tree-ensemble classifiers exported as flat node
// tables.
//
// A tree is stored as an array of nodes where node 0 is the root. Internal
// nodes route a sample left when x[Feature] <= Threshold. Leaves carry the
// per-class training weight. The ensemble probability is the mean of each
// tree's normalised leaf distribution, and the predicted class is the first
// class with the highest probability.
package forest

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Leaf marks a node without children.
const Leaf = -1

// Node is one entry of a tree's node table.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return n.Feature == Leaf }

// Tree is a single decision tree.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is an ensemble of trees voting over Classes.
type Forest struct {
	Classes   []string `json:"classes"`
	NFeatures int      `json:"n_features"`
	Trees     []Tree   `json:"trees"`
}

var errEmptyForest = errors.New("forest: no trees")

// Validate checks the node tables are well formed: child indices point
// strictly forward, features are in range and leaves carry one non-negative
// weight per class with a positive total.
func (f *Forest) Validate() error {
	if len(f.Trees) == 0 {
		return errEmptyForest
	}
	if len(f.Classes) == 0 {
		return errors.New("forest: no classes")
	}
	if f.NFeatures <= 0 {
		return fmt.Errorf("forest: n_features must be positive, got %d", f.NFeatures)
	}
	for ti := range f.Trees {
		nodes := f.Trees[ti].Nodes
		if len(nodes) == 0 {
			return fmt.Errorf("forest: tree %d has no nodes", ti)
		}
		for ni := range nodes {
			n := &nodes[ni]
			if n.IsLeaf() {
				if len(n.Value) != len(f.Classes) {
					return fmt.Errorf("forest: tree %d leaf %d has %d values, want %d", ti, ni, len(n.Value), len(f.Classes))
				}
				for _, v := range n.Value {
					if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
						return fmt.Errorf("forest: tree %d leaf %d has invalid weight %v", ti, ni, v)
					}
				}
				if floats.Sum(n.Value) <= 0 {
					return fmt.Errorf("forest: tree %d leaf %d has zero total weight", ti, ni)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NFeatures {
				return fmt.Errorf("forest: tree %d node %d splits on feature %d of %d", ti, ni, n.Feature, f.NFeatures)
			}
			if math.IsNaN(n.Threshold) {
				return fmt.Errorf("forest: tree %d node %d has NaN threshold", ti, ni)
			}
			for _, c := range []int{n.Left, n.Right} {
				if c <= ni || c >= len(nodes) {
					return fmt.Errorf("forest: tree %d node %d has child %d out of range", ti, ni, c)
				}
			}
		}
	}
	return nil
}

// NumFeatures returns the input width the forest was trained on.
func (f *Forest) NumFeatures() int { return f.NFeatures }

// ClassNames returns the class labels in probability-column order.
func (f *Forest) ClassNames() []string {
	out := make([]string, len(f.Classes))
	copy(out, f.Classes)
	return out
}

// leaf walks the tree for one sample and returns the leaf's class weights.
func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// PredictProba returns an r×k matrix of class probabilities for the r rows
// of X, columns aligned with Classes.
func (f *Forest) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if len(f.Trees) == 0 {
		return nil, errEmptyForest
	}
	r, c := X.Dims()
	if c != f.NFeatures {
		return nil, fmt.Errorf("forest: input has %d features, model expects %d", c, f.NFeatures)
	}
	k := len(f.Classes)
	out := mat.NewDense(r, k, nil)
	row := make([]float64, c)
	acc := make([]float64, k)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		for j := range acc {
			acc[j] = 0
		}
		for ti := range f.Trees {
			w := f.Trees[ti].leaf(row)
			total := floats.Sum(w)
			for j, v := range w {
				acc[j] += v / total
			}
		}
		floats.Scale(1/float64(len(f.Trees)), acc)
		out.SetRow(i, acc)
	}
	return out, nil
}

// Predict returns the most probable class for every row of X.
func (f *Forest) Predict(X mat.Matrix) ([]string, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := make([]string, r)
	for i := 0; i < r; i++ {
		out[i] = f.Classes[floats.MaxIdx(proba.RawRowView(i))]
	}
	return out, nil
}
