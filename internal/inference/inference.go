// Package inference wraps a loaded classifier and turns its probability
// output into labelled predictions.
package inference

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Disposition labels.
const (
	Confirmed     = "Confirmed"
	Candidate     = "Candidate"
	FalsePositive = "False Positive"
)

// Labels lists the dispositions in display order.
var Labels = []string{Confirmed, Candidate, FalsePositive}

// archiveLabels maps the disposition spellings used by the Kepler, K2 and
// TESS archives onto Labels.
var archiveLabels = map[string]string{
	"CONFIRMED":      Confirmed,
	"CP":             Confirmed,
	"KP":             Confirmed,
	"CANDIDATE":      Candidate,
	"PC":             Candidate,
	"APC":            Candidate,
	"FALSE POSITIVE": FalsePositive,
	"FALSE_POSITIVE": FalsePositive,
	"FP":             FalsePositive,
	"FA":             FalsePositive,
	"REFUTED":        FalsePositive,
}

// NormalizeLabel maps a class name onto one of Labels.
func NormalizeLabel(class string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(class))
	if l, ok := archiveLabels[c]; ok {
		return l, nil
	}
	return "", fmt.Errorf("class %q is not a known disposition", class)
}

// Classifier is the capability the engine needs from a trained model.
type Classifier interface {
	ClassNames() []string
	NumFeatures() int
	PredictProba(X mat.Matrix) (*mat.Dense, error)
}

// Prediction is the classifier output for one row.
type Prediction struct {
	Label string
	// Probabilities is aligned with the engine's Classes.
	Probabilities []float64
}

// Max returns the largest class probability.
func (p Prediction) Max() float64 {
	if len(p.Probabilities) == 0 {
		return 0
	}
	return floats.Max(p.Probabilities)
}

// Confidence returns the winning probability as a percentage rounded to two
// decimals.
func (p Prediction) Confidence() float64 {
	return Round(p.Max()*100, 2)
}

// Round rounds v to places decimals. It works on the exact binary value of
// v, so 2.675 (stored just below the half) rounds down, and exact ties go to
// the even digit: Round(3.125, 2) is 3.12.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Engine produces predictions from a classifier. It is safe for concurrent
// use when the classifier is.
type Engine struct {
	model   Classifier
	classes []string
}

// NewEngine wraps model, normalising its class names to Labels.
func NewEngine(model Classifier) (*Engine, error) {
	if model == nil {
		return nil, errors.New("inference: nil classifier")
	}
	raw := model.ClassNames()
	if len(raw) == 0 {
		return nil, errors.New("inference: classifier has no classes")
	}
	classes := make([]string, len(raw))
	for i, c := range raw {
		l, err := NormalizeLabel(c)
		if err != nil {
			return nil, fmt.Errorf("inference: %w", err)
		}
		classes[i] = l
	}
	return &Engine{model: model, classes: classes}, nil
}

// Classes returns the normalised labels in probability order.
func (e *Engine) Classes() []string {
	return append([]string(nil), e.classes...)
}

// NumFeatures returns the input width the classifier expects.
func (e *Engine) NumFeatures() int { return e.model.NumFeatures() }

// Predict classifies every row of X, preserving order. The label is the
// class with the highest probability; ties go to the first class. A nil X
// yields no predictions.
func (e *Engine) Predict(X *mat.Dense) ([]Prediction, error) {
	if X == nil || X.IsEmpty() {
		return []Prediction{}, nil
	}
	if _, c := X.Dims(); c != e.model.NumFeatures() {
		return nil, fmt.Errorf("inference: matrix has %d features, classifier expects %d", c, e.model.NumFeatures())
	}
	proba, err := e.model.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	r, k := proba.Dims()
	if k != len(e.classes) {
		return nil, fmt.Errorf("inference: classifier returned %d probabilities for %d classes", k, len(e.classes))
	}
	out := make([]Prediction, r)
	for i := 0; i < r; i++ {
		p := mat.Row(nil, i, proba)
		out[i] = Prediction{Label: e.classes[floats.MaxIdx(p)], Probabilities: p}
	}
	return out, nil
}
