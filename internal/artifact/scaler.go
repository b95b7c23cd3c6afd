package artifact

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scaler is a fitted per-feature affine transform: x' = (x - Mean) / Scale.
// Features names the trained input columns in matrix order.
type Scaler struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

// Validate checks the three vectors agree and every scale is usable.
func (s *Scaler) Validate() error {
	if len(s.Features) == 0 {
		return errors.New("scaler has no features")
	}
	if len(s.Mean) != len(s.Features) || len(s.Scale) != len(s.Features) {
		return fmt.Errorf("scaler has %d features, %d means and %d scales", len(s.Features), len(s.Mean), len(s.Scale))
	}
	seen := make(map[string]bool, len(s.Features))
	for i, name := range s.Features {
		if seen[name] {
			return fmt.Errorf("scaler lists feature %q twice", name)
		}
		seen[name] = true
		if math.IsNaN(s.Mean[i]) || math.IsInf(s.Mean[i], 0) {
			return fmt.Errorf("scaler mean for %q is %v", name, s.Mean[i])
		}
		if s.Scale[i] == 0 || math.IsNaN(s.Scale[i]) || math.IsInf(s.Scale[i], 0) {
			return fmt.Errorf("scaler scale for %q is %v", name, s.Scale[i])
		}
	}
	return nil
}

// Width returns the number of features.
func (s *Scaler) Width() int { return len(s.Features) }

// Transform scales m in place. m must have Width columns.
func (s *Scaler) Transform(m *mat.Dense) error {
	r, c := m.Dims()
	if c != len(s.Features) {
		return fmt.Errorf("scaler expects %d columns, got %d", len(s.Features), c)
	}
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] = (row[j] - s.Mean[j]) / s.Scale[j]
		}
	}
	return nil
}

// FitScaler fits a standard scaler to the columns of X using the population
// standard deviation. Constant columns get a scale of 1.
func FitScaler(features []string, X mat.Matrix) (*Scaler, error) {
	r, c := X.Dims()
	if c != len(features) {
		return nil, fmt.Errorf("fit scaler: %d names for %d columns", len(features), c)
	}
	if r == 0 {
		return nil, errors.New("fit scaler: no rows")
	}
	s := &Scaler{
		Features: append([]string(nil), features...),
		Mean:     make([]float64, c),
		Scale:    make([]float64, c),
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}
