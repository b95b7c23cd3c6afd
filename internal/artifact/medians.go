package artifact

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/exoquest/internal/catalog"
)

// Medians maps each numeric column to its training-time median.
type Medians map[string]float64

// Validate checks there is exactly one finite median per numeric column of
// schema and nothing else.
func (m Medians) Validate(schema *catalog.Schema) error {
	if len(m) != len(schema.Numeric) {
		return fmt.Errorf("median table has %d entries, %s has %d numeric columns", len(m), schema.Catalog, len(schema.Numeric))
	}
	for _, col := range schema.Numeric {
		v, ok := m[col]
		if !ok {
			return fmt.Errorf("median table has no entry for %q", col)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("median for %q is %v", col, v)
		}
	}
	return nil
}

// Median returns the empirical median of values. values is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	if len(s)%2 == 1 {
		return s[len(s)/2]
	}
	return stat.Mean(s[len(s)/2-1:len(s)/2+1], nil)
}
