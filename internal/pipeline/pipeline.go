// Package pipeline turns a raw batch into the scaled feature matrix a
// catalog's classifier expects.
//
// The stages run in a fixed order: column projection, imputation, log1p on
// the catalog's log features, one-hot encoding of categorical columns and
// affine scaling. The assembled feature names are compared with the scaler's
// before scaling, so a reordered or stale artifact fails loudly instead of
// producing wrong predictions.
package pipeline

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/exoquest/internal/artifact"
	"github.com/banshee-data/exoquest/internal/batch"
	"github.com/banshee-data/exoquest/internal/catalog"
)

// Result is a transformed batch.
type Result struct {
	// Matrix has one row per batch row and one column per feature. It is nil
	// for an empty batch.
	Matrix   *mat.Dense
	Features []string
	// Batch is the untouched input, kept for result formatting.
	Batch *batch.Batch
	// Synthesized lists columns fabricated from random draws.
	Synthesized []string
}

// Rows returns the number of transformed rows.
func (r *Result) Rows() int { return r.Batch.Len() }

type options struct {
	normal func() float64
}

// Option configures a transform.
type Option func(*options)

// WithNormal sets the standard-normal source used to synthesize absent
// columns.
func WithNormal(f func() float64) Option {
	return func(o *options) { o.normal = f }
}

func buildOptions(opts []Option) options {
	o := options{normal: rand.NormFloat64}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Assemble runs every stage except scaling. The result's matrix is unscaled;
// it is used directly when fitting a scaler.
func Assemble(b *batch.Batch, schema *catalog.Schema, set *artifact.Set, opts ...Option) (*Result, error) {
	o := buildOptions(opts)
	if schema.HasEncoder() && set.Encoder == nil {
		return nil, fmt.Errorf("%s: no encoder loaded", schema.Catalog)
	}
	if schema.HasMedians() && set.Medians == nil {
		return nil, fmt.Errorf("%s: no median table loaded", schema.Catalog)
	}

	synth, err := project(b, schema)
	if err != nil {
		return nil, err
	}

	features := set.FeatureNames(schema)
	n := b.Len()
	res := &Result{Features: features, Batch: b, Synthesized: synth}
	if n == 0 {
		return res, nil
	}
	m := mat.NewDense(n, len(features), nil)

	synthesized := make(map[string]bool, len(synth))
	for _, c := range synth {
		synthesized[c] = true
	}
	col := make([]float64, n)
	for j, name := range schema.Numeric {
		if synthesized[name] {
			for i := range col {
				col[i] = o.normal()
			}
		} else if err := imputeColumn(col, b, schema, set, name); err != nil {
			return nil, err
		}
		if schema.IsLogFeature(name) {
			for i, v := range col {
				if v <= -1 {
					return nil, &InvalidValueError{
						Catalog: schema.Catalog, Column: name, Row: i + 1,
						Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: "is outside the log1p domain (> -1)",
					}
				}
				col[i] = math.Log1p(v)
			}
		}
		m.SetCol(j, col)
	}

	if set.Encoder != nil {
		if err := encode(m, len(schema.Numeric), b, schema, set.Encoder); err != nil {
			return nil, err
		}
	}
	res.Matrix = m
	return res, nil
}

// Transform runs the full pipeline. The returned matrix is aligned to the
// scaler's feature order.
func Transform(b *batch.Batch, schema *catalog.Schema, set *artifact.Set, opts ...Option) (*Result, error) {
	if set.Scaler == nil {
		return nil, fmt.Errorf("%s: no scaler loaded", schema.Catalog)
	}
	res, err := Assemble(b, schema, set, opts...)
	if err != nil {
		return nil, err
	}
	if err := checkFeatures(schema.Catalog, set.Scaler.Features, res.Features); err != nil {
		return nil, err
	}
	if res.Matrix != nil {
		if err := set.Scaler.Transform(res.Matrix); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// project checks column presence and returns the columns to synthesize.
// A column with no observed value counts as absent.
func project(b *batch.Batch, schema *catalog.Schema) ([]string, error) {
	var absent []string
	for _, c := range schema.RequiredColumns() {
		if !b.Has(c) {
			absent = append(absent, c)
		}
	}
	switch schema.Columns {
	case catalog.RequireColumns:
		if len(absent) > 0 {
			return nil, &MissingRequiredColumnError{Catalog: schema.Catalog, Columns: absent}
		}
		return nil, nil
	case catalog.SynthesizeColumns:
		var synth []string
		for _, c := range schema.Numeric {
			if !b.Has(c) || (b.Len() > 0 && b.CountMissing(c) == b.Len()) {
				synth = append(synth, c)
			}
		}
		return synth, nil
	default:
		return nil, fmt.Errorf("%s: unsupported column policy %v", schema.Catalog, schema.Columns)
	}
}

// imputeColumn parses column name into col, filling missing cells according
// to the schema's imputation policy.
func imputeColumn(col []float64, b *batch.Batch, schema *catalog.Schema, set *artifact.Set, name string) error {
	missing := make([]bool, len(col))
	observed := make([]float64, 0, len(col))
	for i := range col {
		v, ok, err := b.Float(i, name)
		if err != nil {
			raw, _ := b.Raw(i, name)
			return &InvalidValueError{Catalog: schema.Catalog, Column: name, Row: i + 1, Value: raw, Reason: "is not a number"}
		}
		if !ok {
			missing[i] = true
			continue
		}
		if math.IsInf(v, 0) {
			raw, _ := b.Raw(i, name)
			return &InvalidValueError{Catalog: schema.Catalog, Column: name, Row: i + 1, Value: raw, Reason: "is not finite"}
		}
		col[i] = v
		observed = append(observed, v)
	}
	if len(observed) == len(col) {
		return nil
	}

	var fill float64
	switch schema.Impute {
	case catalog.ImputeArtifactMedian:
		fill = set.Medians[name]
	case catalog.ImputeBatchMean:
		fill = stat.Mean(observed, nil)
	default:
		return fmt.Errorf("%s: unsupported impute policy %v", schema.Catalog, schema.Impute)
	}
	for i, m := range missing {
		if m {
			col[i] = fill
		}
	}
	return nil
}

// encode writes the one-hot block for every categorical column starting at
// column offset of m. A missing cell is looked up as the empty category.
func encode(m *mat.Dense, offset int, b *batch.Batch, schema *catalog.Schema, enc *artifact.Encoder) error {
	n, _ := m.Dims()
	for ci, ec := range enc.Columns {
		width := len(ec.Categories)
		for i := 0; i < n; i++ {
			raw, _ := b.Raw(i, ec.Name)
			dst := m.RawRowView(i)[offset : offset+width]
			if err := enc.Encode(dst, ci, raw); err != nil {
				if errors.Is(err, artifact.ErrUnknownCategory) {
					return &InvalidValueError{Catalog: schema.Catalog, Column: ec.Name, Row: i + 1, Value: raw, Reason: "is not a known category"}
				}
				return err
			}
		}
		offset += width
	}
	return nil
}

func checkFeatures(id catalog.ID, want, got []string) error {
	for i := 0; i < len(want) && i < len(got); i++ {
		if want[i] != got[i] {
			return &SchemaMismatchError{Catalog: id, Index: i, Expected: want[i], Got: got[i], Want: len(want), Have: len(got)}
		}
	}
	if len(want) != len(got) {
		return &SchemaMismatchError{Catalog: id, Index: -1, Want: len(want), Have: len(got)}
	}
	return nil
}
