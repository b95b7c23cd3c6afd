// Package synth fits schema-valid artifact sets on synthetic data.
//
// The sets it produces have the right shape for their catalog but carry no
// information: labels are drawn at random. They back the demo variant and
// let a deployment be exercised before real artifacts exist.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/banshee-data/exoquest/internal/artifact"
	"github.com/banshee-data/exoquest/internal/batch"
	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/forest"
	"github.com/banshee-data/exoquest/internal/inference"
	"github.com/banshee-data/exoquest/internal/pipeline"
)

// Options controls Build.
type Options struct {
	Rows     int
	Trees    int
	MaxDepth int
	Seed     uint64
}

// DefaultOptions returns a small ensemble over 1000 synthetic rows.
func DefaultOptions() Options {
	return Options{Rows: 1000, Trees: 50, MaxDepth: 8}
}

// categories holds plausible values for categorical columns, taken from the
// Kepler cumulative table.
var categories = map[string][]string{
	"koi_fittype":       {"LS+MCMC", "MCMC", "DV", "none"},
	"koi_parm_prov":     {"q1_q17_dr25_stellar", "q1_q16_stellar", "Solar"},
	"koi_tce_delivname": {"q1_q17_dr25_tce", "q1_q16_tce", "q1_q12_tce"},
	"koi_sparprov":      {"q1_q17_dr25_stellar", "q1_q16_stellar", "Solar", "Berger2018"},
}

func categoriesFor(col string) []string {
	if c, ok := categories[col]; ok {
		return c
	}
	return []string{"A", "B"}
}

// Build generates a synthetic batch for schema, then fits medians, encoder,
// scaler and a random forest on it. The same Options yield the same set.
func Build(schema *catalog.Schema, opts Options) (*artifact.Set, error) {
	if opts.Rows < 2 {
		return nil, errors.New("synth: need at least 2 rows")
	}
	rng := rand.New(rand.NewPCG(opts.Seed, 0x5eed))

	b, columns := generate(schema, opts.Rows, rng)
	set := &artifact.Set{Catalog: schema.Catalog}
	if schema.HasMedians() {
		set.Medians = make(artifact.Medians, len(schema.Numeric))
		for _, c := range schema.Numeric {
			set.Medians[c] = artifact.Median(columns[c])
		}
	}
	if schema.HasEncoder() {
		enc := make([]artifact.EncodedColumn, len(schema.Categorical))
		for i, c := range schema.Categorical {
			enc[i] = artifact.EncodedColumn{Name: c, Categories: categoriesFor(c)}
		}
		set.Encoder = artifact.NewEncoder(enc, artifact.HandleUnknownIgnore)
	}

	res, err := pipeline.Assemble(b, schema, set, pipeline.WithNormal(rng.NormFloat64))
	if err != nil {
		return nil, fmt.Errorf("synth: assemble: %w", err)
	}
	scaler, err := artifact.FitScaler(res.Features, res.Matrix)
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	if err := scaler.Transform(res.Matrix); err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	set.Scaler = scaler

	y := make([]int, opts.Rows)
	for i := range y {
		y[i] = rng.IntN(len(inference.Labels))
	}
	model, err := forest.Train(res.Matrix, y, inference.Labels, forest.TrainOptions{
		Trees:          opts.Trees,
		MaxDepth:       opts.MaxDepth,
		MinSamplesLeaf: 1,
		Seed:           opts.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("synth: %w", err)
	}
	set.Model = model

	if err := set.Validate(schema); err != nil {
		return nil, err
	}
	return set, nil
}

// generate draws a raw batch with every required column. Log features are
// log-normal so they stay inside the log1p domain.
func generate(schema *catalog.Schema, rows int, rng *rand.Rand) (*batch.Batch, map[string][]float64) {
	cols := schema.RequiredColumns()
	values := make(map[string][]float64, len(schema.Numeric))
	data := make([][]string, rows)
	for i := range data {
		data[i] = make([]string, len(cols))
	}
	for j, c := range schema.Numeric {
		vs := make([]float64, rows)
		for i := range vs {
			v := rng.NormFloat64()
			if schema.IsLogFeature(c) {
				v = math.Exp(v)
			}
			vs[i] = v
			data[i][j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		values[c] = vs
	}
	for k, c := range schema.Categorical {
		cats := categoriesFor(c)
		for i := range data {
			data[i][len(schema.Numeric)+k] = cats[rng.IntN(len(cats))]
		}
	}
	b, err := batch.New(cols, data)
	if err != nil {
		// Column names come from a schema and are unique.
		panic(err)
	}
	return b, values
}
