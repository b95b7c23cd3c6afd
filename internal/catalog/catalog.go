package catalog

import (
	"fmt"
	"strings"
)

// ID names a catalog variant.
type ID string

const (
	Kepler ID = "kepler"
	K2     ID = "k2"
	TESS   ID = "tess"

	// Demo is the untrained fallback variant. It fabricates absent columns
	// and trains on synthetic data, so its output is not reproducible and
	// must never be presented as a real classification.
	Demo ID = "demo"
)

func (id ID) String() string { return string(id) }

// ColumnPolicy decides what happens when a required column is absent from
// an uploaded batch.
type ColumnPolicy int

const (
	// RequireColumns rejects the batch with a MissingRequiredColumnError.
	RequireColumns ColumnPolicy = iota
	// SynthesizeColumns fills the column with independent standard-normal
	// draws. Demo only.
	SynthesizeColumns
)

// ImputePolicy decides where the fill value for a missing numeric cell
// comes from.
type ImputePolicy int

const (
	// ImputeArtifactMedian uses the training-time median shipped with the
	// catalog's artifacts.
	ImputeArtifactMedian ImputePolicy = iota
	// ImputeBatchMean uses the mean of the observed values in the same
	// column of the uploaded batch.
	ImputeBatchMean
)

func (p ColumnPolicy) String() string {
	switch p {
	case RequireColumns:
		return "require"
	case SynthesizeColumns:
		return "synthesize"
	default:
		return fmt.Sprintf("ColumnPolicy(%d)", int(p))
	}
}

func (p ImputePolicy) String() string {
	switch p {
	case ImputeArtifactMedian:
		return "artifact-median"
	case ImputeBatchMean:
		return "batch-mean"
	default:
		return fmt.Sprintf("ImputePolicy(%d)", int(p))
	}
}

// DisplayField is a raw column echoed back with each prediction.
type DisplayField struct {
	Label    string
	Column   string
	Decimals int
	// Truncate drops the fractional part instead of rounding.
	Truncate bool
}

// Identifier describes how the per-row star or target identifier is built.
type Identifier struct {
	// Column is the raw column the identifier is read from.
	Column string
	// Prefix is prepended to the raw value, missing values included.
	Prefix string
	// Synthetic ignores the batch and derives the identifier from the row
	// position.
	Synthetic bool
}

// Schema is the static description of one catalog. Schemas returned by this
// package are shared and must not be modified.
type Schema struct {
	Catalog ID
	Title   string

	// Numeric lists the numeric feature columns in trained order.
	Numeric []string
	// Categorical lists the categorical columns in trained order. The encoded
	// block follows the numeric block in the assembled matrix.
	Categorical []string
	// LogFeatures is the subset of Numeric that receives log1p after
	// imputation and before scaling.
	LogFeatures []string

	Columns ColumnPolicy
	Impute  ImputePolicy

	ID      Identifier
	Display []DisplayField

	// Accuracy is the published hold-out accuracy in percent. It is a fixed
	// figure and is never measured by the service.
	Accuracy float64
}

// HasEncoder reports whether the catalog ships a categorical encoder.
func (s *Schema) HasEncoder() bool { return len(s.Categorical) > 0 }

// HasMedians reports whether the catalog ships a median imputation table.
func (s *Schema) HasMedians() bool { return s.Impute == ImputeArtifactMedian }

// IsDemo reports whether this is the synthetic fallback variant.
func (s *Schema) IsDemo() bool { return s.Columns == SynthesizeColumns }

// RequiredColumns returns the numeric then categorical raw columns.
func (s *Schema) RequiredColumns() []string {
	out := make([]string, 0, len(s.Numeric)+len(s.Categorical))
	out = append(out, s.Numeric...)
	return append(out, s.Categorical...)
}

// IsLogFeature reports whether col is in the log1p subset.
func (s *Schema) IsLogFeature(col string) bool {
	for _, c := range s.LogFeatures {
		if c == col {
			return true
		}
	}
	return false
}

// FormatIdentifier builds the identifier for the row at zero-based position
// row. raw is the raw identifier value and missing reports whether it was
// absent; a missing value contributes an empty suffix.
func (s *Schema) FormatIdentifier(row int, raw string, missing bool) string {
	if s.ID.Synthetic {
		return fmt.Sprintf("%s%d", s.ID.Prefix, 10000000+row*12345)
	}
	if missing {
		raw = ""
	}
	return s.ID.Prefix + raw
}

var registry = map[ID]*Schema{
	Kepler: &keplerSchema,
	K2:     &k2Schema,
	TESS:   &tessSchema,
	Demo:   &demoSchema,
}

// Known returns the production catalogs in their canonical order. Demo is
// deliberately excluded.
func Known() []ID {
	return []ID{Kepler, K2, TESS}
}

// Parse normalises a user supplied catalog name.
func Parse(name string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := registry[id]; !ok {
		return "", &UnknownCatalogError{Name: name}
	}
	return id, nil
}

// SchemaFor returns the schema registered for name.
func SchemaFor(name string) (*Schema, error) {
	id, err := Parse(name)
	if err != nil {
		return nil, err
	}
	return registry[id], nil
}

// MustSchema is SchemaFor for compile-time constants. It panics on an
// unknown ID.
func MustSchema(id ID) *Schema {
	s, ok := registry[id]
	if !ok {
		panic(fmt.Sprintf("catalog: no schema for %q", id))
	}
	return s
}
