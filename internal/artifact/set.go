package artifact

import (
	"fmt"
	"slices"

	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/forest"
)

// Kind names one artifact of a set.
type Kind string

const (
	KindModel   Kind = "model"
	KindScaler  Kind = "scaler"
	KindMedians Kind = "medians"
	KindEncoder Kind = "encoder"
)

// FileName returns the object name of artifact k for catalog id.
func FileName(id catalog.ID, k Kind) string {
	return fmt.Sprintf("%s_%s.json", id, k)
}

// Set is the complete artifact bundle for one catalog.
type Set struct {
	Catalog catalog.ID
	Scaler  *Scaler
	// Medians is nil for catalogs that impute from the batch.
	Medians Medians
	// Encoder is nil for catalogs without categorical columns.
	Encoder *Encoder
	Model   *forest.Forest
}

// Kinds returns the artifacts schema requires, model first.
func Kinds(schema *catalog.Schema) []Kind {
	kinds := []Kind{KindModel, KindScaler}
	if schema.HasMedians() {
		kinds = append(kinds, KindMedians)
	}
	if schema.HasEncoder() {
		kinds = append(kinds, KindEncoder)
	}
	return kinds
}

// FeatureNames returns the assembled feature order the schema and encoder
// produce: the numeric columns then the encoded columns.
func (s *Set) FeatureNames(schema *catalog.Schema) []string {
	names := append([]string(nil), schema.Numeric...)
	if s.Encoder != nil {
		names = append(names, s.Encoder.FeatureNames()...)
	}
	return names
}

// Validate checks every artifact individually and that they agree with each
// other and with schema. The scaler feature list must equal the assembled
// feature order exactly.
func (s *Set) Validate(schema *catalog.Schema) error {
	if s.Catalog != schema.Catalog {
		return &LoadError{Catalog: schema.Catalog, Err: fmt.Errorf("artifact set is for %s", s.Catalog)}
	}
	fail := func(k Kind, err error) error {
		return &LoadError{Catalog: schema.Catalog, Artifact: k, Err: err}
	}
	if s.Model == nil {
		return fail(KindModel, errMissing)
	}
	if err := s.Model.Validate(); err != nil {
		return fail(KindModel, err)
	}
	if s.Scaler == nil {
		return fail(KindScaler, errMissing)
	}
	if err := s.Scaler.Validate(); err != nil {
		return fail(KindScaler, err)
	}
	if schema.HasMedians() {
		if s.Medians == nil {
			return fail(KindMedians, errMissing)
		}
		if err := s.Medians.Validate(schema); err != nil {
			return fail(KindMedians, err)
		}
	}
	if schema.HasEncoder() {
		if s.Encoder == nil {
			return fail(KindEncoder, errMissing)
		}
		if err := s.Encoder.Validate(schema); err != nil {
			return fail(KindEncoder, err)
		}
	} else if s.Encoder != nil {
		return fail(KindEncoder, fmt.Errorf("%s has no categorical columns", schema.Catalog))
	}

	if want := s.FeatureNames(schema); !slices.Equal(want, s.Scaler.Features) {
		return fail(KindScaler, fmt.Errorf("scaler features do not match the %d assembled features", len(want)))
	}
	if s.Model.NumFeatures() != s.Scaler.Width() {
		return fail(KindModel, fmt.Errorf("model expects %d features, scaler has %d", s.Model.NumFeatures(), s.Scaler.Width()))
	}
	return nil
}
