package artifact

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/forest"
)

// Load fetches, decodes and validates the artifact set for schema from src.
// Every failure is a *LoadError naming the artifact.
func Load(ctx context.Context, src Source, schema *catalog.Schema) (*Set, error) {
	set := &Set{Catalog: schema.Catalog}
	for _, k := range Kinds(schema) {
		data, err := src.Fetch(ctx, FileName(schema.Catalog, k))
		if err != nil {
			return nil, &LoadError{Catalog: schema.Catalog, Artifact: k, Err: err}
		}
		var target any
		switch k {
		case KindModel:
			set.Model = &forest.Forest{}
			target = set.Model
		case KindScaler:
			set.Scaler = &Scaler{}
			target = set.Scaler
		case KindMedians:
			target = &set.Medians
		case KindEncoder:
			set.Encoder = &Encoder{}
			target = set.Encoder
		}
		if err := json.Unmarshal(data, target); err != nil {
			return nil, &LoadError{Catalog: schema.Catalog, Artifact: k, Err: fmt.Errorf("decode: %w", err)}
		}
	}
	if err := set.Validate(schema); err != nil {
		return nil, err
	}
	return set, nil
}

// Save validates set against schema and writes every artifact to dst.
func Save(ctx context.Context, dst Sink, schema *catalog.Schema, set *Set) error {
	if err := set.Validate(schema); err != nil {
		return err
	}
	for _, k := range Kinds(schema) {
		var v any
		switch k {
		case KindModel:
			v = set.Model
		case KindScaler:
			v = set.Scaler
		case KindMedians:
			v = set.Medians
		case KindEncoder:
			v = set.Encoder
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", schema.Catalog, k, err)
		}
		if err := dst.Put(ctx, FileName(schema.Catalog, k), data); err != nil {
			return fmt.Errorf("store %s %s: %w", schema.Catalog, k, err)
		}
	}
	return nil
}
