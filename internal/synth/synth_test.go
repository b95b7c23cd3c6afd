package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/exoquest/internal/catalog"
)

func small(seed uint64) Options {
	return Options{Rows: 40, Trees: 3, MaxDepth: 3, Seed: seed}
}

func TestBuild_EveryCatalogValidates(t *testing.T) {
	for _, id := range append(catalog.Known(), catalog.Demo) {
		t.Run(string(id), func(t *testing.T) {
			schema := catalog.MustSchema(id)
			set, err := Build(schema, small(1))
			require.NoError(t, err)
			require.NoError(t, set.Validate(schema))
			assert.Equal(t, set.Scaler.Width(), set.Model.NumFeatures())
			assert.Equal(t, schema.HasMedians(), set.Medians != nil)
			assert.Equal(t, schema.HasEncoder(), set.Encoder != nil)
		})
	}
}

func TestBuild_KeplerEncodedWidth(t *testing.T) {
	set, err := Build(catalog.MustSchema(catalog.Kepler), small(2))
	require.NoError(t, err)
	assert.Equal(t, 57+4+3+3+4, set.Scaler.Width())
	assert.Equal(t, "koi_fittype_LS+MCMC", set.Scaler.Features[57])
}

func TestBuild_Deterministic(t *testing.T) {
	schema := catalog.MustSchema(catalog.TESS)
	a, err := Build(schema, small(9))
	require.NoError(t, err)
	b, err := Build(schema, small(9))
	require.NoError(t, err)
	assert.Equal(t, a.Scaler, b.Scaler)
	assert.Equal(t, a.Medians, b.Medians)
	assert.Equal(t, a.Model, b.Model)
}

func TestBuild_LogFeatureMediansPositive(t *testing.T) {
	schema := catalog.MustSchema(catalog.TESS)
	set, err := Build(schema, small(3))
	require.NoError(t, err)
	for _, c := range schema.LogFeatures {
		assert.Greater(t, set.Medians[c], 0.0, c)
	}
}

func TestBuild_RejectsTinyBatches(t *testing.T) {
	_, err := Build(catalog.MustSchema(catalog.Demo), Options{Rows: 1, Trees: 1, MaxDepth: 1})
	assert.Error(t, err)
}
