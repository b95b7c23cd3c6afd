package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/forest"
	"github.com/banshee-data/exoquest/internal/fsutil"
)

func constantForest(width int) *forest.Forest {
	return &forest.Forest{
		Classes:   []string{"Confirmed", "Candidate", "False Positive"},
		NFeatures: width,
		Trees:     []forest.Tree{{Nodes: []forest.Node{{Feature: forest.Leaf, Value: []float64{1, 2, 1}}}}},
	}
}

func identityScaler(features []string) *Scaler {
	s := &Scaler{Features: append([]string(nil), features...)}
	for range features {
		s.Mean = append(s.Mean, 0)
		s.Scale = append(s.Scale, 1)
	}
	return s
}

func tessSet() *Set {
	schema := catalog.MustSchema(catalog.TESS)
	med := Medians{}
	for _, c := range schema.Numeric {
		med[c] = 1
	}
	return &Set{
		Catalog: catalog.TESS,
		Scaler:  identityScaler(schema.Numeric),
		Medians: med,
		Model:   constantForest(len(schema.Numeric)),
	}
}

func keplerEncoder() *Encoder {
	return NewEncoder([]EncodedColumn{
		{Name: "koi_fittype", Categories: []string{"LS+MCMC", "MCMC"}},
		{Name: "koi_parm_prov", Categories: []string{"q1_q17_dr25_stellar"}},
		{Name: "koi_tce_delivname", Categories: []string{"q1_q16_tce", "q1_q17_dr25_tce"}},
		{Name: "koi_sparprov", Categories: []string{"Solar", "q1_q17_dr25_stellar"}},
	}, HandleUnknownIgnore)
}

func keplerSet() *Set {
	schema := catalog.MustSchema(catalog.Kepler)
	med := Medians{}
	for _, c := range schema.Numeric {
		med[c] = 0.5
	}
	enc := keplerEncoder()
	features := append(append([]string(nil), schema.Numeric...), enc.FeatureNames()...)
	return &Set{
		Catalog: catalog.Kepler,
		Scaler:  identityScaler(features),
		Medians: med,
		Encoder: enc,
		Model:   constantForest(len(features)),
	}
}

func TestScaler_Transform(t *testing.T) {
	s := &Scaler{Features: []string{"a", "b"}, Mean: []float64{1, 10}, Scale: []float64{2, 5}}
	require.NoError(t, s.Validate())

	m := mat.NewDense(2, 2, []float64{3, 10, 1, 20})
	require.NoError(t, s.Transform(m))
	assert.Equal(t, []float64{1, 0, 0, 2}, m.RawMatrix().Data)

	assert.Error(t, s.Transform(mat.NewDense(1, 3, nil)))
}

func TestScaler_Validate(t *testing.T) {
	tests := []struct {
		name string
		s    Scaler
	}{
		{"empty", Scaler{}},
		{"length mismatch", Scaler{Features: []string{"a"}, Mean: []float64{0, 1}, Scale: []float64{1}}},
		{"duplicate", Scaler{Features: []string{"a", "a"}, Mean: []float64{0, 0}, Scale: []float64{1, 1}}},
		{"zero scale", Scaler{Features: []string{"a"}, Mean: []float64{0}, Scale: []float64{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.s.Validate())
		})
	}
}

func TestFitScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	s, err := FitScaler([]string{"x", "const"}, X)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, 1.118033988749895, s.Scale[0], 1e-12)
	assert.Equal(t, 5.0, s.Mean[1])
	assert.Equal(t, 1.0, s.Scale[1], "constant column scale")
	require.NoError(t, s.Validate())
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))

	in := []float64{3, 1}
	Median(in)
	assert.Equal(t, []float64{3, 1}, in)
}

func TestMedians_Validate(t *testing.T) {
	schema := catalog.MustSchema(catalog.TESS)
	set := tessSet()
	require.NoError(t, set.Medians.Validate(schema))

	delete(set.Medians, "pl_rade")
	assert.Error(t, set.Medians.Validate(schema))

	set.Medians["not_a_column"] = 1
	assert.Error(t, set.Medians.Validate(schema))
}

func TestEncoder_FeatureNamesAndEncode(t *testing.T) {
	enc := keplerEncoder()
	require.NoError(t, enc.Validate(catalog.MustSchema(catalog.Kepler)))

	want := []string{
		"koi_fittype_LS+MCMC", "koi_fittype_MCMC",
		"koi_parm_prov_q1_q17_dr25_stellar",
		"koi_tce_delivname_q1_q16_tce", "koi_tce_delivname_q1_q17_dr25_tce",
		"koi_sparprov_Solar", "koi_sparprov_q1_q17_dr25_stellar",
	}
	if diff := cmp.Diff(want, enc.FeatureNames()); diff != "" {
		t.Errorf("FeatureNames() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 7, enc.Width())

	dst := make([]float64, 2)
	require.NoError(t, enc.Encode(dst, 0, "MCMC"))
	assert.Equal(t, []float64{0, 1}, dst)

	require.NoError(t, enc.Encode(dst, 0, "SOMETHING"))
	assert.Equal(t, []float64{0, 0}, dst, "ignore policy gives an all-zero block")

	strict := NewEncoder(enc.Columns, HandleUnknownError)
	err := strict.Encode(dst, 0, "SOMETHING")
	assert.True(t, errors.Is(err, ErrUnknownCategory))
}

func TestEncoder_Validate(t *testing.T) {
	schema := catalog.MustSchema(catalog.Kepler)

	reordered := NewEncoder([]EncodedColumn{
		{Name: "koi_parm_prov", Categories: []string{"a"}},
		{Name: "koi_fittype", Categories: []string{"a"}},
		{Name: "koi_tce_delivname", Categories: []string{"a"}},
		{Name: "koi_sparprov", Categories: []string{"a"}},
	}, HandleUnknownIgnore)
	assert.Error(t, reordered.Validate(schema))

	badPolicy := NewEncoder(keplerEncoder().Columns, "infrequent_if_exist")
	assert.Error(t, badPolicy.Validate(schema))

	handBuilt := &Encoder{Columns: keplerEncoder().Columns, HandleUnknown: HandleUnknownError}
	require.NoError(t, handBuilt.Validate(schema))
	assert.NoError(t, handBuilt.Encode(make([]float64, 2), 0, "MCMC"))
}

func TestEncoder_UnmarshalBuildsIndex(t *testing.T) {
	var enc Encoder
	require.NoError(t, json.Unmarshal([]byte(`{"columns":[{"name":"c","categories":["x","y"]}],"handle_unknown":"error"}`), &enc))
	dst := make([]float64, 2)
	require.NoError(t, enc.Encode(dst, 0, "y"))
	assert.Equal(t, []float64{0, 1}, dst)
}

func TestSet_Validate(t *testing.T) {
	require.NoError(t, tessSet().Validate(catalog.MustSchema(catalog.TESS)))
	require.NoError(t, keplerSet().Validate(catalog.MustSchema(catalog.Kepler)))

	t.Run("scaler order", func(t *testing.T) {
		set := keplerSet()
		f := set.Scaler.Features
		f[len(f)-1], f[len(f)-2] = f[len(f)-2], f[len(f)-1]
		err := set.Validate(catalog.MustSchema(catalog.Kepler))
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, KindScaler, le.Artifact)
	})

	t.Run("model width", func(t *testing.T) {
		set := tessSet()
		set.Model = constantForest(3)
		err := set.Validate(catalog.MustSchema(catalog.TESS))
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, KindModel, le.Artifact)
	})

	t.Run("missing encoder", func(t *testing.T) {
		set := keplerSet()
		set.Encoder = nil
		assert.Error(t, set.Validate(catalog.MustSchema(catalog.Kepler)))
	})

	t.Run("wrong catalog", func(t *testing.T) {
		assert.Error(t, tessSet().Validate(catalog.MustSchema(catalog.K2)))
	})
}

func TestKindsAndFileNames(t *testing.T) {
	assert.Equal(t, []Kind{KindModel, KindScaler, KindMedians, KindEncoder}, Kinds(catalog.MustSchema(catalog.Kepler)))
	assert.Equal(t, []Kind{KindModel, KindScaler, KindMedians}, Kinds(catalog.MustSchema(catalog.TESS)))
	assert.Equal(t, []Kind{KindModel, KindScaler}, Kinds(catalog.MustSchema(catalog.Demo)))
	assert.Equal(t, "kepler_encoder.json", FileName(catalog.Kepler, KindEncoder))
	assert.Equal(t, "tess_medians.json", FileName(catalog.TESS, KindMedians))
}

func TestSaveLoad_DirSource(t *testing.T) {
	ctx := context.Background()
	src := &DirSource{Dir: "/artifacts", FS: fsutil.NewMemoryFileSystem()}

	for _, tc := range []struct {
		schema *catalog.Schema
		set    *Set
	}{
		{catalog.MustSchema(catalog.TESS), tessSet()},
		{catalog.MustSchema(catalog.Kepler), keplerSet()},
	} {
		require.NoError(t, Save(ctx, src, tc.schema, tc.set))
		got, err := Load(ctx, src, tc.schema)
		require.NoError(t, err)
		if diff := cmp.Diff(tc.set, got, cmpopts.IgnoreUnexported(Encoder{})); diff != "" {
			t.Errorf("%s: Load() mismatch (-want +got):\n%s", tc.schema.Catalog, diff)
		}
	}
	assert.True(t, src.FS.Exists(filepath.Join("/artifacts", "kepler_encoder.json")))
	assert.False(t, src.FS.Exists(filepath.Join("/artifacts", "kepler_encoder.json.tmp")))
}

func TestLoad_MissingArtifact(t *testing.T) {
	ctx := context.Background()
	mem := fsutil.NewMemoryFileSystem()
	src := &DirSource{Dir: "/artifacts", FS: mem}
	require.NoError(t, Save(ctx, src, catalog.MustSchema(catalog.TESS), tessSet()))
	require.NoError(t, mem.Remove("/artifacts/tess_medians.json"))

	_, err := Load(ctx, src, catalog.MustSchema(catalog.TESS))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, catalog.TESS, le.Catalog)
	assert.Equal(t, KindMedians, le.Artifact)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoad_CorruptArtifact(t *testing.T) {
	ctx := context.Background()
	mem := fsutil.NewMemoryFileSystem()
	src := &DirSource{Dir: "/artifacts", FS: mem}
	require.NoError(t, Save(ctx, src, catalog.MustSchema(catalog.TESS), tessSet()))
	require.NoError(t, mem.WriteFile("/artifacts/tess_scaler.json", []byte("{not json"), 0o644))

	_, err := Load(ctx, src, catalog.MustSchema(catalog.TESS))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, KindScaler, le.Artifact)
}

func TestDirSource_RejectsPathNames(t *testing.T) {
	src := &DirSource{Dir: "/artifacts", FS: fsutil.NewMemoryFileSystem()}
	_, err := src.Fetch(context.Background(), "../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, src.Put(context.Background(), "a/b.json", nil))
}
