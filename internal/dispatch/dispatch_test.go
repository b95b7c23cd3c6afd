package dispatch

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/exoquest/internal/artifact"
	"github.com/banshee-data/exoquest/internal/batch"
	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/fsutil"
	"github.com/banshee-data/exoquest/internal/inference"
	"github.com/banshee-data/exoquest/internal/results"
	"github.com/banshee-data/exoquest/internal/synth"
	"github.com/banshee-data/exoquest/internal/testutil"
	"github.com/banshee-data/exoquest/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func smallOpts(seed uint64) synth.Options {
	return synth.Options{Rows: 30, Trees: 3, MaxDepth: 3, Seed: seed}
}

// seed writes synthetic artifacts for ids into a memory-backed source.
func seed(t *testing.T, src *artifact.DirSource, ids ...catalog.ID) {
	t.Helper()
	for _, id := range ids {
		schema := catalog.MustSchema(id)
		set, err := synth.Build(schema, smallOpts(uint64(len(id))))
		require.NoError(t, err)
		require.NoError(t, artifact.Save(context.Background(), src, schema, set))
	}
}

func newSource() *artifact.DirSource {
	return &artifact.DirSource{Dir: "/models", FS: fsutil.NewMemoryFileSystem()}
}

func tessBatch(t *testing.T, ids ...string) *batch.Batch {
	t.Helper()
	schema := catalog.MustSchema(catalog.TESS)
	cols := append([]string{"tid"}, schema.RequiredColumns()...)
	rows := make([][]string, len(ids))
	for i, id := range ids {
		row := []string{id}
		for range schema.RequiredColumns() {
			row = append(row, "1.5")
		}
		rows[i] = row
	}
	b, err := batch.New(cols, rows)
	require.NoError(t, err)
	return b
}

// catalogBatch builds a batch for id with the identifier column set to ids
// and every other required cell set to value, unless cells names it.
func catalogBatch(t *testing.T, id catalog.ID, value string, ids []string, cells map[string][]string) *batch.Batch {
	t.Helper()
	schema := catalog.MustSchema(id)
	cols := append([]string{schema.ID.Column}, schema.RequiredColumns()...)
	rows := make([][]string, len(ids))
	for i, rowID := range ids {
		row := []string{rowID}
		for _, c := range schema.RequiredColumns() {
			v := value
			if col, ok := cells[c]; ok {
				v = col[i]
			}
			row = append(row, v)
		}
		rows[i] = row
	}
	b, err := batch.New(cols, rows)
	require.NoError(t, err)
	return b
}

func TestNew_PartialLoad(t *testing.T) {
	src := newSource()
	seed(t, src, catalog.K2, catalog.TESS)

	clock := timeutil.NewMockClock(epoch)
	d, err := New(context.Background(), Config{Source: src, Clock: clock})
	require.NoError(t, err)

	assert.Equal(t, []catalog.ID{catalog.K2, catalog.TESS}, d.AvailableCatalogs())

	st := d.Statuses()
	require.Len(t, st, 3)
	assert.Equal(t, catalog.Kepler, st[0].Catalog)
	assert.False(t, st[0].Ready)
	assert.Contains(t, st[0].Error, "kepler")
	assert.Equal(t, 87.0, st[0].Accuracy)
	assert.True(t, st[2].Ready)
	assert.Equal(t, 14, st[2].Features)
	assert.ElementsMatch(t, inference.Labels, st[2].Classes)
	assert.Empty(t, st[0].Classes)
	require.NotNil(t, st[2].LoadedAt)
	assert.Equal(t, epoch, *st[2].LoadedAt)
}

func TestNew_NothingLoads(t *testing.T) {
	_, err := New(context.Background(), Config{Source: newSource()})
	assert.Error(t, err)
}

func TestRun_RejectsBeforeWork(t *testing.T) {
	src := newSource()
	seed(t, src, catalog.TESS)
	d, err := New(context.Background(), Config{Source: src})
	require.NoError(t, err)

	// A nil batch would panic if any work were attempted.
	_, err = d.Run(context.Background(), "mars", nil)
	var unknown *catalog.UnknownCatalogError
	require.True(t, errors.As(err, &unknown))

	_, err = d.Run(context.Background(), "demo", nil)
	require.True(t, errors.As(err, &unknown), "demo is unknown unless enabled")

	_, err = d.Run(context.Background(), "kepler", nil)
	var unavailable *UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, catalog.Kepler, unavailable.Catalog)
}

func TestRun_TESS(t *testing.T) {
	src := newSource()
	seed(t, src, catalog.TESS)
	clock := timeutil.NewMockClock(epoch).WithRunCost(25 * time.Millisecond)
	d, err := New(context.Background(), Config{Source: src, Clock: clock})
	require.NoError(t, err)

	run, err := d.Run(context.Background(), "TESS", tessBatch(t, "12345", "", "67890"))
	require.NoError(t, err)
	assert.Equal(t, catalog.TESS, run.Catalog)
	assert.False(t, run.Demo)
	require.Equal(t, 3, run.Total())
	assert.Equal(t, epoch, run.StartedAt)
	assert.Equal(t, 25*time.Millisecond, run.Duration)

	wantIDs := []string{"TIC 12345", "TIC ", "TIC 67890"}
	for i, r := range run.Results {
		assert.Equal(t, i+1, r.Row)
		assert.Equal(t, wantIDs[i], r.StarID)
		assert.Contains(t, inference.Labels, r.Prediction)
		assert.GreaterOrEqual(t, r.ProbabilityScore, 0.0)
		assert.LessOrEqual(t, r.ProbabilityScore, 100.0)
		require.Len(t, r.Fields, 3)
		assert.Equal(t, "Planet radius", r.Fields[0].Name)
	}

	again, err := d.Run(context.Background(), "tess", tessBatch(t, "12345", "", "67890"))
	require.NoError(t, err)
	assert.Equal(t, run.Results, again.Results, "real catalogs are deterministic")
	assert.NotEqual(t, run.ID, again.ID)
}

func TestRun_KeplerMissingDepth(t *testing.T) {
	src := newSource()
	seed(t, src, catalog.Kepler, catalog.K2)
	d, err := New(context.Background(), Config{Source: src})
	require.NoError(t, err)

	categorical := map[string][]string{
		"koi_fittype":       {"LS+MCMC", "LS+MCMC", "LS+MCMC"},
		"koi_parm_prov":     {"Solar", "Solar", "Solar"},
		"koi_tce_delivname": {"q1_q16_tce", "q1_q16_tce", "q1_q16_tce"},
		"koi_sparprov":      {"Solar", "Solar", "Solar"},
	}
	cells := map[string][]string{"koi_depth": {"2.5", "", "2.5"}}
	for k, v := range categorical {
		cells[k] = v
	}
	run, err := d.Run(context.Background(), "kepler", catalogBatch(t, catalog.Kepler, "2.5",
		[]string{"757450", "", "10797460"}, cells))
	require.NoError(t, err)
	require.Equal(t, 3, run.Total())

	wantIDs := []string{"KIC 757450", "KIC ", "KIC 10797460"}
	for i, r := range run.Results {
		assert.Equal(t, i+1, r.Row)
		assert.Equal(t, wantIDs[i], r.StarID)
		require.Len(t, r.Fields, 3)
		assert.Equal(t, "Transit Depth", r.Fields[2].Name)
	}
	assert.Equal(t, results.Num(2.5), run.Results[0].Fields[2].Value)
	assert.Equal(t, results.Missing, run.Results[1].Fields[2].Value)
	assert.Equal(t, results.Num(2.5), run.Results[2].Fields[2].Value)

	// The missing depth is imputed with the artifact median before scaling,
	// so the row classifies exactly like one carrying the median.
	b, err := d.Bundle("kepler")
	require.NoError(t, err)
	median := b.Set.Medians["koi_depth"]
	cells["koi_depth"] = []string{"2.5", strconv.FormatFloat(median, 'g', -1, 64), "2.5"}
	filled, err := d.Run(context.Background(), "kepler", catalogBatch(t, catalog.Kepler, "2.5",
		[]string{"757450", "", "10797460"}, cells))
	require.NoError(t, err)
	assert.Equal(t, filled.Results[1].Prediction, run.Results[1].Prediction)
	assert.Equal(t, filled.Results[1].ProbabilityScore, run.Results[1].ProbabilityScore)
	assert.Equal(t, results.Num(inference.Round(median, 2)), filled.Results[1].Fields[2].Value)
}

func TestRun_K2(t *testing.T) {
	src := newSource()
	seed(t, src, catalog.Kepler, catalog.K2)
	d, err := New(context.Background(), Config{Source: src})
	require.NoError(t, err)

	run, err := d.Run(context.Background(), "k2", catalogBatch(t, catalog.K2, "1.25",
		[]string{"K2-18", "", "EPIC 201367065"}, map[string][]string{"pl_trandur": {"3.125", "", "0"}}))
	require.NoError(t, err)
	assert.Equal(t, catalog.K2, run.Catalog)
	require.Equal(t, 3, run.Total())

	wantIDs := []string{"K2-18", "", "EPIC 201367065"}
	wantDuration := []results.Value{results.Num(3.12), results.Missing, results.Num(0)}
	for i, r := range run.Results {
		assert.Equal(t, i+1, r.Row)
		assert.Equal(t, wantIDs[i], r.StarID)
		assert.Contains(t, inference.Labels, r.Prediction)
		require.Len(t, r.Fields, 3)
		assert.Equal(t, results.Field{Name: "Planet radius", Value: results.Num(1.25)}, r.Fields[0])
		assert.Equal(t, wantDuration[i], r.Fields[1].Value)
	}
}

func TestRun_ReportsIgnoredColumns(t *testing.T) {
	src := newSource()
	seed(t, src, catalog.TESS)
	d, err := New(context.Background(), Config{Source: src})
	require.NoError(t, err)

	run, err := d.Run(context.Background(), "tess", tessBatch(t, "1"))
	require.NoError(t, err)
	assert.Empty(t, run.Ignored)

	csv := strings.Replace(testutil.CatalogCSV(catalog.TESS, "2", "1"), "\n", ",notes,toi\n", -1)
	b, err := batch.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	run, err = d.Run(context.Background(), "tess", b)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes", "toi"}, run.Ignored)
	assert.Equal(t, "TIC 1", run.Results[0].StarID)
}

func TestRun_EmptyBatch(t *testing.T) {
	src := newSource()
	seed(t, src, catalog.TESS)
	d, err := New(context.Background(), Config{Source: src})
	require.NoError(t, err)

	run, err := d.Run(context.Background(), "tess", tessBatch(t))
	require.NoError(t, err)
	assert.Equal(t, 0, run.Total())
}

func TestRun_DemoSynthesizesColumns(t *testing.T) {
	src := newSource()
	d, err := New(context.Background(), Config{Source: src, Demo: true, DemoOptions: smallOpts(5)})
	require.NoError(t, err)
	assert.Equal(t, []catalog.ID{catalog.Demo}, d.AvailableCatalogs())

	b, err := batch.ReadCSV(strings.NewReader("koi_period,koi_depth\n3.5,120.9\n,\n"))
	require.NoError(t, err)
	run, err := d.Run(context.Background(), "demo", b)
	require.NoError(t, err)
	assert.True(t, run.Demo)
	assert.Equal(t, "KIC-10000000", run.Results[0].StarID)
	assert.Equal(t, "KIC-10012345", run.Results[1].StarID)
	assert.Contains(t, run.Synthesized, "koi_prad")
	assert.NotContains(t, run.Synthesized, "koi_period")

	st := d.Statuses()
	assert.True(t, st[len(st)-1].Demo)
	assert.Equal(t, 95.0, st[len(st)-1].Accuracy)
}

func TestReload_SwapsAndKeepsPrevious(t *testing.T) {
	src := newSource()
	seed(t, src, catalog.TESS)
	d, err := New(context.Background(), Config{Source: src})
	require.NoError(t, err)
	assert.Equal(t, []catalog.ID{catalog.TESS}, d.AvailableCatalogs())

	seed(t, src, catalog.K2)
	require.NoError(t, src.FS.WriteFile("/models/tess_scaler.json", []byte("{"), 0o644))

	failures, err := d.Reload(context.Background())
	require.NoError(t, err)
	assert.Contains(t, failures, catalog.TESS)
	assert.Contains(t, failures, catalog.Kepler)
	assert.NotContains(t, failures, catalog.K2)
	assert.Equal(t, []catalog.ID{catalog.K2, catalog.TESS}, d.AvailableCatalogs(), "tess keeps its previous bundle")

	_, err = d.Run(context.Background(), "tess", tessBatch(t, "1"))
	assert.NoError(t, err)
}

func TestRun_ConcurrentWithReload(t *testing.T) {
	src := newSource()
	seed(t, src, catalog.TESS)
	d, err := New(context.Background(), Config{Source: src})
	require.NoError(t, err)

	b := tessBatch(t, "1", "2")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				run, err := d.Run(context.Background(), "tess", b)
				if assert.NoError(t, err) {
					assert.Equal(t, 2, run.Total())
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		_, err := d.Reload(context.Background())
		assert.NoError(t, err)
	}
	wg.Wait()
}
