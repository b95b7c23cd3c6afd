// Package dispatch routes a batch to the pipeline, engine and formatter of
// the requested catalog.
//
// Every catalog's artifacts are loaded once, concurrently, into an immutable
// registry. Runs read the registry without locking. Reload builds a fresh
// registry and swaps it in atomically, so in-flight runs finish on the
// bundles they started with.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/exoquest/internal/artifact"
	"github.com/banshee-data/exoquest/internal/batch"
	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/inference"
	"github.com/banshee-data/exoquest/internal/monitoring"
	"github.com/banshee-data/exoquest/internal/pipeline"
	"github.com/banshee-data/exoquest/internal/results"
	"github.com/banshee-data/exoquest/internal/synth"
	"github.com/banshee-data/exoquest/internal/timeutil"
)

// Bundle is everything needed to serve one catalog.
type Bundle struct {
	Schema   *catalog.Schema
	Set      *artifact.Set
	Engine   *inference.Engine
	LoadedAt time.Time
}

// NewBundle validates set against schema and wraps its model.
func NewBundle(schema *catalog.Schema, set *artifact.Set, loadedAt time.Time) (*Bundle, error) {
	if err := set.Validate(schema); err != nil {
		return nil, err
	}
	engine, err := inference.NewEngine(set.Model)
	if err != nil {
		return nil, &artifact.LoadError{Catalog: schema.Catalog, Artifact: artifact.KindModel, Err: err}
	}
	return &Bundle{Schema: schema, Set: set, Engine: engine, LoadedAt: loadedAt}, nil
}

type registry struct {
	bundles  map[catalog.ID]*Bundle
	failures map[catalog.ID]error
}

// Config configures a Dispatcher.
type Config struct {
	Source artifact.Source
	// Demo enables the synthetic demo variant.
	Demo        bool
	DemoOptions synth.Options
	Clock       timeutil.Clock
}

// Dispatcher serves runs against the loaded catalogs.
type Dispatcher struct {
	cfg    Config
	reg    atomic.Pointer[registry]
	reload sync.Mutex
}

// New loads every known catalog from cfg.Source. A catalog that fails to
// load is logged and reported as unavailable; the others keep serving. New
// fails only when nothing at all could be loaded.
func New(ctx context.Context, cfg Config) (*Dispatcher, error) {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Demo && cfg.DemoOptions.Seed == 0 {
		cfg.DemoOptions.Seed = uint64(cfg.Clock.Now().UnixNano())
	}
	d := &Dispatcher{cfg: cfg}
	reg, err := d.build(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(reg.bundles) == 0 {
		return nil, fmt.Errorf("dispatch: no catalog could be loaded from %v", cfg.Source)
	}
	d.reg.Store(reg)
	return d, nil
}

// build loads every catalog concurrently. When prev is non-nil a catalog
// that fails to load keeps its previous bundle.
func (d *Dispatcher) build(ctx context.Context, prev *registry) (*registry, error) {
	ids := catalog.Known()
	if d.cfg.Demo {
		ids = append(ids, catalog.Demo)
	}
	bundles := make([]*Bundle, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			bundles[i], errs[i] = d.load(gctx, catalog.MustSchema(id))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reg := &registry{bundles: map[catalog.ID]*Bundle{}, failures: map[catalog.ID]error{}}
	for i, id := range ids {
		if errs[i] == nil {
			reg.bundles[id] = bundles[i]
			monitoring.With(logrus.Fields{"catalog": id, "features": bundles[i].Set.Scaler.Width()}).Info("catalog loaded")
			continue
		}
		reg.failures[id] = errs[i]
		monitoring.With(logrus.Fields{"catalog": id}).WithError(errs[i]).Warn("catalog unavailable")
		if prev != nil {
			if old, ok := prev.bundles[id]; ok {
				reg.bundles[id] = old
			}
		}
	}
	return reg, nil
}

func (d *Dispatcher) load(ctx context.Context, schema *catalog.Schema) (*Bundle, error) {
	var (
		set *artifact.Set
		err error
	)
	if schema.IsDemo() {
		set, err = synth.Build(schema, d.cfg.DemoOptions)
	} else if d.cfg.Source == nil {
		err = &artifact.LoadError{Catalog: schema.Catalog, Err: fmt.Errorf("no artifact source configured")}
	} else {
		set, err = artifact.Load(ctx, d.cfg.Source, schema)
	}
	if err != nil {
		return nil, err
	}
	return NewBundle(schema, set, d.cfg.Clock.Now())
}

// Reload reloads every catalog and swaps the new bundles in atomically. It
// returns the per-catalog failures, if any; catalogs that fail keep serving
// their previous artifacts.
func (d *Dispatcher) Reload(ctx context.Context) (map[catalog.ID]error, error) {
	d.reload.Lock()
	defer d.reload.Unlock()

	reg, err := d.build(ctx, d.reg.Load())
	if err != nil {
		return nil, err
	}
	d.reg.Store(reg)
	return reg.failures, nil
}

// AvailableCatalogs returns the catalogs that can serve runs, known catalogs
// first in canonical order.
func (d *Dispatcher) AvailableCatalogs() []catalog.ID {
	reg := d.reg.Load()
	var out []catalog.ID
	for _, id := range append(catalog.Known(), catalog.Demo) {
		if _, ok := reg.bundles[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Status describes one catalog for the models listing.
type Status struct {
	Catalog  catalog.ID `json:"name"`
	Title    string     `json:"title"`
	Accuracy float64    `json:"accuracy"`
	Ready    bool       `json:"ready"`
	Demo     bool       `json:"demo"`
	Features int        `json:"features,omitempty"`
	Classes  []string   `json:"classes,omitempty"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Statuses reports every known catalog, plus demo when enabled.
func (d *Dispatcher) Statuses() []Status {
	reg := d.reg.Load()
	ids := catalog.Known()
	if d.cfg.Demo {
		ids = append(ids, catalog.Demo)
	}
	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		schema := catalog.MustSchema(id)
		st := Status{Catalog: id, Title: schema.Title, Accuracy: schema.Accuracy, Demo: schema.IsDemo()}
		if b, ok := reg.bundles[id]; ok {
			st.Ready = true
			st.Features = b.Set.Scaler.Width()
			st.Classes = b.Engine.Classes()
			t := b.LoadedAt
			st.LoadedAt = &t
		}
		if err, ok := reg.failures[id]; ok {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// Run is the outcome of classifying one batch.
type Run struct {
	ID        uuid.UUID
	Catalog   catalog.ID
	Demo      bool
	Results   []results.PredictionResult
	StartedAt time.Time
	Duration  time.Duration
	// Synthesized lists columns the demo variant fabricated.
	Synthesized []string
	// Ignored lists uploaded columns that played no part in the run.
	Ignored []string
}

// Total returns the number of results.
func (r *Run) Total() int { return len(r.Results) }

// Bundle returns the loaded bundle for name.
func (d *Dispatcher) Bundle(name string) (*Bundle, error) {
	id, err := catalog.Parse(name)
	if err != nil {
		return nil, err
	}
	if id == catalog.Demo && !d.cfg.Demo {
		return nil, &catalog.UnknownCatalogError{Name: name}
	}
	reg := d.reg.Load()
	b, ok := reg.bundles[id]
	if !ok {
		return nil, &UnavailableError{Catalog: id, Err: reg.failures[id]}
	}
	return b, nil
}

// Run classifies b with the catalog named name. The catalog is resolved
// before any work is done. Results preserve batch order.
func (d *Dispatcher) Run(ctx context.Context, name string, b *batch.Batch, opts ...pipeline.Option) (*Run, error) {
	bundle, err := d.Bundle(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := d.cfg.Clock.Now()
	run := &Run{ID: uuid.New(), Catalog: bundle.Schema.Catalog, Demo: bundle.Schema.IsDemo(), StartedAt: start}

	res, err := pipeline.Transform(b, bundle.Schema, bundle.Set, opts...)
	if err != nil {
		return nil, err
	}
	preds, err := bundle.Engine.Predict(res.Matrix)
	if err != nil {
		return nil, err
	}
	run.Results, err = results.Format(res.Batch, preds, bundle.Schema)
	if err != nil {
		return nil, err
	}
	run.Synthesized = res.Synthesized
	run.Ignored = ignoredColumns(b, bundle.Schema)
	run.Duration = d.cfg.Clock.Since(start)

	entry := monitoring.With(logrus.Fields{
		"run_id":      run.ID.String(),
		"catalog":     run.Catalog,
		"rows":        run.Total(),
		"duration_ms": run.Duration.Milliseconds(),
	})
	if len(run.Synthesized) > 0 {
		entry = entry.WithField("synthesized", run.Synthesized)
	}
	if len(run.Ignored) > 0 {
		entry = entry.WithField("ignored_columns", len(run.Ignored))
	}
	entry.Info("run complete")
	return run, nil
}

// ignoredColumns lists uploaded columns the catalog neither reads as a
// feature nor uses as the identifier.
func ignoredColumns(b *batch.Batch, schema *catalog.Schema) []string {
	used := make(map[string]bool, len(schema.Numeric)+len(schema.Categorical)+1)
	for _, c := range schema.RequiredColumns() {
		used[c] = true
	}
	if !schema.ID.Synthetic {
		used[schema.ID.Column] = true
	}
	var out []string
	for _, c := range b.Columns() {
		if !used[c] {
			out = append(out, c)
		}
	}
	return out
}
