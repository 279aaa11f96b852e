// Package pipeline runs the generators in dependency order:
// stores, products, sales, then inventory.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stormguard/internal/events"
	"stormguard/internal/inventory"
	"stormguard/internal/metrics"
	"stormguard/internal/model"
	"stormguard/internal/products"
	"stormguard/internal/refdata"
	"stormguard/internal/sales"
	"stormguard/internal/state"
	"stormguard/internal/stores"
	"stormguard/internal/velocity"
)

// Config is the scalar input of one run.
type Config struct {
	Stores   int
	Products int
	Start    time.Time
	End      time.Time
	Seed     int64
	Workers  int
	AsOf     time.Time
}

type Pipeline struct {
	cat     *refdata.Catalog
	events  events.Provider
	st      state.Store
	journal velocity.Journal
	log     *zap.Logger
	metrics *metrics.Registry
}

type Option func(*Pipeline)

func WithEvents(p events.Provider) Option { return func(pl *Pipeline) { pl.events = p } }

// WithStateStore routes velocity aggregation into st.
func WithStateStore(st state.Store) Option { return func(pl *Pipeline) { pl.st = st } }

// WithJournal records applied velocity deltas, e.g. to a changelog.
func WithJournal(j velocity.Journal) Option { return func(pl *Pipeline) { pl.journal = j } }

func WithLogger(l *zap.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.log = l
		}
	}
}

func WithMetrics(m *metrics.Registry) Option { return func(pl *Pipeline) { pl.metrics = m } }

func New(cat *refdata.Catalog, opts ...Option) *Pipeline {
	pl := &Pipeline{cat: cat, events: events.Default(), log: zap.NewNop()}
	for _, o := range opts {
		o(pl)
	}
	return pl
}

// Window is the disaster window used for sales: the provider's storm track
// when present, otherwise the catalog window.
func (pl *Pipeline) Window() refdata.DisasterWindow {
	return events.WindowFromTrack(pl.events.StormTrack(), pl.cat.Disaster)
}

// Run generates a complete dataset or returns an error; it never returns a
// partial dataset.
func (pl *Pipeline) Run(ctx context.Context, cfg Config) (*model.Dataset, error) {
	ds := &model.Dataset{
		Seed:       cfg.Seed,
		Start:      model.Day(cfg.Start),
		End:        model.Day(cfg.End),
		Events:     pl.events.KnownEvents(),
		StormTrack: pl.events.StormTrack(),
	}
	window := pl.Window()

	err := pl.stage(ctx, "stores", func() (err error) {
		ds.Stores, err = stores.NewGenerator(pl.cat, cfg.Seed, pl.log).Generate(cfg.Stores)
		pl.rows("stores", len(ds.Stores))
		return err
	})
	if err != nil {
		return nil, err
	}
	err = pl.stage(ctx, "products", func() (err error) {
		ds.Products, err = products.NewGenerator(pl.cat, cfg.Seed, pl.log).Generate(cfg.Products)
		pl.rows("products", len(ds.Products))
		return err
	})
	if err != nil {
		return nil, err
	}
	err = pl.stage(ctx, "sales", func() (err error) {
		opts := []sales.Option{sales.WithWindow(window), sales.WithLogger(pl.log)}
		if cfg.Workers > 0 {
			opts = append(opts, sales.WithWorkers(cfg.Workers))
		}
		ds.Sales, err = sales.NewGenerator(pl.cat, cfg.Seed, opts...).Generate(ctx, ds.Stores, ds.Products, ds.Start, ds.End)
		pl.rows("sales_history", len(ds.Sales))
		return err
	})
	if err != nil {
		return nil, err
	}
	err = pl.stage(ctx, "inventory", func() (err error) {
		opts := []inventory.Option{inventory.WithLogger(pl.log)}
		if pl.st != nil {
			opts = append(opts, inventory.WithStateStore(pl.st))
		}
		if pl.journal != nil {
			opts = append(opts, inventory.WithJournal(pl.journal))
		}
		if !cfg.AsOf.IsZero() {
			opts = append(opts, inventory.WithAsOf(cfg.AsOf))
		}
		ds.Inventory, err = inventory.NewGenerator(pl.cat, cfg.Seed, opts...).Generate(ds.Stores, ds.Products, ds.Sales)
		pl.rows("inventory", len(ds.Inventory))
		if pl.metrics != nil {
			for _, r := range ds.Inventory {
				if r.VelocityFallback {
					pl.metrics.VelocityFallbacks.Inc()
				}
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	pl.log.Info("dataset generated",
		zap.Int64("seed", ds.Seed),
		zap.Int("stores", len(ds.Stores)),
		zap.Int("products", len(ds.Products)),
		zap.Int("sales", len(ds.Sales)),
		zap.Int("inventory", len(ds.Inventory)),
		zap.String("total_revenue", ds.TotalRevenue().StringFixed(2)))
	return ds, nil
}

func (pl *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	begin := time.Now()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	elapsed := time.Since(begin)
	if pl.metrics != nil {
		pl.metrics.StageSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
	}
	pl.log.Debug("stage complete", zap.String("stage", name), zap.Duration("elapsed", elapsed))
	return nil
}

func (pl *Pipeline) rows(table string, n int) {
	if pl.metrics != nil && n > 0 {
		pl.metrics.RowsGenerated.WithLabelValues(table).Add(float64(n))
	}
}
