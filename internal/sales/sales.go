// Package sales generates the daily transaction history of every store.
package sales

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stormguard/internal/model"
	"stormguard/internal/refdata"
	"stormguard/internal/rng"
)

var (
	ErrEmptyCatalog = errors.New("sales: stores and products must be non-empty")
	ErrInvalidRange = errors.New("sales: end date precedes start date")
)

// Pair identifies a store/SKU combination.
type Pair struct {
	StoreID int
	SKU     string
}

// Velocities maps a pair to its base units per day.
type Velocities map[Pair]int

type Generator struct {
	cat        *refdata.Catalog
	seed       int64
	window     refdata.DisasterWindow
	velocities Velocities
	workers    int
	log        *zap.Logger
}

type Option func(*Generator)

// WithVelocities replaces the derived base velocities. Pairs missing from v
// fall back to a Poisson draw.
func WithVelocities(v Velocities) Option { return func(g *Generator) { g.velocities = v } }

// WithWindow overrides the disaster window from the catalog.
func WithWindow(w refdata.DisasterWindow) Option { return func(g *Generator) { g.window = w } }

// WithWorkers bounds the number of stores generated concurrently.
func WithWorkers(n int) Option { return func(g *Generator) { g.workers = n } }

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

func NewGenerator(cat *refdata.Catalog, seed int64, opts ...Option) *Generator {
	g := &Generator{
		cat:     cat,
		seed:    seed,
		window:  cat.Disaster,
		workers: runtime.GOMAXPROCS(0),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.workers < 1 {
		g.workers = 1
	}
	return g
}

// BaseVelocities derives the persistent per-pair velocity: the category base
// rate scaled by relative store traffic and a bounded per-pair jitter.
func BaseVelocities(cat *refdata.Catalog, seed int64, stores []model.Store, products []model.Product) Velocities {
	rules := cat.Sales
	v := make(Velocities, len(stores)*len(products))
	for _, s := range stores {
		traffic := float64(s.DailyTraffic) / rules.ReferenceTraffic
		for _, p := range products {
			r := rng.New(seed, "velocity", s.StoreID, p.SKU)
			base := float64(cat.CategoryVelocity(p.Category))
			vel := int(base * traffic * rng.Uniform(r, rules.VelocityJitter.Min, rules.VelocityJitter.Max))
			v[Pair{s.StoreID, p.SKU}] = max(1, vel)
		}
	}
	return v
}

// Generate produces the sales history for [start, end]. Output is ordered by
// date, then store, then catalog position, and is identical for any worker
// count.
func (g *Generator) Generate(ctx context.Context, stores []model.Store, products []model.Product, start, end time.Time) ([]model.SaleRecord, error) {
	if len(stores) == 0 || len(products) == 0 {
		return nil, ErrEmptyCatalog
	}
	start, end = model.Day(start), model.Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, model.FormatDate(start), model.FormatDate(end))
	}
	velocities := g.velocities
	if velocities == nil {
		velocities = BaseVelocities(g.cat, g.seed, stores, products)
	}

	days := model.DaysBetween(start, end) + 1
	factors := make([]float64, days)
	for i := range factors {
		factors[i] = DayFactor(g.cat, start.AddDate(0, 0, i))
	}

	// perStore[s][d] holds the rows of store s on day d
	perStore := make([][][]model.SaleRecord, len(stores))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for si := range stores {
		eg.Go(func() error {
			rows, err := g.storeHistory(ctx, stores[si], products, velocities, start, factors)
			if err != nil {
				return err
			}
			perStore[si] = rows
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("generate sales: %w", err)
	}

	total := 0
	for _, rows := range perStore {
		for _, day := range rows {
			total += len(day)
		}
	}
	out := make([]model.SaleRecord, 0, total)
	for d := 0; d < days; d++ {
		for si := range perStore {
			out = append(out, perStore[si][d]...)
		}
	}
	g.log.Info("sales generated",
		zap.Int("records", len(out)),
		zap.Int("stores", len(stores)),
		zap.Int("products", len(products)),
		zap.String("start", model.FormatDate(start)),
		zap.String("end", model.FormatDate(end)),
		zap.Int("workers", g.workers))
	return out, nil
}

func (g *Generator) storeHistory(ctx context.Context, s model.Store, products []model.Product, velocities Velocities, start time.Time, factors []float64) ([][]model.SaleRecord, error) {
	rules := g.cat.Sales
	out := make([][]model.SaleRecord, len(factors))
	fallbacks := 0
	for di, factor := range factors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := start.AddDate(0, 0, di)
		dateKey := model.FormatDate(date)
		inWindow := g.window.Contains(date)

		assortment := rng.New(g.seed, "assortment", s.StoreID, dateKey)
		k := rng.IntRange(assortment, rules.SKUsPerDay.Min, rules.SKUsPerDay.Max)
		picked := rng.Sample(assortment, len(products), k)

		rows := make([]model.SaleRecord, 0, len(picked))
		for _, pi := range picked {
			p := products[pi]
			r := rng.New(g.seed, "sale", s.StoreID, p.SKU, dateKey)
			base, ok := velocities[Pair{s.StoreID, p.SKU}]
			if !ok {
				base = rng.Poisson(r, rules.FallbackMean)
				fallbacks++
			}
			qty := float64(base) * factor
			if inWindow {
				qty *= EventMultiplier(g.window, date, s.Coastal, p.HurricaneMultiplier)
			}
			n := int(qty * rng.Uniform(r, rules.Noise.Min, rules.Noise.Max))
			if n <= 0 {
				continue
			}
			rows = append(rows, Record(date, s.StoreID, p, n))
		}
		out[di] = rows
	}
	if fallbacks > 0 {
		g.log.Debug("velocity fallback used",
			zap.Int("store_id", s.StoreID),
			zap.Int("draws", fallbacks))
	}
	return out, nil
}

// Record builds a sale row: revenue = qty x price and cost = qty x price /
// (1 + margin), both rounded to cents.
func Record(date time.Time, storeID int, p model.Product, qty int) model.SaleRecord {
	q := decimal.NewFromInt(int64(qty))
	gross := p.BasePrice.Mul(q)
	return model.SaleRecord{
		Date:         date,
		StoreID:      storeID,
		SKU:          p.SKU,
		QuantitySold: qty,
		UnitPrice:    p.BasePrice,
		Revenue:      gross.Round(2),
		Cost:         gross.Div(decimal.NewFromFloat(1 + p.Margin)).Round(2),
	}
}
