// Package inventory derives the current inventory position of every
// store/SKU pair from the trailing sales velocity.
package inventory

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"stormguard/internal/model"
	"stormguard/internal/refdata"
	"stormguard/internal/rng"
	"stormguard/internal/state"
	"stormguard/internal/velocity"
)

var (
	ErrEmptyCatalog   = errors.New("inventory: stores and products must be non-empty")
	ErrNoSalesHistory = errors.New("inventory: sales history is empty")
)

type Generator struct {
	cat     *refdata.Catalog
	seed    int64
	st      state.Store
	journal velocity.Journal
	asOf    time.Time
	log     *zap.Logger
}

type Option func(*Generator)

// WithStateStore aggregates velocity into st instead of a fresh in-memory
// store. Generate clears st before aggregating.
func WithStateStore(st state.Store) Option { return func(g *Generator) { g.st = st } }

// WithJournal records every applied aggregation delta.
func WithJournal(j velocity.Journal) Option { return func(g *Generator) { g.journal = j } }

// WithAsOf fixes "today". The default is the day after the latest sale.
func WithAsOf(d time.Time) Option { return func(g *Generator) { g.asOf = model.Day(d) } }

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

func NewGenerator(cat *refdata.Catalog, seed int64, opts ...Option) *Generator {
	g := &Generator{cat: cat, seed: seed, log: zap.NewNop()}
	for _, o := range opts {
		o(g)
	}
	if g.st == nil {
		g.st = state.NewInMemoryStore()
	}
	return g
}

// Generate returns one record per (store, product) pair in store-major order.
func (g *Generator) Generate(stores []model.Store, products []model.Product, sales []model.SaleRecord) ([]model.InventoryRecord, error) {
	if len(stores) == 0 || len(products) == 0 {
		return nil, ErrEmptyCatalog
	}
	rules := g.cat.Inventory
	w, ok := velocity.Trailing(sales, rules.WindowDays)
	if !ok {
		return nil, ErrNoSalesHistory
	}
	// leftover LastSeq values from an earlier run would skip every delta
	g.st.LoadAll(nil)
	res, err := velocity.Build(g.st, sales, w)
	if err != nil {
		return nil, fmt.Errorf("aggregate velocity: %w", err)
	}
	if g.journal != nil && len(res.Deltas) > 0 {
		if err := g.journal.Record(res.Deltas...); err != nil {
			return nil, fmt.Errorf("journal velocity deltas: %w", err)
		}
	}
	asOf := g.asOf
	if asOf.IsZero() {
		asOf = w.End.AddDate(0, 0, 1)
	}

	out := make([]model.InventoryRecord, 0, len(stores)*len(products))
	fallbacks := 0
	for _, s := range stores {
		for _, p := range products {
			v, ok := velocity.Average(g.st, s.StoreID, p.SKU, w.Days())
			if !ok {
				v = rules.DefaultVelocity
				fallbacks++
			}
			rec := Position(rules, p, v, asOf, rng.New(g.seed, "inventory", s.StoreID, p.SKU))
			rec.StoreID = s.StoreID
			rec.VelocityFallback = !ok
			out = append(out, rec)
		}
	}
	g.log.Info("inventory generated",
		zap.Int("records", len(out)),
		zap.Int("velocity_fallbacks", fallbacks),
		zap.Int("deltas_applied", res.Applied),
		zap.Int("deltas_skipped", res.Skipped),
		zap.String("window_start", model.FormatDate(w.Start)),
		zap.String("window_end", model.FormatDate(w.End)),
		zap.String("as_of", model.FormatDate(asOf)))
	if fallbacks > 0 {
		g.log.Debug("default velocity used", zap.Int("pairs", fallbacks), zap.Float64("velocity", rules.DefaultVelocity))
	}
	return out, nil
}

// Position derives the inventory policy for one product sold at velocity v.
// Draws from r in a fixed order: on-hand factor, received date, delivery date.
func Position(rules refdata.InventoryRules, p model.Product, v float64, asOf time.Time, r *rand.Rand) model.InventoryRecord {
	lt := float64(p.SupplierLeadTimeDays)
	safety := max(rules.SafetyStockFloor, int(v*lt*rules.SafetyFactor))
	reorder := int(float64(safety) + v*lt)
	onHand := max(0, int(float64(reorder)*rng.Uniform(r, rules.OnHandFactor.Min, rules.OnHandFactor.Max)))

	onOrder := 0
	if onHand < reorder {
		onOrder = OrderQty(rules.TargetMultiple*reorder-onHand, p.MinOrderQty)
	}
	dos := rules.DaysOfSupplySentinel
	if v > 0 {
		dos = math.Round(float64(onHand)/v*10) / 10
	}
	rec := model.InventoryRecord{
		SKU:               p.SKU,
		OnHandQty:         onHand,
		OnOrderQty:        onOrder,
		SafetyStock:       safety,
		ReorderPoint:      reorder,
		MaxCapacity:       rules.CapacityMultiple * reorder,
		AvgDailySales:     math.Round(v*100) / 100,
		DaysOfSupply:      dos,
		StockoutRiskScore: RiskScore(onHand, safety, reorder),
		LastReceivedDate:  asOf.AddDate(0, 0, -rng.IntRange(r, 0, rules.ReceivedLookbackDays)),
	}
	if onOrder > 0 {
		d := asOf.AddDate(0, 0, rng.IntRange(r, 1, p.SupplierLeadTimeDays+1))
		rec.ExpectedDeliveryDate = &d
	}
	return rec
}

// OrderQty rounds need up to a whole number of minimum order quantities.
func OrderQty(need, moq int) int {
	if need <= 0 {
		return 0
	}
	moq = max(1, moq)
	return (need + moq - 1) / moq * moq
}

// RiskScore bands the on-hand position against safety stock and reorder point.
func RiskScore(onHand, safety, reorder int) int {
	switch {
	case onHand <= 0:
		return model.RiskStockedOut
	case onHand < safety:
		return model.RiskBelowSafety
	case onHand < reorder:
		return model.RiskBelowReorder
	default:
		return model.RiskHealthy
	}
}
