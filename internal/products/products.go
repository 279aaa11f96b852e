// Package products generates the SKU catalog across the reference categories.
package products

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stormguard/internal/model"
	"stormguard/internal/refdata"
	"stormguard/internal/rng"
)

var (
	ErrInvalidCount    = errors.New("products: count must be positive")
	ErrCountBelowFloor = errors.New("products: count cannot satisfy the per-category minimum")
)

type Generator struct {
	cat  *refdata.Catalog
	seed int64
	log  *zap.Logger
}

func NewGenerator(cat *refdata.Catalog, seed int64, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cat: cat, seed: seed, log: logger}
}

// Generate returns exactly n products, grouped by category in name order.
func (g *Generator) Generate(n int) ([]model.Product, error) {
	cats := g.cat.SortedCategories()
	counts, err := Allocate(cats, n, g.cat.Products.MinPerCategory)
	if err != nil {
		return nil, err
	}
	out := make([]model.Product, 0, n)
	id := 1
	for i, c := range cats {
		for j := 0; j < counts[i]; j++ {
			out = append(out, g.product(id, c))
			id++
		}
	}
	g.log.Info("products generated",
		zap.Int("count", len(out)),
		zap.Int("categories", len(cats)),
		zap.Int64("seed", g.seed))
	return out, nil
}

// Allocate splits n SKUs across cats in proportion to their hurricane
// multipliers. Every category receives at least floor SKUs and the counts
// always sum to n. cats must already be in the desired iteration order.
func Allocate(cats []refdata.Category, n, floor int) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}
	if len(cats) == 0 {
		return nil, errors.New("products: reference catalog has no categories")
	}
	if n < len(cats)*floor {
		return nil, fmt.Errorf("%w: %d < %d categories x %d", ErrCountBelowFloor, n, len(cats), floor)
	}
	total := 0.0
	for _, c := range cats {
		total += c.HurricaneMultiplier
	}
	counts := make([]int, len(cats))
	remaining := n
	for i, c := range cats {
		ratio := 0.0
		if total > 0 {
			ratio = c.HurricaneMultiplier / total
		}
		count := max(floor, int(float64(n)*ratio))
		// keep enough for the floor of every category still to come
		count = min(count, remaining-floor*(len(cats)-i-1))
		counts[i] = count
		remaining -= count
	}
	for i := 0; remaining > 0; i = (i + 1) % len(cats) {
		counts[i]++
		remaining--
	}
	return counts, nil
}

func (g *Generator) product(id int, c refdata.Category) model.Product {
	sku := fmt.Sprintf(g.cat.Products.SKUFormat, id)
	r := rng.New(g.seed, "product", sku)

	price := decimal.NewFromFloat(rng.Uniform(r, c.PriceRange.Min, c.PriceRange.Max)).Round(2)
	weight := math.Round(rng.Uniform(r, c.WeightRange.Min, c.WeightRange.Max)*100) / 100
	variant := "Standard"
	if len(c.Variants) > 0 {
		variant = rng.Choice(r, c.Variants)
	}
	moq := 1
	if len(c.MOQChoices) > 0 {
		moq = rng.Choice(r, c.MOQChoices)
	}
	lead := rng.IntRange(r, c.LeadTime.Min, c.LeadTime.Max)

	return model.Product{
		SKU:                  sku,
		Name:                 fmt.Sprintf("%s - %s", c.Name, variant),
		Category:             c.Name,
		BasePrice:            price,
		Margin:               c.Margin,
		ShelfLifeDays:        c.ShelfLifeDays,
		WeightLbs:            weight,
		HurricaneMultiplier:  c.HurricaneMultiplier,
		UnitOfMeasure:        c.UnitOfMeasure,
		MinOrderQty:          moq,
		SupplierLeadTimeDays: lead,
		Perishable:           c.Perishable(),
		Cost:                 Cost(price, c.Margin),
		GrossMarginPct:       math.Round(c.Margin*10000) / 100,
	}
}

// Cost derives unit cost as price / (1 + margin), kept to 4 decimal places.
func Cost(price decimal.Decimal, margin float64) decimal.Decimal {
	return price.Div(decimal.NewFromFloat(1 + margin)).Round(4)
}
