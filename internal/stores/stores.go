// Package stores generates the retail locations of the chain.
package stores

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"stormguard/internal/model"
	"stormguard/internal/refdata"
	"stormguard/internal/rng"
)

var ErrInvalidCount = errors.New("stores: count must be positive")

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

// Generate returns exactly n stores with ids 1..n.
func (g *Generator) Generate(n int) ([]model.Store, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}
	if len(g.cat.Cities) == 0 {
		return nil, errors.New("stores: reference catalog has no cities")
	}
	weights := g.cat.CityWeights()
	out := make([]model.Store, 0, n)
	for id := 1; id <= n; id++ {
		out = append(out, g.store(id, weights))
	}
	g.log.Info("stores generated", zap.Int("count", len(out)), zap.Int64("seed", g.seed))
	return out, nil
}

func (g *Generator) store(id int, weights []float64) model.Store {
	rules := g.cat.Stores
	r := rng.New(g.seed, "store", id)

	city := g.cat.Cities[rng.WeightedIndex(r, weights)]
	lat := city.Latitude + rng.Uniform(r, -rules.CoordinateJitter, rules.CoordinateJitter)
	lon := city.Longitude + rng.Uniform(r, -rules.CoordinateJitter, rules.CoordinateJitter)

	span := g.cat.SquareFootage[city.Density]
	sqft := rng.IntRange(r, span.Min, span.Max)
	traffic := int(float64(sqft) * rng.Uniform(r, rules.TrafficPerSqft.Min, rules.TrafficPerSqft.Max))

	openDays := model.DaysBetween(rules.OpeningStart, rules.OpeningEnd)
	opened := rules.OpeningStart.AddDate(0, 0, rng.IntRange(r, 0, openDays))

	return model.Store{
		StoreID:                  id,
		Name:                     fmt.Sprintf(rules.NameFormat, id),
		City:                     city.Name,
		Latitude:                 round(lat, 6),
		Longitude:                round(lon, 6),
		SquareFootage:            sqft,
		DailyTraffic:             traffic,
		StaffCount:               max(rules.MinStaff, sqft/rules.SqftPerStaff),
		ParkingSpaces:            sqft / rules.SqftPerParking,
		WarehouseCapacityPallets: sqft / rules.SqftPerPallet,
		OpenedDate:               opened,
		Format:                   Format(rules, sqft),
		PopulationDensity:        city.Density,
		Coastal:                  g.cat.IsCoastal(city.Name),
	}
}

// Format assigns the store format tier by square footage.
func Format(rules refdata.StoreRules, sqft int) model.StoreFormat {
	switch {
	case sqft > rules.SuperstoreAbove:
		return model.FormatSuperstore
	case sqft > rules.StandardAbove:
		return model.FormatStandard
	default:
		return model.FormatExpress
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
