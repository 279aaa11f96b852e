// Package refdata holds the read-only reference tables that drive generation:
// cities, category economics, the holiday calendar, the disaster window and
// the tuning rules of each generator. A Catalog is built once and injected;
// nothing in this package is mutable global state.
package refdata

import (
	"math"
	"sort"
	"time"

	"stormguard/internal/model"
)

// Range is a closed-open float interval [Min, Max).
type Range struct {
	Min float64
	Max float64
}

// IntRange is a closed-open integer interval [Min, Max).
type IntRange struct {
	Min int
	Max int
}

// City is a candidate home location for a store.
type City struct {
	Name      string
	Latitude  float64
	Longitude float64
	Density   model.Density
}

// Category carries the economics and demand profile shared by every SKU in it.
type Category struct {
	Name                string
	HurricaneMultiplier float64
	PriceRange          Range
	Margin              float64
	ShelfLifeDays       int
	WeightRange         Range
	Variants            []string
	UnitOfMeasure       string
	MOQChoices          []int
	LeadTime            IntRange
	// BaseVelocity is units per day at the reference traffic level.
	BaseVelocity int
	// BaselineForecast is the flat daily quantity used when history is too short.
	BaselineForecast int
}

// Perishable reports whether SKUs in the category spoil within 30 days.
func (c Category) Perishable() bool { return c.ShelfLifeDays < 30 }

// DisasterWindow is the start/peak/end of a catastrophic event and the shape
// of its demand effect.
type DisasterWindow struct {
	Name          string
	Start         time.Time
	Peak          time.Time
	End           time.Time
	CoastalFactor float64
	RampDays      int
	RampPerDay    float64
	DecayPerDay   float64
	DecayFloor    float64
	ClampMin      float64
	ClampMax      float64
}

// Contains reports whether d falls inside [Start, End].
func (w DisasterWindow) Contains(d time.Time) bool {
	if w.Start.IsZero() || w.End.IsZero() {
		return false
	}
	d = model.Day(d)
	return !d.Before(w.Start) && !d.After(w.End)
}

// TimeCurve is piecewise linear in days-to-peak: it ramps up to the peak and
// decays afterwards, never below DecayFloor.
func (w DisasterWindow) TimeCurve(d time.Time) float64 {
	daysToPeak := model.DaysBetween(d, w.Peak)
	if daysToPeak >= 0 {
		return 1.0 + float64(w.RampDays-daysToPeak)*w.RampPerDay
	}
	return math.Max(w.DecayFloor, 1.0+float64(daysToPeak)*w.DecayPerDay)
}

// StoreRules tune store generation.
type StoreRules struct {
	CoordinateJitter float64
	TrafficPerSqft   Range
	SqftPerStaff     int
	MinStaff         int
	SqftPerParking   int
	SqftPerPallet    int
	OpeningStart     time.Time
	OpeningEnd       time.Time
	SuperstoreAbove  int
	StandardAbove    int
	NameFormat       string
}

// ProductRules tune catalog generation.
type ProductRules struct {
	MinPerCategory int
	SKUFormat      string
}

// SalesRules tune sales history generation.
type SalesRules struct {
	SKUsPerDay        IntRange
	ReferenceTraffic  float64
	VelocityJitter    Range
	Noise             Range
	WeekendMultiplier float64
	SeasonalAmplitude float64
	// SeasonalPeakDay is the day of year at which the seasonal curve peaks.
	SeasonalPeakDay    float64
	FallbackMean       float64
	DefaultCategoryVel int
}

// InventoryRules tune inventory state derivation.
type InventoryRules struct {
	WindowDays           int
	DefaultVelocity      float64
	SafetyStockFloor     int
	SafetyFactor         float64
	OnHandFactor         Range
	TargetMultiple       int
	CapacityMultiple     int
	DaysOfSupplySentinel float64
	ReceivedLookbackDays int
}

// ForecastRules tune the demand forecast tool.
type ForecastRules struct {
	MinHistoryDays    int
	ShortWindow       int
	LongWindow        int
	ShortWeight       float64
	TrendCap          float64
	TrendHorizonDays  float64
	BandLow           float64
	BandHigh          float64
	EventRadiusDays   int
	EventDecayDays    float64
	SportsMultiplier  float64
	SportsCategories  []string
	HolidayMultiplier float64
	DefaultBaseline   int
}

// Catalog is the complete reference configuration for one run.
type Catalog struct {
	ChainName      string
	Cities         []City
	DensityWeights map[model.Density]float64
	SquareFootage  map[model.Density]IntRange
	CoastalCities  []string
	Categories     []Category
	Holidays       map[string]float64
	Disaster       DisasterWindow
	Stores         StoreRules
	Products       ProductRules
	Sales          SalesRules
	Inventory      InventoryRules
	Forecast       ForecastRules
}

// Category returns the named category.
func (c *Catalog) Category(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// CategoryNames returns category names in sorted order.
func (c *Catalog) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		names = append(names, cat.Name)
	}
	sort.Strings(names)
	return names
}

// SortedCategories returns the categories ordered by name.
func (c *Catalog) SortedCategories() []Category {
	out := append([]Category(nil), c.Categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsCoastal reports whether city belongs to the coastal set.
func (c *Catalog) IsCoastal(city string) bool {
	for _, name := range c.CoastalCities {
		if name == city {
			return true
		}
	}
	return false
}

// Holiday returns the holiday multiplier for d, 1.0 when d is not a holiday.
func (c *Catalog) Holiday(d time.Time) float64 {
	if m, ok := c.Holidays[model.FormatDate(model.Day(d))]; ok {
		return m
	}
	return 1.0
}

// CityWeights returns the normalized selection weight of each city.
func (c *Catalog) CityWeights() []float64 {
	weights := make([]float64, len(c.Cities))
	total := 0.0
	for i, city := range c.Cities {
		weights[i] = c.DensityWeights[city.Density]
		total += weights[i]
	}
	if total == 0 {
		return weights
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// CategoryVelocity returns the base daily velocity for a category name.
func (c *Catalog) CategoryVelocity(name string) int {
	if cat, ok := c.Category(name); ok && cat.BaseVelocity > 0 {
		return cat.BaseVelocity
	}
	return c.Sales.DefaultCategoryVel
}

// BaselineForecast returns the flat fallback quantity for a category name.
func (c *Catalog) BaselineForecast(name string) int {
	if cat, ok := c.Category(name); ok && cat.BaselineForecast > 0 {
		return cat.BaselineForecast
	}
	return c.Forecast.DefaultBaseline
}
