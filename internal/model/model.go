package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Density is the population-density tier of a store's home city.
type Density string

const (
	DensityHigh   Density = "high"
	DensityMedium Density = "medium"
	DensityLow    Density = "low"
)

// StoreFormat classifies a store by square footage.
type StoreFormat string

const (
	FormatSuperstore StoreFormat = "Superstore"
	FormatStandard   StoreFormat = "Standard"
	FormatExpress    StoreFormat = "Express"
)

// Store is a single retail location. Immutable after generation.
type Store struct {
	StoreID                  int         `json:"store_id" db:"store_id"`
	Name                     string      `json:"store_name" db:"store_name"`
	City                     string      `json:"city" db:"city"`
	Latitude                 float64     `json:"latitude" db:"latitude"`
	Longitude                float64     `json:"longitude" db:"longitude"`
	SquareFootage            int         `json:"square_footage" db:"square_footage"`
	DailyTraffic             int         `json:"daily_traffic" db:"daily_traffic"`
	StaffCount               int         `json:"staff_count" db:"staff_count"`
	ParkingSpaces            int         `json:"parking_spaces" db:"parking_spaces"`
	WarehouseCapacityPallets int         `json:"warehouse_capacity_pallets" db:"warehouse_capacity_pallets"`
	OpenedDate               time.Time   `json:"opened_date" db:"opened_date"`
	Format                   StoreFormat `json:"store_format" db:"store_format"`
	PopulationDensity        Density     `json:"population_density" db:"population_density"`
	Coastal                  bool        `json:"coastal" db:"coastal"`
}

// Product is a SKU in the catalog. Cost is derived as BasePrice/(1+Margin).
type Product struct {
	SKU                  string          `json:"sku" db:"sku"`
	Name                 string          `json:"product_name" db:"product_name"`
	Category             string          `json:"category" db:"category"`
	BasePrice            decimal.Decimal `json:"base_price" db:"base_price"`
	Margin               float64         `json:"margin" db:"margin"`
	ShelfLifeDays        int             `json:"shelf_life_days" db:"shelf_life_days"`
	WeightLbs            float64         `json:"weight_lbs" db:"weight_lbs"`
	HurricaneMultiplier  float64         `json:"hurricane_multiplier" db:"hurricane_multiplier"`
	UnitOfMeasure        string          `json:"unit_of_measure" db:"unit_of_measure"`
	MinOrderQty          int             `json:"min_order_qty" db:"min_order_qty"`
	SupplierLeadTimeDays int             `json:"supplier_lead_time_days" db:"supplier_lead_time_days"`
	Perishable           bool            `json:"perishable" db:"perishable"`
	Cost                 decimal.Decimal `json:"cost" db:"cost"`
	GrossMarginPct       float64         `json:"gross_margin_pct" db:"gross_margin_pct"`
}

// SaleRecord is one day of sales for a store/SKU pair. QuantitySold is always > 0.
type SaleRecord struct {
	Date         time.Time       `json:"date" db:"date"`
	StoreID      int             `json:"store_id" db:"store_id"`
	SKU          string          `json:"sku" db:"sku"`
	QuantitySold int             `json:"quantity_sold" db:"quantity_sold"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
	Revenue      decimal.Decimal `json:"revenue" db:"revenue"`
	Cost         decimal.Decimal `json:"cost" db:"cost"`
}

// Stockout risk bands.
const (
	RiskStockedOut   = 100
	RiskBelowSafety  = 80
	RiskBelowReorder = 50
	RiskHealthy      = 10
)

// InventoryRecord is the current position of one store/SKU pair.
type InventoryRecord struct {
	StoreID              int        `json:"store_id" db:"store_id"`
	SKU                  string     `json:"sku" db:"sku"`
	OnHandQty            int        `json:"on_hand_qty" db:"on_hand_qty"`
	OnOrderQty           int        `json:"on_order_qty" db:"on_order_qty"`
	SafetyStock          int        `json:"safety_stock" db:"safety_stock"`
	ReorderPoint         int        `json:"reorder_point" db:"reorder_point"`
	MaxCapacity          int        `json:"max_capacity" db:"max_capacity"`
	AvgDailySales        float64    `json:"avg_daily_sales" db:"avg_daily_sales"`
	DaysOfSupply         float64    `json:"days_of_supply" db:"days_of_supply"`
	StockoutRiskScore    int        `json:"stockout_risk_score" db:"stockout_risk_score"`
	LastReceivedDate     time.Time  `json:"last_received_date" db:"last_received_date"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date" db:"expected_delivery_date"`
	// VelocityFallback is set when no recent sales existed and the default velocity was used.
	VelocityFallback bool `json:"velocity_fallback" db:"-"`
}

// KnownEvent is read-only reference data supplied by the event lookup collaborator.
type KnownEvent struct {
	Date             time.Time `json:"date"`
	Label            string    `json:"event"`
	Location         string    `json:"location"`
	ImpactCategories []string  `json:"impact_categories"`
	DemandMultiplier float64   `json:"demand_multiplier"`
	LeadTimeDays     int       `json:"lead_time_days"`
}

// Impacts reports whether the event lists category among its impacted categories.
func (e KnownEvent) Impacts(category string) bool {
	for _, c := range e.ImpactCategories {
		if c == category {
			return true
		}
	}
	return false
}

// StormObservation is one day of a historical storm track.
type StormObservation struct {
	Date             time.Time `json:"date"`
	Category         string    `json:"category"`
	MaxWindMph       int       `json:"max_wind_mph"`
	PressureMb       int       `json:"pressure_mb"`
	AffectedCounties []string  `json:"affected_counties"`
	StormSurgeFt     float64   `json:"storm_surge_ft"`
	RainfallInches   float64   `json:"rainfall_inches"`
}

// Intensity ranks the Saffir-Simpson category; tropical storms rank 0.
func (o StormObservation) Intensity() int {
	if len(o.Category) == 1 && o.Category[0] >= '1' && o.Category[0] <= '5' {
		return int(o.Category[0] - '0')
	}
	return 0
}

// Dataset is the full output of one generation run.
type Dataset struct {
	Seed       int64              `json:"seed"`
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	Stores     []Store            `json:"stores"`
	Products   []Product          `json:"products"`
	Sales      []SaleRecord       `json:"sales"`
	Inventory  []InventoryRecord  `json:"inventory"`
	Events     []KnownEvent       `json:"events"`
	StormTrack []StormObservation `json:"storm_track"`
}

// TotalRevenue sums revenue across all sale records.
func (d *Dataset) TotalRevenue() decimal.Decimal {
	total := decimal.Zero
	for _, s := range d.Sales {
		total = total.Add(s.Revenue)
	}
	return total
}
