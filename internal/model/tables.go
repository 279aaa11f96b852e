package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column sets of the exported tables.
var (
	StoreColumns = []string{
		"store_id", "store_name", "city", "latitude", "longitude", "square_footage",
		"daily_traffic", "staff_count", "parking_spaces", "warehouse_capacity_pallets",
		"opened_date", "store_format", "population_density", "coastal",
	}
	ProductColumns = []string{
		"sku", "product_name", "category", "base_price", "margin", "shelf_life_days",
		"weight_lbs", "hurricane_multiplier", "unit_of_measure", "min_order_qty",
		"supplier_lead_time_days", "perishable", "cost", "gross_margin_pct",
	}
	SaleColumns = []string{
		"date", "store_id", "sku", "quantity_sold", "unit_price", "revenue", "cost",
	}
	InventoryColumns = []string{
		"store_id", "sku", "on_hand_qty", "on_order_qty", "safety_stock", "reorder_point",
		"max_capacity", "avg_daily_sales", "days_of_supply", "stockout_risk_score",
		"last_received_date", "expected_delivery_date",
	}
	EventColumns = []string{
		"date", "event", "location", "impact_categories", "demand_multiplier", "lead_time_days",
	}
	StormColumns = []string{
		"date", "category", "max_wind_mph", "pressure_mb", "affected_counties",
		"storm_surge_ft", "rainfall_inches",
	}
)

// listSep joins list-valued cells.
const listSep = ";"

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Record renders the store as a row matching StoreColumns.
func (s Store) Record() []string {
	return []string{
		strconv.Itoa(s.StoreID),
		s.Name,
		s.City,
		formatFloat(s.Latitude),
		formatFloat(s.Longitude),
		strconv.Itoa(s.SquareFootage),
		strconv.Itoa(s.DailyTraffic),
		strconv.Itoa(s.StaffCount),
		strconv.Itoa(s.ParkingSpaces),
		strconv.Itoa(s.WarehouseCapacityPallets),
		FormatDate(s.OpenedDate),
		string(s.Format),
		string(s.PopulationDensity),
		strconv.FormatBool(s.Coastal),
	}
}

// Record renders the product as a row matching ProductColumns.
func (p Product) Record() []string {
	return []string{
		p.SKU,
		p.Name,
		p.Category,
		p.BasePrice.StringFixed(2),
		formatFloat(p.Margin),
		strconv.Itoa(p.ShelfLifeDays),
		formatFloat(p.WeightLbs),
		formatFloat(p.HurricaneMultiplier),
		p.UnitOfMeasure,
		strconv.Itoa(p.MinOrderQty),
		strconv.Itoa(p.SupplierLeadTimeDays),
		strconv.FormatBool(p.Perishable),
		p.Cost.StringFixed(4),
		formatFloat(p.GrossMarginPct),
	}
}

// Record renders the sale as a row matching SaleColumns.
func (s SaleRecord) Record() []string {
	return []string{
		FormatDate(s.Date),
		strconv.Itoa(s.StoreID),
		s.SKU,
		strconv.Itoa(s.QuantitySold),
		s.UnitPrice.StringFixed(2),
		s.Revenue.StringFixed(2),
		s.Cost.StringFixed(2),
	}
}

// Record renders the inventory position as a row matching InventoryColumns.
func (r InventoryRecord) Record() []string {
	delivery := ""
	if r.ExpectedDeliveryDate != nil {
		delivery = FormatDate(*r.ExpectedDeliveryDate)
	}
	return []string{
		strconv.Itoa(r.StoreID),
		r.SKU,
		strconv.Itoa(r.OnHandQty),
		strconv.Itoa(r.OnOrderQty),
		strconv.Itoa(r.SafetyStock),
		strconv.Itoa(r.ReorderPoint),
		strconv.Itoa(r.MaxCapacity),
		formatFloat(r.AvgDailySales),
		formatFloat(r.DaysOfSupply),
		strconv.Itoa(r.StockoutRiskScore),
		FormatDate(r.LastReceivedDate),
		delivery,
	}
}

// Record renders the event as a row matching EventColumns.
func (e KnownEvent) Record() []string {
	return []string{
		FormatDate(e.Date),
		e.Label,
		e.Location,
		strings.Join(e.ImpactCategories, listSep),
		formatFloat(e.DemandMultiplier),
		strconv.Itoa(e.LeadTimeDays),
	}
}

// Record renders the observation as a row matching StormColumns.
func (o StormObservation) Record() []string {
	return []string{
		FormatDate(o.Date),
		o.Category,
		strconv.Itoa(o.MaxWindMph),
		strconv.Itoa(o.PressureMb),
		strings.Join(o.AffectedCounties, listSep),
		formatFloat(o.StormSurgeFt),
		formatFloat(o.RainfallInches),
	}
}

// row reads typed cells from a CSV record, keeping the first parse error.
type row struct {
	rec     []string
	columns []string
	err     error
}

func newRow(rec []string, columns []string) (*row, error) {
	if len(rec) != len(columns) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(columns), len(rec))
	}
	return &row{rec: rec, columns: columns}, nil
}

func (r *row) fail(i int, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: %w", r.columns[i], err)
	}
}

func (r *row) str(i int) string { return r.rec[i] }

func (r *row) int(i int) int {
	v, err := strconv.Atoi(r.rec[i])
	if err != nil {
		r.fail(i, err)
	}
	return v
}

func (r *row) float(i int) float64 {
	v, err := strconv.ParseFloat(r.rec[i], 64)
	if err != nil {
		r.fail(i, err)
	}
	return v
}

func (r *row) bool(i int) bool {
	v, err := strconv.ParseBool(r.rec[i])
	if err != nil {
		r.fail(i, err)
	}
	return v
}

func (r *row) decimal(i int) decimal.Decimal {
	v, err := decimal.NewFromString(r.rec[i])
	if err != nil {
		r.fail(i, err)
	}
	return v
}

func (r *row) date(i int) time.Time {
	v, err := ParseDate(r.rec[i])
	if err != nil {
		r.fail(i, err)
	}
	return v
}

func (r *row) optionalDate(i int) *time.Time {
	if r.rec[i] == "" {
		return nil
	}
	v := r.date(i)
	return &v
}

func (r *row) list(i int) []string {
	if r.rec[i] == "" {
		return nil
	}
	return strings.Split(r.rec[i], listSep)
}

// ParseStore decodes a row written by Store.Record.
func ParseStore(rec []string) (Store, error) {
	r, err := newRow(rec, StoreColumns)
	if err != nil {
		return Store{}, err
	}
	s := Store{
		StoreID:                  r.int(0),
		Name:                     r.str(1),
		City:                     r.str(2),
		Latitude:                 r.float(3),
		Longitude:                r.float(4),
		SquareFootage:            r.int(5),
		DailyTraffic:             r.int(6),
		StaffCount:               r.int(7),
		ParkingSpaces:            r.int(8),
		WarehouseCapacityPallets: r.int(9),
		OpenedDate:               r.date(10),
		Format:                   StoreFormat(r.str(11)),
		PopulationDensity:        Density(r.str(12)),
		Coastal:                  r.bool(13),
	}
	return s, r.err
}

// ParseProduct decodes a row written by Product.Record.
func ParseProduct(rec []string) (Product, error) {
	r, err := newRow(rec, ProductColumns)
	if err != nil {
		return Product{}, err
	}
	p := Product{
		SKU:                  r.str(0),
		Name:                 r.str(1),
		Category:             r.str(2),
		BasePrice:            r.decimal(3),
		Margin:               r.float(4),
		ShelfLifeDays:        r.int(5),
		WeightLbs:            r.float(6),
		HurricaneMultiplier:  r.float(7),
		UnitOfMeasure:        r.str(8),
		MinOrderQty:          r.int(9),
		SupplierLeadTimeDays: r.int(10),
		Perishable:           r.bool(11),
		Cost:                 r.decimal(12),
		GrossMarginPct:       r.float(13),
	}
	return p, r.err
}

// ParseSale decodes a row written by SaleRecord.Record.
func ParseSale(rec []string) (SaleRecord, error) {
	r, err := newRow(rec, SaleColumns)
	if err != nil {
		return SaleRecord{}, err
	}
	s := SaleRecord{
		Date:         r.date(0),
		StoreID:      r.int(1),
		SKU:          r.str(2),
		QuantitySold: r.int(3),
		UnitPrice:    r.decimal(4),
		Revenue:      r.decimal(5),
		Cost:         r.decimal(6),
	}
	return s, r.err
}

// ParseInventory decodes a row written by InventoryRecord.Record.
func ParseInventory(rec []string) (InventoryRecord, error) {
	r, err := newRow(rec, InventoryColumns)
	if err != nil {
		return InventoryRecord{}, err
	}
	inv := InventoryRecord{
		StoreID:              r.int(0),
		SKU:                  r.str(1),
		OnHandQty:            r.int(2),
		OnOrderQty:           r.int(3),
		SafetyStock:          r.int(4),
		ReorderPoint:         r.int(5),
		MaxCapacity:          r.int(6),
		AvgDailySales:        r.float(7),
		DaysOfSupply:         r.float(8),
		StockoutRiskScore:    r.int(9),
		LastReceivedDate:     r.date(10),
		ExpectedDeliveryDate: r.optionalDate(11),
	}
	return inv, r.err
}

// ParseEvent decodes a row written by KnownEvent.Record.
func ParseEvent(rec []string) (KnownEvent, error) {
	r, err := newRow(rec, EventColumns)
	if err != nil {
		return KnownEvent{}, err
	}
	e := KnownEvent{
		Date:             r.date(0),
		Label:            r.str(1),
		Location:         r.str(2),
		ImpactCategories: r.list(3),
		DemandMultiplier: r.float(4),
		LeadTimeDays:     r.int(5),
	}
	return e, r.err
}

// ParseStorm decodes a row written by StormObservation.Record.
func ParseStorm(rec []string) (StormObservation, error) {
	r, err := newRow(rec, StormColumns)
	if err != nil {
		return StormObservation{}, err
	}
	o := StormObservation{
		Date:             r.date(0),
		Category:         r.str(1),
		MaxWindMph:       r.int(2),
		PressureMb:       r.int(3),
		AffectedCounties: r.list(4),
		StormSurgeFt:     r.float(5),
		RainfallInches:   r.float(6),
	}
	return o, r.err
}
