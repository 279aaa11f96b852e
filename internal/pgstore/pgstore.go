// Package pgstore loads generated datasets into Postgres and reads sales
// history back for forecasting.
package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stormguard/internal/model"
)

// NewPool parses url, connects and pings.
func NewPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres url not set")
	}
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres url: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS stores (
	store_id                   INTEGER PRIMARY KEY,
	store_name                 TEXT NOT NULL,
	city                       TEXT NOT NULL,
	latitude                   DOUBLE PRECISION NOT NULL,
	longitude                  DOUBLE PRECISION NOT NULL,
	square_footage             INTEGER NOT NULL,
	daily_traffic              INTEGER NOT NULL,
	staff_count                INTEGER NOT NULL,
	parking_spaces             INTEGER NOT NULL,
	warehouse_capacity_pallets INTEGER NOT NULL,
	opened_date                DATE NOT NULL,
	store_format               TEXT NOT NULL,
	population_density         TEXT NOT NULL,
	coastal                    BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	sku                     TEXT PRIMARY KEY,
	product_name            TEXT NOT NULL,
	category                TEXT NOT NULL,
	base_price              NUMERIC(10,2) NOT NULL,
	margin                  DOUBLE PRECISION NOT NULL,
	shelf_life_days         INTEGER NOT NULL,
	weight_lbs              DOUBLE PRECISION NOT NULL,
	hurricane_multiplier    DOUBLE PRECISION NOT NULL,
	unit_of_measure         TEXT NOT NULL,
	min_order_qty           INTEGER NOT NULL,
	supplier_lead_time_days INTEGER NOT NULL,
	perishable              BOOLEAN NOT NULL,
	cost                    NUMERIC(12,4) NOT NULL,
	gross_margin_pct        DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS sales_history (
	date          DATE NOT NULL,
	store_id      INTEGER NOT NULL REFERENCES stores(store_id),
	sku           TEXT NOT NULL REFERENCES products(sku),
	quantity_sold INTEGER NOT NULL CHECK (quantity_sold > 0),
	unit_price    NUMERIC(10,2) NOT NULL,
	revenue       NUMERIC(12,2) NOT NULL,
	cost          NUMERIC(12,2) NOT NULL,
	PRIMARY KEY (store_id, sku, date)
);
CREATE INDEX IF NOT EXISTS sales_history_sku_date ON sales_history (sku, date);
CREATE TABLE IF NOT EXISTS inventory (
	store_id               INTEGER NOT NULL REFERENCES stores(store_id),
	sku                    TEXT NOT NULL REFERENCES products(sku),
	on_hand_qty            INTEGER NOT NULL,
	on_order_qty           INTEGER NOT NULL,
	safety_stock           INTEGER NOT NULL,
	reorder_point          INTEGER NOT NULL,
	max_capacity           INTEGER NOT NULL,
	avg_daily_sales        DOUBLE PRECISION NOT NULL,
	days_of_supply         DOUBLE PRECISION NOT NULL,
	stockout_risk_score    INTEGER NOT NULL,
	last_received_date     DATE NOT NULL,
	expected_delivery_date DATE,
	PRIMARY KEY (store_id, sku)
);
`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func CreateSchema(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// copier is satisfied by pgx.Tx and *pgxpool.Pool.
type copier interface {
	execer
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type Writer struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewWriter(pool *pgxpool.Pool, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{pool: pool, log: logger}
}

// WriteDataset replaces the four tables with ds in a single transaction.
func (w *Writer) WriteDataset(ctx context.Context, ds *model.Dataset) error {
	return pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		counts, err := load(ctx, tx, ds)
		if err != nil {
			return err
		}
		w.log.Info("postgres load complete",
			zap.Int64("stores", counts[0]), zap.Int64("products", counts[1]),
			zap.Int64("sales_history", counts[2]), zap.Int64("inventory", counts[3]))
		return nil
	})
}

type table struct {
	name    string
	columns []string
	rows    [][]any
}

func tables(ds *model.Dataset) []table {
	return []table{
		{"stores", model.StoreColumns, storeRows(ds.Stores)},
		{"products", model.ProductColumns, productRows(ds.Products)},
		{"sales_history", model.SaleColumns, saleRows(ds.Sales)},
		{"inventory", model.InventoryColumns, inventoryRows(ds.Inventory)},
	}
}

func load(ctx context.Context, db copier, ds *model.Dataset) ([]int64, error) {
	if _, err := db.Exec(ctx, "TRUNCATE inventory, sales_history, products, stores"); err != nil {
		return nil, fmt.Errorf("truncate: %w", err)
	}
	var counts []int64
	for _, t := range tables(ds) {
		n, err := db.CopyFrom(ctx, pgx.Identifier{t.name}, t.columns, pgx.CopyFromRows(t.rows))
		if err != nil {
			return nil, fmt.Errorf("copy %s: %w", t.name, err)
		}
		if n != int64(len(t.rows)) {
			return nil, fmt.Errorf("copy %s: wrote %d of %d rows", t.name, n, len(t.rows))
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func storeRows(stores []model.Store) [][]any {
	rows := make([][]any, len(stores))
	for i, s := range stores {
		rows[i] = []any{
			s.StoreID, s.Name, s.City, s.Latitude, s.Longitude, s.SquareFootage,
			s.DailyTraffic, s.StaffCount, s.ParkingSpaces, s.WarehouseCapacityPallets,
			s.OpenedDate, string(s.Format), string(s.PopulationDensity), s.Coastal,
		}
	}
	return rows
}

func productRows(products []model.Product) [][]any {
	rows := make([][]any, len(products))
	for i, p := range products {
		rows[i] = []any{
			p.SKU, p.Name, p.Category, numeric(p.BasePrice), p.Margin, p.ShelfLifeDays,
			p.WeightLbs, p.HurricaneMultiplier, p.UnitOfMeasure, p.MinOrderQty,
			p.SupplierLeadTimeDays, p.Perishable, numeric(p.Cost), p.GrossMarginPct,
		}
	}
	return rows
}

func saleRows(sales []model.SaleRecord) [][]any {
	rows := make([][]any, len(sales))
	for i, s := range sales {
		rows[i] = []any{s.Date, s.StoreID, s.SKU, s.QuantitySold, numeric(s.UnitPrice), numeric(s.Revenue), numeric(s.Cost)}
	}
	return rows
}

func inventoryRows(inv []model.InventoryRecord) [][]any {
	rows := make([][]any, len(inv))
	for i, r := range inv {
		rows[i] = []any{
			r.StoreID, r.SKU, r.OnHandQty, r.OnOrderQty, r.SafetyStock, r.ReorderPoint,
			r.MaxCapacity, r.AvgDailySales, r.DaysOfSupply, r.StockoutRiskScore,
			r.LastReceivedDate, r.ExpectedDeliveryDate,
		}
	}
	return rows
}

// Reader serves the forecast tool's history reads.
type Reader struct {
	DB *sqlx.DB
}

// NewReader opens a database/sql handle over the pool for sqlx.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{DB: sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")}
}

func (r *Reader) Close() error { return r.DB.Close() }

func salesQuery(sku string, storeID *int) (string, []any) {
	query := `SELECT ` + strings.Join(model.SaleColumns, ", ") + ` FROM sales_history WHERE sku = $1`
	args := []any{sku}
	if storeID != nil {
		query += ` AND store_id = $2`
		args = append(args, *storeID)
	}
	return query + ` ORDER BY date, store_id`, args
}

// SalesHistory returns the sales of sku, optionally for one store, in date order.
func (r *Reader) SalesHistory(ctx context.Context, sku string, storeID *int) ([]model.SaleRecord, error) {
	query, args := salesQuery(sku, storeID)
	var out []model.SaleRecord
	if err := r.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("select sales_history: %w", err)
	}
	return out, nil
}

func (r *Reader) Products(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	query := `SELECT ` + strings.Join(model.ProductColumns, ", ") + ` FROM products ORDER BY sku`
	if err := r.DB.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return out, nil
}

func (r *Reader) Stores(ctx context.Context) ([]model.Store, error) {
	var out []model.Store
	query := `SELECT ` + strings.Join(model.StoreColumns, ", ") + ` FROM stores ORDER BY store_id`
	if err := r.DB.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("select stores: %w", err)
	}
	return out, nil
}
