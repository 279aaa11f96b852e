package pgstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"stormguard/internal/model"
)

type fakeCopier struct {
	execs   []string
	copied  map[string][][]any
	columns map[string][]string
	short   string // table that reports one row fewer
	fail    error
}

func (f *fakeCopier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, f.fail
}

func (f *fakeCopier) CopyFrom(ctx context.Context, name pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	if f.copied == nil {
		f.copied = map[string][][]any{}
		f.columns = map[string][]string{}
	}
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		f.copied[name[0]] = append(f.copied[name[0]], vals)
		n++
	}
	f.columns[name[0]] = cols
	if name[0] == f.short {
		n--
	}
	return n, nil
}

func dataset() *model.Dataset {
	delivery := model.MustDate("2025-01-03")
	return &model.Dataset{
		Stores:   []model.Store{{StoreID: 1, Name: "A", Format: model.FormatExpress, PopulationDensity: model.DensityLow}},
		Products: []model.Product{{SKU: "SKU-0001", BasePrice: decimal.RequireFromString("3.49"), Cost: decimal.RequireFromString("2.79")}},
		Sales: []model.SaleRecord{
			{Date: model.MustDate("2024-12-30"), StoreID: 1, SKU: "SKU-0001", QuantitySold: 3,
				UnitPrice: decimal.RequireFromString("3.49"), Revenue: decimal.RequireFromString("10.47"), Cost: decimal.RequireFromString("8.37")},
		},
		Inventory: []model.InventoryRecord{
			{StoreID: 1, SKU: "SKU-0001", ExpectedDeliveryDate: &delivery},
			{StoreID: 2, SKU: "SKU-0001"},
		},
	}
}

func TestLoad_CopiesEveryTable(t *testing.T) {
	fc := &fakeCopier{}
	counts, err := load(context.Background(), fc, dataset())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(counts) != 4 || counts[2] != 1 || counts[3] != 2 {
		t.Fatalf("counts %v", counts)
	}
	if len(fc.execs) != 1 || !strings.HasPrefix(fc.execs[0], "TRUNCATE") {
		t.Fatalf("execs %v", fc.execs)
	}
	for name, cols := range map[string][]string{
		"stores": model.StoreColumns, "products": model.ProductColumns,
		"sales_history": model.SaleColumns, "inventory": model.InventoryColumns,
	} {
		if len(fc.columns[name]) != len(cols) {
			t.Fatalf("%s columns %v", name, fc.columns[name])
		}
		for _, row := range fc.copied[name] {
			if len(row) != len(cols) {
				t.Fatalf("%s row has %d values for %d columns", name, len(row), len(cols))
			}
		}
	}

	sale := fc.copied["sales_history"][0]
	rev, ok := sale[5].(pgtype.Numeric)
	if !ok || rev.Int.Int64() != 1047 || rev.Exp != -2 {
		t.Fatalf("revenue numeric %#v", sale[5])
	}
	if fc.copied["stores"][0][11] != "Express" {
		t.Fatalf("store format %v", fc.copied["stores"][0][11])
	}
	if d := fc.copied["inventory"][1][11].(*time.Time); d != nil {
		t.Fatalf("missing delivery should be NULL, got %v", d)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := load(context.Background(), &fakeCopier{fail: errors.New("no db")}, dataset()); err == nil {
		t.Fatalf("expected truncate error")
	}
	if _, err := load(context.Background(), &fakeCopier{short: "products"}, dataset()); err == nil || !strings.Contains(err.Error(), "products") {
		t.Fatalf("expected short copy error, got %v", err)
	}
}

func TestSalesQuery(t *testing.T) {
	q, args := salesQuery("SKU-0001", nil)
	if strings.Contains(q, "store_id = $2") || len(args) != 1 {
		t.Fatalf("aggregate query %q %v", q, args)
	}
	id := 7
	q, args = salesQuery("SKU-0001", &id)
	if !strings.Contains(q, "store_id = $2") || len(args) != 2 || args[1] != 7 {
		t.Fatalf("store query %q %v", q, args)
	}
	if !strings.HasSuffix(q, "ORDER BY date, store_id") {
		t.Fatalf("query order %q", q)
	}
}

func TestNewPool_RequiresURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "", 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCreateSchema_ProductCostKeepsFourPlaces(t *testing.T) {
	f := &fakeCopier{}
	if err := CreateSchema(context.Background(), f); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	ddl := f.execs[0]
	products := ddl[strings.Index(ddl, "CREATE TABLE IF NOT EXISTS products"):]
	products = products[:strings.Index(products, ");")]
	var costLine string
	for _, line := range strings.Split(products, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "cost ") {
			costLine = line
		}
	}
	if !strings.Contains(costLine, "NUMERIC(12,4)") {
		t.Fatalf("products.cost column %q", strings.TrimSpace(costLine))
	}

	ds := dataset()
	ds.Products[0].Cost = decimal.RequireFromString("2.7925")
	if _, err := load(context.Background(), f, ds); err != nil {
		t.Fatalf("load: %v", err)
	}
	row := f.copied["products"][0]
	var cost pgtype.Numeric
	for i, c := range f.columns["products"] {
		if c == "cost" {
			cost = row[i].(pgtype.Numeric)
		}
	}
	if cost.Exp != -4 || cost.Int.Int64() != 27925 {
		t.Fatalf("cost numeric %v e%d", cost.Int, cost.Exp)
	}
}
