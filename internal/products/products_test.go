package products

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"stormguard/internal/refdata"
)

func TestAllocate_SumsAndFloor(t *testing.T) {
	cats := refdata.Default().SortedCategories()
	for _, n := range []int{75, 76, 90, 200, 1000} {
		counts, err := Allocate(cats, n, 5)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		sum := 0
		for i, c := range counts {
			if c < 5 {
				t.Fatalf("n=%d: category %s got %d < floor", n, cats[i].Name, c)
			}
			sum += c
		}
		if sum != n {
			t.Fatalf("n=%d: counts sum to %d", n, sum)
		}
	}
}

func TestAllocate_FavorsHurricaneCategories(t *testing.T) {
	cats := refdata.Default().SortedCategories()
	counts, err := Allocate(cats, 1000, 5)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	byName := map[string]int{}
	for i, c := range cats {
		byName[c.Name] = counts[i]
	}
	if byName["Water"] <= byName["Frozen Foods"] {
		t.Fatalf("water=%d should exceed frozen=%d", byName["Water"], byName["Frozen Foods"])
	}
}

func TestAllocate_Errors(t *testing.T) {
	cats := refdata.Default().SortedCategories()
	if _, err := Allocate(cats, 0, 5); !errors.Is(err, ErrInvalidCount) {
		t.Fatalf("want ErrInvalidCount, got %v", err)
	}
	if _, err := Allocate(cats, 74, 5); !errors.Is(err, ErrCountBelowFloor) {
		t.Fatalf("want ErrCountBelowFloor, got %v", err)
	}
}

func TestGenerate_DeterministicAndValid(t *testing.T) {
	cat := refdata.Default()
	a, err := NewGenerator(cat, 42, nil).Generate(200)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _ := NewGenerator(refdata.Default(), 42, nil).Generate(200)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different catalogs")
	}
	if len(a) != 200 {
		t.Fatalf("len=%d want 200", len(a))
	}
	seen := map[string]bool{}
	for _, p := range a {
		if seen[p.SKU] {
			t.Fatalf("duplicate sku %s", p.SKU)
		}
		seen[p.SKU] = true
		c, ok := cat.Category(p.Category)
		if !ok {
			t.Fatalf("%s: unknown category %q", p.SKU, p.Category)
		}
		if p.Perishable != (p.ShelfLifeDays < 30) {
			t.Fatalf("%s: perishable=%v shelf=%d", p.SKU, p.Perishable, p.ShelfLifeDays)
		}
		price := p.BasePrice.InexactFloat64()
		if price < c.PriceRange.Min || price > c.PriceRange.Max {
			t.Fatalf("%s: price %v outside %v", p.SKU, price, c.PriceRange)
		}
		if p.SupplierLeadTimeDays < c.LeadTime.Min || p.SupplierLeadTimeDays >= c.LeadTime.Max {
			t.Fatalf("%s: lead %d outside %v", p.SKU, p.SupplierLeadTimeDays, c.LeadTime)
		}
		if !p.Cost.Equal(Cost(p.BasePrice, p.Margin)) {
			t.Fatalf("%s: cost %s", p.SKU, p.Cost)
		}
		if p.Cost.GreaterThan(p.BasePrice) {
			t.Fatalf("%s: cost above price", p.SKU)
		}
	}
	if a[0].SKU != "SKU-0001" || a[0].Category != "Batteries" {
		t.Fatalf("first product should be SKU-0001 in Batteries, got %s %s", a[0].SKU, a[0].Category)
	}
}

func TestGenerate_Bulky(t *testing.T) {
	got, err := NewGenerator(refdata.Default(), 1, nil).Generate(75)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, p := range got {
		switch p.Category {
		case "Generators", "Tarps & Covers":
			if p.MinOrderQty != 1 && p.MinOrderQty != 2 && p.MinOrderQty != 5 {
				t.Fatalf("%s: moq %d", p.SKU, p.MinOrderQty)
			}
		case "Water", "Batteries":
			if p.UnitOfMeasure != "pack" {
				t.Fatalf("%s: uom %s", p.SKU, p.UnitOfMeasure)
			}
		}
	}
}

func TestCost(t *testing.T) {
	got := Cost(decimal.RequireFromString("12.50"), 0.25)
	if !got.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("cost=%s want 10", got)
	}
}
