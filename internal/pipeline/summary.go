package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stormguard/internal/model"
	"stormguard/internal/refdata"
)

// CategoryRisk is a category and its hurricane multiplier.
type CategoryRisk struct {
	Category   string
	Multiplier float64
}

// Summary is the human-facing digest of a dataset.
type Summary struct {
	Stores          int
	Formats         []model.StoreFormat // most common first
	TotalSqft       int
	AvgTraffic      float64
	Products        int
	Categories      int
	MinPrice        decimal.Decimal
	MaxPrice        decimal.Decimal
	AvgMarginPct    float64
	TopHurricane    []CategoryRisk
	FirstSale       time.Time
	LastSale        time.Time
	Transactions    int
	TotalRevenue    decimal.Decimal
	AvgDailyRevenue decimal.Decimal

	WindowStart     time.Time
	WindowEnd       time.Time
	WindowRevenue   decimal.Decimal
	BaselineRevenue decimal.Decimal
	// UpliftPct is 0 when the baseline window has no revenue.
	UpliftPct       float64

	OnHand          int
	OnOrder         int
	AvgDaysOfSupply float64
	HighRisk        int
	MediumRisk      int
	LowRisk         int
}

// baselineOffsetDays separates the disaster window from its comparison window.
const baselineOffsetDays = 30

// Summarize computes the dataset digest. The disaster window revenue is
// compared with the same-length window baselineOffsetDays earlier.
func Summarize(ds *model.Dataset, w refdata.DisasterWindow) Summary {
	s := Summary{
		Stores:       len(ds.Stores),
		Products:     len(ds.Products),
		Transactions: len(ds.Sales),
		TotalRevenue: decimal.Zero,
		WindowStart:  w.Start,
		WindowEnd:    w.End,
	}

	formats := map[model.StoreFormat]int{}
	traffic := 0
	for _, st := range ds.Stores {
		formats[st.Format]++
		s.TotalSqft += st.SquareFootage
		traffic += st.DailyTraffic
	}
	for f := range formats {
		s.Formats = append(s.Formats, f)
	}
	sort.Slice(s.Formats, func(i, j int) bool {
		a, b := s.Formats[i], s.Formats[j]
		if formats[a] != formats[b] {
			return formats[a] > formats[b]
		}
		return a < b
	})
	if len(ds.Stores) > 0 {
		s.AvgTraffic = float64(traffic) / float64(len(ds.Stores))
	}

	cats := map[string]float64{}
	margin := 0.0
	for i, p := range ds.Products {
		if i == 0 || p.BasePrice.LessThan(s.MinPrice) {
			s.MinPrice = p.BasePrice
		}
		if i == 0 || p.BasePrice.GreaterThan(s.MaxPrice) {
			s.MaxPrice = p.BasePrice
		}
		margin += p.Margin
		cats[p.Category] = p.HurricaneMultiplier
	}
	s.Categories = len(cats)
	if len(ds.Products) > 0 {
		s.AvgMarginPct = margin / float64(len(ds.Products)) * 100
	}
	for c, m := range cats {
		s.TopHurricane = append(s.TopHurricane, CategoryRisk{c, m})
	}
	sort.Slice(s.TopHurricane, func(i, j int) bool {
		a, b := s.TopHurricane[i], s.TopHurricane[j]
		if a.Multiplier != b.Multiplier {
			return a.Multiplier > b.Multiplier
		}
		return a.Category < b.Category
	})
	if len(s.TopHurricane) > 5 {
		s.TopHurricane = s.TopHurricane[:5]
	}

	baseStart := w.Start.AddDate(0, 0, -baselineOffsetDays)
	baseEnd := w.End.AddDate(0, 0, -baselineOffsetDays)
	s.WindowRevenue, s.BaselineRevenue = decimal.Zero, decimal.Zero
	days := map[int64]struct{}{}
	for i, r := range ds.Sales {
		if i == 0 || r.Date.Before(s.FirstSale) {
			s.FirstSale = r.Date
		}
		if i == 0 || r.Date.After(s.LastSale) {
			s.LastSale = r.Date
		}
		s.TotalRevenue = s.TotalRevenue.Add(r.Revenue)
		days[model.DayNumber(r.Date)] = struct{}{}
		if within(r.Date, w.Start, w.End) {
			s.WindowRevenue = s.WindowRevenue.Add(r.Revenue)
		}
		if within(r.Date, baseStart, baseEnd) {
			s.BaselineRevenue = s.BaselineRevenue.Add(r.Revenue)
		}
	}
	s.AvgDailyRevenue = decimal.Zero
	if len(days) > 0 {
		s.AvgDailyRevenue = s.TotalRevenue.Div(decimal.NewFromInt(int64(len(days))))
	}
	if s.BaselineRevenue.IsPositive() {
		s.UpliftPct = s.WindowRevenue.Div(s.BaselineRevenue).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}

	dos := 0.0
	for _, r := range ds.Inventory {
		s.OnHand += r.OnHandQty
		s.OnOrder += r.OnOrderQty
		dos += r.DaysOfSupply
		switch {
		case r.StockoutRiskScore >= model.RiskBelowSafety:
			s.HighRisk++
		case r.StockoutRiskScore >= model.RiskBelowReorder:
			s.MediumRisk++
		default:
			s.LowRisk++
		}
	}
	if len(ds.Inventory) > 0 {
		s.AvgDaysOfSupply = dos / float64(len(ds.Inventory))
	}
	return s
}

func within(d, from, to time.Time) bool {
	d = model.Day(d)
	return !d.Before(from) && !d.After(to)
}

// Text renders the summary as the summary_stats.txt report.
func (s Summary) Text() string {
	rule := strings.Repeat("-", 60)
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	formats := make([]string, len(s.Formats))
	for i, f := range s.Formats {
		formats[i] = string(f)
	}

	line("StormGuard Data Summary")
	line("%s", strings.Repeat("=", 60))
	line("")
	line("STORES")
	line("%s", rule)
	line("Total stores: %d", s.Stores)
	line("Store formats: %s", strings.Join(formats, ", "))
	line("Total square footage: %s", thousands(int64(s.TotalSqft)))
	line("Avg daily traffic per store: %s", thousands(int64(s.AvgTraffic+0.5)))
	line("")
	line("PRODUCTS")
	line("%s", rule)
	line("Total SKUs: %d", s.Products)
	line("Categories: %d", s.Categories)
	line("Price range: $%s - $%s", s.MinPrice.StringFixed(2), s.MaxPrice.StringFixed(2))
	line("Avg margin: %.1f%%", s.AvgMarginPct)
	line("")
	line("Top hurricane-critical categories:")
	for _, c := range s.TopHurricane {
		line("  %s (%gx)", c.Category, c.Multiplier)
	}
	line("")
	line("SALES HISTORY")
	line("%s", rule)
	line("Date range: %s to %s", model.FormatDate(s.FirstSale), model.FormatDate(s.LastSale))
	line("Total transactions: %s", thousands(int64(s.Transactions)))
	line("Total revenue: $%s", money(s.TotalRevenue))
	line("Avg daily revenue: $%s", money(s.AvgDailyRevenue))
	line("")
	line("Disaster window impact (%s to %s):", model.FormatDate(s.WindowStart), model.FormatDate(s.WindowEnd))
	line("  Revenue during window: $%s", money(s.WindowRevenue))
	line("  Baseline revenue: $%s", money(s.BaselineRevenue))
	line("  Increase: %.1f%%", s.UpliftPct)
	line("")
	line("CURRENT INVENTORY")
	line("%s", rule)
	line("Total items on hand: %s", thousands(int64(s.OnHand)))
	line("Total items on order: %s", thousands(int64(s.OnOrder)))
	line("Avg days of supply: %.1f", s.AvgDaysOfSupply)
	line("")
	line("Stockout Risk:")
	line("  High risk (score >= 80): %d", s.HighRisk)
	line("  Medium risk (50-79): %d", s.MediumRisk)
	line("  Low risk (< 50): %d", s.LowRisk)
	return b.String()
}

func money(d decimal.Decimal) string {
	return thousands(d.Round(0).IntPart())
}

// thousands formats n with comma separators.
func thousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}
