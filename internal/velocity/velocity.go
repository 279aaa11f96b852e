// Package velocity aggregates sales per store/SKU pair into a state.Store and
// derives average daily velocity from the aggregate.
package velocity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stormguard/internal/model"
	"stormguard/internal/state"
)

// Delta is one aggregation step for a pair. Seq is the sale's day number, so
// re-applying the same day is skipped by the store.
type Delta struct {
	Key          string
	Seq          int64
	RevenueCents int64
	Units        int64
	Date         time.Time
}

// Journal receives applied deltas in application order.
type Journal interface {
	Record(deltas ...Delta) error
}

// PairKey returns the composite key storeId#sku.
func PairKey(storeID int, sku string) string {
	return fmt.Sprintf("%d#%s", storeID, sku)
}

// ParsePairKey splits a key produced by PairKey.
func ParsePairKey(key string) (int, string, error) {
	id, sku, ok := strings.Cut(key, "#")
	if !ok || sku == "" {
		return 0, "", fmt.Errorf("invalid pair key %q", key)
	}
	storeID, err := strconv.Atoi(id)
	if err != nil {
		return 0, "", fmt.Errorf("invalid pair key %q: %w", key, err)
	}
	return storeID, sku, nil
}

// Cents converts a money amount to integer cents.
func Cents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// DeltaFor builds the aggregation step for one sale.
func DeltaFor(s model.SaleRecord) Delta {
	return Delta{
		Key:          PairKey(s.StoreID, s.SKU),
		Seq:          model.DayNumber(s.Date),
		RevenueCents: Cents(s.Revenue),
		Units:        int64(s.QuantitySold),
		Date:         model.Day(s.Date),
	}
}

// Apply applies d to st.
func Apply(st state.Store, d Delta) (bool, error) {
	applied, _, err := st.Apply(d.Key, d.RevenueCents, d.Units, d.Seq)
	if err != nil {
		return false, fmt.Errorf("apply %s seq=%d: %w", d.Key, d.Seq, err)
	}
	return applied, nil
}

// Accumulate applies one sale to st and returns the delta used.
func Accumulate(st state.Store, s model.SaleRecord) (bool, Delta, error) {
	d := DeltaFor(s)
	applied, err := Apply(st, d)
	return applied, d, err
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(d time.Time) bool {
	d = model.Day(d)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the number of calendar days covered.
func (w Window) Days() int { return model.DaysBetween(w.Start, w.End) + 1 }

// Trailing returns the window of the given length ending at the latest sale
// date. It reports false when sales is empty.
func Trailing(sales []model.SaleRecord, days int) (Window, bool) {
	if len(sales) == 0 || days <= 0 {
		return Window{}, false
	}
	latest := model.Day(sales[0].Date)
	for _, s := range sales[1:] {
		if d := model.Day(s.Date); d.After(latest) {
			latest = d
		}
	}
	return Window{Start: latest.AddDate(0, 0, -(days - 1)), End: latest}, true
}

// Result summarises a Build call.
type Result struct {
	Applied int
	Skipped int
	Deltas  []Delta
}

// Build aggregates every sale inside w into st. Sales are applied in
// (date, store, sku) order regardless of input order, so seq idempotency
// holds for unsorted input.
func Build(st state.Store, sales []model.SaleRecord, w Window) (Result, error) {
	var in []model.SaleRecord
	for _, s := range sales {
		if w.Contains(s.Date) {
			in = append(in, s)
		}
	}
	sort.SliceStable(in, func(i, j int) bool {
		a, b := in[i], in[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return a.SKU < b.SKU
	})
	var res Result
	for _, s := range in {
		applied, d, err := Accumulate(st, s)
		if err != nil {
			return res, err
		}
		if !applied {
			res.Skipped++
			continue
		}
		res.Applied++
		res.Deltas = append(res.Deltas, d)
	}
	return res, nil
}

// Average returns units per day for the pair over a window of days. It
// reports false when the pair has no aggregate.
func Average(st state.Store, storeID int, sku string, days int) (float64, bool) {
	ps, ok := st.Get(PairKey(storeID, sku))
	if !ok || days <= 0 {
		return 0, false
	}
	return float64(ps.Units) / float64(days), true
}
