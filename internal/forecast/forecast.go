// Package forecast projects short-horizon demand from the sales history.
//
// A query with at least ForecastRules.MinHistoryDays distinct sale dates gets
// a blended short/long moving average with a compounded trend. Shorter
// histories get a flat category baseline tagged as low confidence.
package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"stormguard/internal/events"
	"stormguard/internal/metrics"
	"stormguard/internal/model"
	"stormguard/internal/refdata"
)

var (
	ErrUnknownSKU     = errors.New("forecast: unknown sku")
	ErrUnknownStore   = errors.New("forecast: unknown store")
	ErrInvalidHorizon = errors.New("forecast: horizon must be positive")
)

type Method string

const (
	MethodMovingAverage Method = "moving_average"
	MethodBaseline      Method = "baseline"
)

type Confidence string

const (
	ConfidenceNormal Confidence = "normal"
	ConfidenceLow    Confidence = "low"
)

// Series is a per-day projection. Lower and Upper are nil unless bands were
// requested.
type Series struct {
	Dates []time.Time
	Mean  []int
	Lower []int
	Upper []int
}

// Total sums the mean projection.
func (s Series) Total() int {
	n := 0
	for _, q := range s.Mean {
		n += q
	}
	return n
}

func (s Series) Clone() Series {
	return Series{
		Dates: append([]time.Time(nil), s.Dates...),
		Mean:  append([]int(nil), s.Mean...),
		Lower: cloneInts(s.Lower),
		Upper: cloneInts(s.Upper),
	}
}

func cloneInts(v []int) []int {
	if v == nil {
		return nil
	}
	return append([]int(nil), v...)
}

func (s Series) MarshalJSON() ([]byte, error) {
	dates := make([]string, len(s.Dates))
	for i, d := range s.Dates {
		dates[i] = model.FormatDate(d)
	}
	return json.Marshal(struct {
		Dates []string `json:"dates"`
		Mean  []int    `json:"mean"`
		Lower []int    `json:"lower,omitempty"`
		Upper []int    `json:"upper,omitempty"`
	}{dates, s.Mean, s.Lower, s.Upper})
}

// Result is one forecast answer. StoreID is nil for the chain-wide aggregate.
type Result struct {
	SKU                 string     `json:"sku"`
	StoreID             *int       `json:"store_id"`
	ForecastDate        time.Time  `json:"forecast_date"`
	HorizonDays         int        `json:"horizon_days"`
	Forecast            Series     `json:"forecast"`
	BaselineDailyQty    int        `json:"baseline_daily_qty"`
	TotalForecastQty    int        `json:"total_forecast_qty"`
	Category            string     `json:"product_category"`
	HurricaneMultiplier float64    `json:"hurricane_multiplier"`
	Method              Method     `json:"method"`
	Confidence          Confidence `json:"confidence"`
	Note                string     `json:"note,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		ForecastDate string `json:"forecast_date"`
	}{alias(r), model.FormatDate(r.ForecastDate)})
}

type Tool struct {
	cat      *refdata.Catalog
	rules    refdata.ForecastRules
	products map[string]model.Product
	stores   map[int]struct{}
	history  map[string][]model.SaleRecord
	clock    func() time.Time
	events   events.Provider
	log      *zap.Logger
	metrics  *metrics.Registry
}

type Option func(*Tool)

// WithClock sets "today". The default is the latest sale date in history.
func WithClock(now func() time.Time) Option { return func(t *Tool) { t.clock = now } }

// WithEvents enables AdjustForKnownEvents.
func WithEvents(p events.Provider) Option { return func(t *Tool) { t.events = p } }

func WithLogger(l *zap.Logger) Option {
	return func(t *Tool) {
		if l != nil {
			t.log = l
		}
	}
}

func WithMetrics(m *metrics.Registry) Option { return func(t *Tool) { t.metrics = m } }

// New indexes sales by SKU. The tool keeps its own copy of the history.
func New(cat *refdata.Catalog, sales []model.SaleRecord, products []model.Product, stores []model.Store, opts ...Option) *Tool {
	t := &Tool{
		cat:      cat,
		rules:    cat.Forecast,
		products: make(map[string]model.Product, len(products)),
		stores:   make(map[int]struct{}, len(stores)),
		history:  make(map[string][]model.SaleRecord),
		log:      zap.NewNop(),
	}
	for _, p := range products {
		t.products[p.SKU] = p
	}
	for _, s := range stores {
		t.stores[s.StoreID] = struct{}{}
	}
	var latest time.Time
	for _, s := range sales {
		t.history[s.SKU] = append(t.history[s.SKU], s)
		if d := model.Day(s.Date); d.After(latest) {
			latest = d
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.clock == nil {
		if latest.IsZero() {
			latest = model.Day(time.Now().UTC())
		}
		t.clock = func() time.Time { return latest }
	}
	return t
}

type daily struct {
	date time.Time
	qty  int
}

// dailyTotals aggregates the SKU's history by date, optionally for one store.
func (t *Tool) dailyTotals(sku string, storeID *int) []daily {
	byDate := map[int64]int{}
	for _, s := range t.history[sku] {
		if storeID != nil && s.StoreID != *storeID {
			continue
		}
		byDate[model.DayNumber(s.Date)] += s.QuantitySold
	}
	out := make([]daily, 0, len(byDate))
	for day, qty := range byDate {
		out = append(out, daily{date: time.Unix(day*86400, 0).UTC(), qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out
}

// Query forecasts demand for sku over horizon days starting the day after the
// forecast date. storeID nil aggregates every store.
func (t *Tool) Query(sku string, storeID *int, horizon int, includeConfidence bool) (Result, error) {
	if horizon <= 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizon)
	}
	p, ok := t.products[sku]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownSKU, sku)
	}
	if storeID != nil {
		if _, ok := t.stores[*storeID]; !ok {
			return Result{}, fmt.Errorf("%w: %d", ErrUnknownStore, *storeID)
		}
		id := *storeID
		storeID = &id
	}
	today := model.Day(t.clock())
	res := Result{
		SKU:                 sku,
		StoreID:             storeID,
		ForecastDate:        today,
		HorizonDays:         horizon,
		Category:            p.Category,
		HurricaneMultiplier: p.HurricaneMultiplier,
	}

	hist := t.dailyTotals(sku, storeID)
	if len(hist) < t.rules.MinHistoryDays {
		base := t.cat.BaselineForecast(p.Category)
		res.Forecast = flat(today, horizon, base)
		res.BaselineDailyQty = base
		res.Method = MethodBaseline
		res.Confidence = ConfidenceLow
		res.Note = fmt.Sprintf("baseline forecast: %d of %d required history days", len(hist), t.rules.MinHistoryDays)
		t.log.Debug("baseline forecast", zap.String("sku", sku), zap.Int("history_days", len(hist)))
	} else {
		res.Forecast = t.movingAverage(today, hist, horizon, includeConfidence)
		res.BaselineDailyQty = res.Forecast.Mean[0]
		res.Method = MethodMovingAverage
		res.Confidence = ConfidenceNormal
	}
	res.TotalForecastQty = res.Forecast.Total()
	if t.metrics != nil {
		t.metrics.ForecastQueries.WithLabelValues(string(res.Method)).Inc()
	}
	return res, nil
}

// BulkForecast runs Query without confidence bands for each SKU in order.
func (t *Tool) BulkForecast(skus []string, storeID *int, horizon int) ([]Result, error) {
	out := make([]Result, 0, len(skus))
	for _, sku := range skus {
		r, err := t.Query(sku, storeID, horizon, false)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func flat(today time.Time, horizon, qty int) Series {
	s := Series{Dates: make([]time.Time, horizon), Mean: make([]int, horizon)}
	for i := range s.Mean {
		s.Dates[i] = today.AddDate(0, 0, i+1)
		s.Mean[i] = qty
	}
	return s
}

func (t *Tool) movingAverage(today time.Time, hist []daily, horizon int, bands bool) Series {
	r := t.rules
	short, long := meanQty(tail(hist, r.ShortWindow)), meanQty(tail(hist, r.LongWindow))
	// w*short + (1-w)*long, exact when both averages agree
	base := long + r.ShortWeight*(short-long)
	trend := trendOf(hist, r.TrendCap)

	s := Series{Dates: make([]time.Time, horizon), Mean: make([]int, horizon)}
	for i := range s.Mean {
		s.Dates[i] = today.AddDate(0, 0, i+1)
		s.Mean[i] = max(0, int(base*math.Pow(1+trend/r.TrendHorizonDays, float64(i+1))))
	}
	if bands {
		s.Lower = make([]int, horizon)
		s.Upper = make([]int, horizon)
		for i, q := range s.Mean {
			s.Lower[i] = max(0, int(float64(q)*r.BandLow))
			s.Upper[i] = int(float64(q) * r.BandHigh)
		}
	}
	return s
}

func tail(hist []daily, n int) []daily {
	if n >= len(hist) {
		return hist
	}
	return hist[len(hist)-n:]
}

func meanQty(hist []daily) float64 {
	if len(hist) == 0 {
		return 0
	}
	sum := 0
	for _, d := range hist {
		sum += d.qty
	}
	return float64(sum) / float64(len(hist))
}

// trendOf compares the mean of the second half of hist with the first half,
// clamped to ±limit. An empty first half has no trend.
func trendOf(hist []daily, limit float64) float64 {
	half := len(hist) / 2
	if half == 0 {
		return 0
	}
	first := meanQty(hist[:half])
	if first <= 0 {
		return 0
	}
	second := meanQty(hist[len(hist)-half:])
	return math.Max(-limit, math.Min(limit, (second-first)/first))
}
