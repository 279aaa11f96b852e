package sales

import (
	"math"
	"time"

	"stormguard/internal/model"
	"stormguard/internal/refdata"
)

// Seasonal is a smooth annual curve peaking on rules.SeasonalPeakDay.
func Seasonal(rules refdata.SalesRules, d time.Time) float64 {
	doy := float64(d.YearDay())
	return 1.0 + rules.SeasonalAmplitude*math.Cos(2*math.Pi*(doy-rules.SeasonalPeakDay)/365.25)
}

// DayOfWeek boosts Saturdays and Sundays.
func DayOfWeek(rules refdata.SalesRules, d time.Time) float64 {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return rules.WeekendMultiplier
	default:
		return 1.0
	}
}

// Holiday looks d up in the holiday calendar, 1.0 when absent.
func Holiday(cat *refdata.Catalog, d time.Time) float64 {
	return cat.Holiday(d)
}

// EventMultiplier is the disaster effect for one store/SKU on day d: the
// coastal factor times the time curve times the category sensitivity,
// clamped to the window's bounds. Outside the window it is 1.0.
func EventMultiplier(w refdata.DisasterWindow, d time.Time, coastal bool, hurricaneMultiplier float64) float64 {
	if !w.Contains(d) {
		return 1.0
	}
	location := 1.0
	if coastal {
		location = w.CoastalFactor
	}
	total := location * w.TimeCurve(model.Day(d)) * hurricaneMultiplier
	return math.Min(w.ClampMax, math.Max(w.ClampMin, total))
}

// DayFactor is the product of the store/SKU-independent multipliers for d.
func DayFactor(cat *refdata.Catalog, d time.Time) float64 {
	return Seasonal(cat.Sales, d) * DayOfWeek(cat.Sales, d) * Holiday(cat, d)
}
