package forecast

import (
	"fmt"
	"math"
	"slices"
	"time"

	"stormguard/internal/model"
	"stormguard/internal/refdata"
)

// Event types accepted by AdjustForEvent.
const (
	EventHurricane = "hurricane"
	EventSports    = "sports"
	EventHoliday   = "holiday"
)

// EventMultiplier is the full-effect multiplier of an event type for p.
// Unknown types are neutral.
func EventMultiplier(rules refdata.ForecastRules, eventType string, p model.Product) float64 {
	switch eventType {
	case EventHurricane:
		return p.HurricaneMultiplier
	case EventSports:
		if slices.Contains(rules.SportsCategories, p.Category) {
			return rules.SportsMultiplier
		}
		return 1.0
	case EventHoliday:
		return rules.HolidayMultiplier
	default:
		return 1.0
	}
}

// EventFactor scales m by distance to the event: full effect on the day,
// decaying linearly to none at EventDecayDays. Days beyond EventRadiusDays
// are untouched.
func EventFactor(rules refdata.ForecastRules, m float64, daysToEvent int) float64 {
	d := daysToEvent
	if d < 0 {
		d = -d
	}
	if d > rules.EventRadiusDays {
		return 1.0
	}
	return 1.0 + (m-1.0)*(1.0-float64(d)/rules.EventDecayDays)
}

// AdjustForEvent returns a copy of s rescaled around eventDate. A zero
// eventDate leaves the forecast unchanged.
func (t *Tool) AdjustForEvent(s Series, eventType string, eventDate time.Time, sku string) (Series, error) {
	p, ok := t.products[sku]
	if !ok {
		return Series{}, fmt.Errorf("%w: %s", ErrUnknownSKU, sku)
	}
	out := s.Clone()
	if eventDate.IsZero() {
		return out, nil
	}
	m := EventMultiplier(t.rules, eventType, p)
	ev := model.Day(eventDate)
	factors := make([]float64, len(out.Dates))
	for i, d := range out.Dates {
		factors[i] = EventFactor(t.rules, m, model.DaysBetween(d, ev))
	}
	scale(&out, factors)
	return out, nil
}

// AdjustForKnownEvents applies every known event that impacts the SKU's
// category, using the event's own demand multiplier. Factors of overlapping
// events multiply. Without an event provider the forecast is unchanged.
func (t *Tool) AdjustForKnownEvents(s Series, sku string) (Series, error) {
	p, ok := t.products[sku]
	if !ok {
		return Series{}, fmt.Errorf("%w: %s", ErrUnknownSKU, sku)
	}
	out := s.Clone()
	if t.events == nil || len(out.Dates) == 0 {
		return out, nil
	}
	factors := make([]float64, len(out.Dates))
	for i := range factors {
		factors[i] = 1.0
	}
	radius := t.rules.EventRadiusDays
	from := out.Dates[0].AddDate(0, 0, -radius)
	span := model.DaysBetween(from, out.Dates[len(out.Dates)-1]) + radius
	for _, e := range t.events.Upcoming(from, span) {
		if !e.Impacts(p.Category) {
			continue
		}
		for i, d := range out.Dates {
			factors[i] *= EventFactor(t.rules, e.DemandMultiplier, model.DaysBetween(d, e.Date))
		}
	}
	scale(&out, factors)
	return out, nil
}

func scale(s *Series, factors []float64) {
	apply := func(v []int) {
		for i := range v {
			if i < len(factors) {
				v[i] = int(math.Round(float64(v[i]) * factors[i]))
			}
		}
	}
	apply(s.Mean)
	apply(s.Lower)
	apply(s.Upper)
}
