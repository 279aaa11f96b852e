// Package events supplies known dated events and historical storm tracks to
// the generators and the forecast tool. The data is a static lookup; a live
// feed can replace StaticProvider behind the Provider interface.
package events

import (
	"sort"
	"strings"
	"time"

	"stormguard/internal/model"
	"stormguard/internal/refdata"
)

// Provider is the read-only event lookup consumed by the core.
type Provider interface {
	KnownEvents() []model.KnownEvent
	EventOn(date time.Time) (model.KnownEvent, bool)
	Upcoming(from time.Time, daysAhead int) []model.KnownEvent
	StormTrack() []model.StormObservation
}

// StaticProvider serves events and a storm track held in memory.
type StaticProvider struct {
	events []model.KnownEvent
	track  []model.StormObservation
}

// NewStaticProvider copies and date-sorts the given data.
func NewStaticProvider(evs []model.KnownEvent, track []model.StormObservation) *StaticProvider {
	p := &StaticProvider{
		events: make([]model.KnownEvent, len(evs)),
		track:  make([]model.StormObservation, len(track)),
	}
	for i, e := range evs {
		e.Date = model.Day(e.Date)
		e.ImpactCategories = append([]string(nil), e.ImpactCategories...)
		p.events[i] = e
	}
	for i, o := range track {
		o.Date = model.Day(o.Date)
		o.AffectedCounties = append([]string(nil), o.AffectedCounties...)
		p.track[i] = o
	}
	sort.SliceStable(p.events, func(i, j int) bool { return p.events[i].Date.Before(p.events[j].Date) })
	sort.SliceStable(p.track, func(i, j int) bool { return p.track[i].Date.Before(p.track[j].Date) })
	return p
}

func (p *StaticProvider) KnownEvents() []model.KnownEvent {
	out := make([]model.KnownEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *StaticProvider) EventOn(date time.Time) (model.KnownEvent, bool) {
	d := model.Day(date)
	for _, e := range p.events {
		if e.Date.Equal(d) {
			return e, true
		}
	}
	return model.KnownEvent{}, false
}

// Upcoming returns events dated within [from, from+daysAhead], in date order.
func (p *StaticProvider) Upcoming(from time.Time, daysAhead int) []model.KnownEvent {
	start := model.Day(from)
	cutoff := start.AddDate(0, 0, daysAhead)
	var out []model.KnownEvent
	for _, e := range p.events {
		if !e.Date.Before(start) && !e.Date.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func (p *StaticProvider) StormTrack() []model.StormObservation {
	out := make([]model.StormObservation, len(p.track))
	copy(out, p.track)
	return out
}

// Severity of a classified event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Impact is the demand classification of a free-text event description.
type Impact struct {
	Severity   Severity `json:"severity"`
	Categories []string `json:"categories_affected"`
	Multiplier float64  `json:"estimated_multiplier"`
}

// ClassifyImpact maps headline or article text to a demand impact by keyword.
func ClassifyImpact(text string) Impact {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "hurricane") || strings.Contains(t, "tropical storm"):
		return Impact{SeverityHigh, []string{"Water", "Batteries", "Flashlights", "Canned Goods"}, 3.0}
	case strings.Contains(t, "super bowl") || strings.Contains(t, "championship"):
		return Impact{SeverityMedium, []string{"Snacks", "Beverages"}, 2.0}
	case strings.Contains(t, "shortage") || strings.Contains(t, "supply chain"):
		return Impact{SeverityMedium, []string{"Various"}, 1.5}
	default:
		return Impact{Severity: SeverityLow, Multiplier: 1.0}
	}
}

// WindowFromTrack derives the disaster window dates from a storm track. The
// peak is the first day at the highest category. Shape factors come from base.
// An empty track returns base unchanged.
func WindowFromTrack(track []model.StormObservation, base refdata.DisasterWindow) refdata.DisasterWindow {
	if len(track) == 0 {
		return base
	}
	w := base
	w.Start = model.Day(track[0].Date)
	w.End = w.Start
	w.Peak = w.Start
	peak := -1
	for _, o := range track {
		d := model.Day(o.Date)
		if d.Before(w.Start) {
			w.Start = d
		}
		if d.After(w.End) {
			w.End = d
		}
		if i := o.Intensity(); i > peak || (i == peak && d.Before(w.Peak)) {
			peak = i
			w.Peak = d
		}
	}
	return w
}
