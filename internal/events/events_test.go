package events

import (
	"testing"

	"stormguard/internal/model"
	"stormguard/internal/refdata"
)

func TestStaticProvider_EventOnAndUpcoming(t *testing.T) {
	p := Default()
	e, ok := p.EventOn(model.MustDate("2024-10-07"))
	if !ok || e.Label != "Hurricane Milton Warning" {
		t.Fatalf("EventOn: got %+v ok=%v", e, ok)
	}
	if _, ok := p.EventOn(model.MustDate("2024-10-08")); ok {
		t.Fatalf("no event expected on 2024-10-08")
	}

	up := p.Upcoming(model.MustDate("2024-10-01"), 60)
	if len(up) != 2 {
		t.Fatalf("upcoming: want 2, got %d", len(up))
	}
	if up[0].Label != "Hurricane Milton Warning" || up[1].Label != "Thanksgiving" {
		t.Fatalf("upcoming order: %+v", up)
	}
}

func TestStaticProvider_ReturnsCopies(t *testing.T) {
	p := Default()
	evs := p.KnownEvents()
	evs[0].Label = "mutated"
	evs[0].ImpactCategories[0] = "mutated"
	again := p.KnownEvents()
	if again[0].Label == "mutated" {
		t.Fatalf("provider state leaked through KnownEvents")
	}
	if len(p.StormTrack()) != 6 {
		t.Fatalf("milton track should have 6 days")
	}
}

func TestClassifyImpact(t *testing.T) {
	cases := []struct {
		text string
		sev  Severity
		mult float64
	}{
		{"Hurricane Milton threatens Florida with 145 mph winds", SeverityHigh, 3.0},
		{"Tropical Storm watch issued", SeverityHigh, 3.0},
		{"Super Bowl parties expected", SeverityMedium, 2.0},
		{"Egg shortage hits grocers", SeverityMedium, 1.5},
		{"Local farmers market opens", SeverityLow, 1.0},
	}
	for _, c := range cases {
		got := ClassifyImpact(c.text)
		if got.Severity != c.sev || got.Multiplier != c.mult {
			t.Fatalf("%q: got %+v", c.text, got)
		}
	}
}

func TestWindowFromTrack_PeakIsStrongestDay(t *testing.T) {
	base := refdata.Default().Disaster
	w := WindowFromTrack(Default().StormTrack(), base)
	if !w.Start.Equal(model.MustDate("2024-10-07")) || !w.End.Equal(model.MustDate("2024-10-12")) {
		t.Fatalf("bounds: %v..%v", w.Start, w.End)
	}
	if !w.Peak.Equal(model.MustDate("2024-10-09")) {
		t.Fatalf("peak: %v", w.Peak)
	}
	if w.ClampMax != base.ClampMax || w.CoastalFactor != base.CoastalFactor {
		t.Fatalf("shape factors should come from base")
	}
	if got := WindowFromTrack(nil, base); got != base {
		t.Fatalf("empty track should return base")
	}
}
