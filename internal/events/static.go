package events

import "stormguard/internal/model"

// Default returns the built-in event calendar and the Hurricane Milton track.
func Default() *StaticProvider {
	return NewStaticProvider(defaultEvents(), miltonTrack())
}

func defaultEvents() []model.KnownEvent {
	return []model.KnownEvent{
		{
			Date:             model.MustDate("2024-02-11"),
			Label:            "Super Bowl LVIII",
			Location:         "Las Vegas",
			ImpactCategories: []string{"Snacks", "Beverages"},
			DemandMultiplier: 2.5,
			LeadTimeDays:     7,
		},
		{
			Date:             model.MustDate("2024-07-04"),
			Label:            "Independence Day",
			Location:         "Nationwide",
			ImpactCategories: []string{"Snacks", "Beverages", "Meat"},
			DemandMultiplier: 1.8,
			LeadTimeDays:     3,
		},
		{
			Date:             model.MustDate("2024-10-07"),
			Label:            "Hurricane Milton Warning",
			Location:         "Florida",
			ImpactCategories: []string{"Water", "Batteries", "Flashlights", "Canned Goods"},
			DemandMultiplier: 3.5,
			LeadTimeDays:     2,
		},
		{
			Date:             model.MustDate("2024-11-28"),
			Label:            "Thanksgiving",
			Location:         "Nationwide",
			ImpactCategories: []string{"Turkey", "Frozen Foods", "Canned Goods"},
			DemandMultiplier: 2.2,
			LeadTimeDays:     7,
		},
	}
}

func miltonTrack() []model.StormObservation {
	return []model.StormObservation{
		{Date: model.MustDate("2024-10-07"), Category: "1", MaxWindMph: 75, PressureMb: 988,
			AffectedCounties: []string{"Miami-Dade", "Broward", "Monroe"}, StormSurgeFt: 3, RainfallInches: 4.2},
		{Date: model.MustDate("2024-10-08"), Category: "2", MaxWindMph: 100, PressureMb: 972,
			AffectedCounties: []string{"Palm Beach", "Martin", "St. Lucie", "Indian River"}, StormSurgeFt: 6, RainfallInches: 8.5},
		{Date: model.MustDate("2024-10-09"), Category: "4", MaxWindMph: 145, PressureMb: 945,
			AffectedCounties: []string{"Brevard", "Orange", "Volusia", "Seminole", "Osceola"}, StormSurgeFt: 12, RainfallInches: 15.2},
		{Date: model.MustDate("2024-10-10"), Category: "3", MaxWindMph: 130, PressureMb: 956,
			AffectedCounties: []string{"Pinellas", "Hillsborough", "Manatee", "Polk"}, StormSurgeFt: 10, RainfallInches: 12.1},
		{Date: model.MustDate("2024-10-11"), Category: "2", MaxWindMph: 85, PressureMb: 978,
			AffectedCounties: []string{"Citrus", "Hernando", "Pasco", "Sumter"}, StormSurgeFt: 5, RainfallInches: 6.8},
		{Date: model.MustDate("2024-10-12"), Category: "TS", MaxWindMph: 40, PressureMb: 995,
			AffectedCounties: []string{"Dixie", "Levy", "Gilchrist", "Alachua"}, StormSurgeFt: 2, RainfallInches: 3.1},
	}
}
