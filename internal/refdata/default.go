package refdata

import "stormguard/internal/model"

// Default returns a fresh Catalog for the Florida chain. Each call builds new
// values, so callers may modify their copy freely.
func Default() *Catalog {
	return &Catalog{
		ChainName: "StormGuard",
		Cities: []City{
			{"Miami", 25.7617, -80.1918, model.DensityHigh},
			{"Tampa", 27.9506, -82.4572, model.DensityHigh},
			{"Orlando", 28.5383, -81.3792, model.DensityHigh},
			{"Jacksonville", 30.3322, -81.6557, model.DensityHigh},
			{"Fort Lauderdale", 26.1224, -80.1373, model.DensityHigh},
			{"West Palm Beach", 26.7153, -80.0534, model.DensityMedium},
			{"Tallahassee", 30.4383, -84.2807, model.DensityMedium},
			{"Pensacola", 30.4213, -87.2169, model.DensityMedium},
			{"Cape Coral", 26.5629, -81.9495, model.DensityMedium},
			{"Port St. Lucie", 27.2730, -80.3582, model.DensityMedium},
			{"Gainesville", 29.6516, -82.3248, model.DensityLow},
			{"Lakeland", 28.0395, -81.9498, model.DensityLow},
			{"Sarasota", 27.3364, -82.5307, model.DensityMedium},
			{"Clearwater", 27.9659, -82.8001, model.DensityMedium},
			{"Naples", 26.1420, -81.7948, model.DensityLow},
			{"Daytona Beach", 29.2108, -81.0228, model.DensityMedium},
			{"Boca Raton", 26.3683, -80.1289, model.DensityMedium},
			{"Ocala", 29.1872, -82.1401, model.DensityLow},
			{"Palm Bay", 28.0345, -80.5887, model.DensityLow},
			{"St. Petersburg", 27.7676, -82.6403, model.DensityHigh},
		},
		DensityWeights: map[model.Density]float64{
			model.DensityHigh:   0.15,
			model.DensityMedium: 0.08,
			model.DensityLow:    0.03,
		},
		SquareFootage: map[model.Density]IntRange{
			model.DensityHigh:   {15000, 45000},
			model.DensityMedium: {10000, 30000},
			model.DensityLow:    {5000, 20000},
		},
		CoastalCities: []string{"Miami", "Tampa", "Fort Lauderdale", "Naples", "Daytona Beach"},
		Categories:    defaultCategories(),
		Holidays: map[string]float64{
			"2023-07-04": 1.6,
			"2023-11-23": 2.1,
			"2023-12-25": 1.4,
			"2024-01-01": 1.3,
			"2024-02-11": 1.5,
			"2024-05-27": 1.5,
			"2024-07-04": 1.6,
			"2024-09-02": 1.4,
			"2024-11-28": 2.1,
			"2024-12-25": 1.4,
		},
		Disaster: DisasterWindow{
			Name:          "Hurricane Milton",
			Start:         model.MustDate("2024-10-07"),
			Peak:          model.MustDate("2024-10-09"),
			End:           model.MustDate("2024-10-12"),
			CoastalFactor: 1.5,
			RampDays:      2,
			RampPerDay:    0.8,
			DecayPerDay:   0.4,
			DecayFloor:    0.5,
			ClampMin:      0.5,
			ClampMax:      5.0,
		},
		Stores: StoreRules{
			CoordinateJitter: 0.1,
			TrafficPerSqft:   Range{0.08, 0.15},
			SqftPerStaff:     2000,
			MinStaff:         5,
			SqftPerParking:   100,
			SqftPerPallet:    50,
			OpeningStart:     model.MustDate("2015-01-01"),
			OpeningEnd:       model.MustDate("2022-12-31"),
			SuperstoreAbove:  30000,
			StandardAbove:    15000,
			NameFormat:       "StormGuard #%03d",
		},
		Products: ProductRules{
			MinPerCategory: 5,
			SKUFormat:      "SKU-%04d",
		},
		Sales: SalesRules{
			SKUsPerDay:         IntRange{30, 50},
			ReferenceTraffic:   2000,
			VelocityJitter:     Range{0.5, 1.5},
			Noise:              Range{0.8, 1.2},
			WeekendMultiplier:  1.35,
			SeasonalAmplitude:  0.2,
			SeasonalPeakDay:    196,
			FallbackMean:       5,
			DefaultCategoryVel: 10,
		},
		Inventory: InventoryRules{
			WindowDays:           30,
			DefaultVelocity:      5.0,
			SafetyStockFloor:     10,
			SafetyFactor:         1.5,
			OnHandFactor:         Range{0.5, 2.5},
			TargetMultiple:       2,
			CapacityMultiple:     3,
			DaysOfSupplySentinel: 999,
			ReceivedLookbackDays: 14,
		},
		Forecast: ForecastRules{
			MinHistoryDays:    30,
			ShortWindow:       7,
			LongWindow:        30,
			ShortWeight:       0.7,
			TrendCap:          0.5,
			TrendHorizonDays:  30,
			BandLow:           0.8,
			BandHigh:          1.2,
			EventRadiusDays:   3,
			EventDecayDays:    4,
			SportsMultiplier:  1.5,
			SportsCategories:  []string{"Snacks", "Beverages"},
			HolidayMultiplier: 1.3,
			DefaultBaseline:   10,
		},
	}
}

var (
	perishable = IntRange{1, 3}
	durable    = IntRange{3, 10}
)

func defaultCategories() []Category {
	return []Category{
		{
			Name: "Water", HurricaneMultiplier: 3.5, PriceRange: Range{1, 8}, Margin: 0.25,
			ShelfLifeDays: 365, WeightRange: Range{1, 40},
			Variants: []string{"24pk Bottles", "12pk Bottles", "6pk Gallon", "Single Gallon", "40pk Bottles"},
			UnitOfMeasure: "pack", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 15, BaselineForecast: 15,
		},
		{
			Name: "Batteries", HurricaneMultiplier: 3.0, PriceRange: Range{3, 25}, Margin: 0.40,
			ShelfLifeDays: 1825, WeightRange: Range{0.2, 1.5},
			Variants: []string{"AA 8pk", "AAA 8pk", "D 4pk", "C 4pk", "9V 2pk", "AA 20pk"},
			UnitOfMeasure: "pack", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 8, BaselineForecast: 8,
		},
		{
			Name: "Flashlights", HurricaneMultiplier: 2.8, PriceRange: Range{5, 50}, Margin: 0.45,
			ShelfLifeDays: 1825, WeightRange: Range{0.5, 2},
			Variants: []string{"LED Handheld", "Lantern", "Headlamp", "Tactical", "Mini LED"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 5,
		},
		{
			Name: "Canned Goods", HurricaneMultiplier: 2.5, PriceRange: Range{1, 5}, Margin: 0.30,
			ShelfLifeDays: 730, WeightRange: Range{0.5, 3},
			Variants: []string{"Soup", "Vegetables", "Beans", "Fruit", "Meat", "Pasta"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 12,
		},
		{
			Name: "First Aid", HurricaneMultiplier: 2.2, PriceRange: Range{5, 40}, Margin: 0.50,
			ShelfLifeDays: 1095, WeightRange: Range{0.3, 3},
			Variants: []string{"Basic Kit", "Premium Kit", "Travel Kit", "Bandages", "Antiseptic"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 6,
		},
		{
			Name: "Generators", HurricaneMultiplier: 2.0, PriceRange: Range{300, 2000}, Margin: 0.25,
			ShelfLifeDays: 3650, WeightRange: Range{50, 200},
			Variants: []string{"2000W Portable", "3500W Portable", "5000W", "7500W", "Inverter 2000W"},
			UnitOfMeasure: "each", MOQChoices: []int{1, 2, 5}, LeadTime: IntRange{7, 21},
			BaseVelocity: 1,
		},
		{
			Name: "Tarps & Covers", HurricaneMultiplier: 2.3, PriceRange: Range{10, 80}, Margin: 0.40,
			ShelfLifeDays: 1825, WeightRange: Range{2, 15},
			Variants: []string{"8x10 Tarp", "10x12 Tarp", "20x20 Tarp", "Sandbags 50pk", "Plastic Sheeting"},
			UnitOfMeasure: "each", MOQChoices: []int{1, 2, 5}, LeadTime: durable,
			BaseVelocity: 3,
		},
		{
			Name: "Bread", HurricaneMultiplier: 1.8, PriceRange: Range{2, 6}, Margin: 0.35,
			ShelfLifeDays: 7, WeightRange: Range{1, 2},
			Variants: []string{"White Loaf", "Wheat Loaf", "Sourdough", "Baguette", "Rolls 12pk"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: perishable,
			BaseVelocity: 20, BaselineForecast: 20,
		},
		{
			Name: "Milk", HurricaneMultiplier: 1.5, PriceRange: Range{3, 7}, Margin: 0.28,
			ShelfLifeDays: 14, WeightRange: Range{2, 9},
			Variants: []string{"Whole Gallon", "2% Gallon", "Skim Gallon", "Whole Half-Gallon", "Almond Milk"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: perishable,
			BaseVelocity: 18, BaselineForecast: 18,
		},
		{
			Name: "Snacks", HurricaneMultiplier: 1.6, PriceRange: Range{2, 8}, Margin: 0.42,
			ShelfLifeDays: 180, WeightRange: Range{0.5, 3},
			Variants: []string{"Chips", "Crackers", "Cookies", "Granola Bars", "Trail Mix", "Nuts"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 25, BaselineForecast: 25,
		},
		{
			Name: "Beverages", HurricaneMultiplier: 1.4, PriceRange: Range{1, 12}, Margin: 0.33,
			ShelfLifeDays: 365, WeightRange: Range{1, 12},
			Variants: []string{"Soda 12pk", "Juice Gallon", "Sports Drink 8pk", "Coffee 12oz", "Tea Bags 100ct"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 22,
		},
		{
			Name: "Frozen Foods", HurricaneMultiplier: 0.6, PriceRange: Range{3, 15}, Margin: 0.35,
			ShelfLifeDays: 180, WeightRange: Range{1, 5},
			Variants: []string{"Pizza", "Vegetables", "Ice Cream", "Meals", "Chicken"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: perishable,
			BaseVelocity: 15,
		},
		{
			Name: "Personal Care", HurricaneMultiplier: 1.0, PriceRange: Range{3, 30}, Margin: 0.48,
			ShelfLifeDays: 730, WeightRange: Range{0.3, 3},
			Variants: []string{"Shampoo", "Soap", "Toothpaste", "Deodorant", "Tissues"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 10,
		},
		{
			Name: "Cleaning Supplies", HurricaneMultiplier: 1.3, PriceRange: Range{3, 15}, Margin: 0.40,
			ShelfLifeDays: 1095, WeightRange: Range{1, 10},
			Variants: []string{"Bleach", "Paper Towels", "Toilet Paper", "Dish Soap", "Spray Cleaner"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 12,
		},
		{
			Name: "Pet Supplies", HurricaneMultiplier: 1.4, PriceRange: Range{5, 40}, Margin: 0.38,
			ShelfLifeDays: 365, WeightRange: Range{2, 30},
			Variants: []string{"Dog Food 20lb", "Cat Food 10lb", "Pet Treats", "Litter 25lb", "Pet Bowls"},
			UnitOfMeasure: "each", MOQChoices: []int{6, 12, 24}, LeadTime: durable,
			BaseVelocity: 8,
		},
	}
}
