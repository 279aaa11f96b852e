package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"stormguard/internal/events"
	"stormguard/internal/metrics"
	"stormguard/internal/model"
	"stormguard/internal/refdata"
	"stormguard/internal/state"
	"stormguard/internal/stores"
	"stormguard/internal/velocity"
)

type countingJournal struct{ n int }

func (j *countingJournal) Record(ds ...velocity.Delta) error {
	j.n += len(ds)
	return nil
}

func smallConfig() Config {
	return Config{
		Stores:   5,
		Products: 75,
		Start:    model.MustDate("2024-08-01"),
		End:      model.MustDate("2024-10-31"),
		Seed:     42,
		Workers:  4,
	}
}

func TestRun_SmallDataset(t *testing.T) {
	reg := metrics.NewRegistry()
	st := state.NewInMemoryStore()
	j := &countingJournal{}
	pl := New(refdata.Default(), WithMetrics(reg), WithStateStore(st), WithJournal(j))
	ds, err := pl.Run(context.Background(), smallConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(ds.Stores) != 5 || len(ds.Products) != 75 || len(ds.Inventory) != 5*75 {
		t.Fatalf("unexpected sizes %d/%d/%d", len(ds.Stores), len(ds.Products), len(ds.Inventory))
	}
	if len(ds.Sales) == 0 || len(ds.Events) != 4 || len(ds.StormTrack) == 0 {
		t.Fatalf("sales=%d events=%d track=%d", len(ds.Sales), len(ds.Events), len(ds.StormTrack))
	}
	if j.n == 0 || st.Len() == 0 {
		t.Fatalf("velocity state not populated: journal=%d state=%d", j.n, st.Len())
	}

	families, _ := reg.Gatherer().Gather()
	rows := map[string]float64{}
	stages := 0
	for _, f := range families {
		switch f.GetName() {
		case "stormguard_rows_generated_total":
			for _, m := range f.GetMetric() {
				rows[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
			}
		case "stormguard_stage_duration_seconds":
			stages = len(f.GetMetric())
		}
	}
	if rows["sales_history"] != float64(len(ds.Sales)) || rows["inventory"] != float64(len(ds.Inventory)) {
		t.Fatalf("row counters %v", rows)
	}
	if stages != 4 {
		t.Fatalf("stage histograms=%d want 4", stages)
	}
}

func TestRun_Deterministic(t *testing.T) {
	a, err := New(refdata.Default()).Run(context.Background(), smallConfig())
	if err != nil {
		t.Fatalf("a: %v", err)
	}
	cfg := smallConfig()
	cfg.Workers = 1
	b, err := New(refdata.Default()).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("b: %v", err)
	}
	if len(a.Sales) != len(b.Sales) || !a.TotalRevenue().Equal(b.TotalRevenue()) {
		t.Fatalf("runs differ: %d/%s vs %d/%s", len(a.Sales), a.TotalRevenue(), len(b.Sales), b.TotalRevenue())
	}
}

func TestRun_ConfigErrorsFailWhole(t *testing.T) {
	cfg := smallConfig()
	cfg.Stores = 0
	ds, err := New(refdata.Default()).Run(context.Background(), cfg)
	if !errors.Is(err, stores.ErrInvalidCount) || ds != nil {
		t.Fatalf("want ErrInvalidCount and no dataset, got %v %v", ds, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(refdata.Default()).Run(ctx, smallConfig()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestRun_WindowFollowsStormTrack(t *testing.T) {
	track := []model.StormObservation{
		{Date: model.MustDate("2024-09-01"), Category: "TS"},
		{Date: model.MustDate("2024-09-02"), Category: "3"},
		{Date: model.MustDate("2024-09-03"), Category: "1"},
	}
	pl := New(refdata.Default(), WithEvents(events.NewStaticProvider(nil, track)))
	w := pl.Window()
	if !w.Start.Equal(model.MustDate("2024-09-01")) || !w.Peak.Equal(model.MustDate("2024-09-02")) || !w.End.Equal(model.MustDate("2024-09-03")) {
		t.Fatalf("window %v %v %v", w.Start, w.Peak, w.End)
	}
}

func TestSummarize(t *testing.T) {
	pl := New(refdata.Default())
	ds, err := pl.Run(context.Background(), smallConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := Summarize(ds, pl.Window())
	if s.Stores != 5 || s.Products != 75 || s.Categories != 15 || s.Transactions != len(ds.Sales) {
		t.Fatalf("counts %+v", s)
	}
	if !s.TotalRevenue.Equal(ds.TotalRevenue()) {
		t.Fatalf("revenue %s vs %s", s.TotalRevenue, ds.TotalRevenue())
	}
	if s.HighRisk+s.MediumRisk+s.LowRisk != len(ds.Inventory) {
		t.Fatalf("risk bands do not cover inventory")
	}
	if len(s.TopHurricane) != 5 || s.TopHurricane[0].Category != "Water" {
		t.Fatalf("top hurricane %v", s.TopHurricane)
	}
	if !s.FirstSale.Equal(ds.Start) || !s.LastSale.Equal(ds.End) {
		t.Fatalf("date range %v..%v", s.FirstSale, s.LastSale)
	}
	if s.UpliftPct <= 0 {
		t.Fatalf("storm window should lift revenue, got %.1f%%", s.UpliftPct)
	}
	text := s.Text()
	for _, want := range []string{"Total stores: 5", "Total SKUs: 75", "Water (3.5x)", "Stockout Risk:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&model.Dataset{}, refdata.Default().Disaster)
	if s.UpliftPct != 0 || !s.AvgDailyRevenue.Equal(decimal.Zero) {
		t.Fatalf("empty summary %+v", s)
	}
	_ = s.Text()
}

func TestThousands(t *testing.T) {
	cases := map[int64]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4500: "-4,500"}
	for n, want := range cases {
		if got := thousands(n); got != want {
			t.Fatalf("thousands(%d)=%q want %q", n, got, want)
		}
	}
}

// Regression baseline: 50 stores, 200 products and two years of daily sales
// must reproduce the same record count and revenue on every run.
func TestRun_FullScaleRepeatable(t *testing.T) {
	if testing.Short() {
		t.Skip("full-scale generation")
	}
	cfg := Config{
		Stores:   50,
		Products: 200,
		Start:    model.MustDate("2023-01-01"),
		End:      model.MustDate("2024-12-31"),
		Seed:     42,
	}
	a, err := New(refdata.Default()).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("a: %v", err)
	}
	b, err := New(refdata.Default()).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("b: %v", err)
	}
	if len(a.Sales) != len(b.Sales) || !a.TotalRevenue().Equal(b.TotalRevenue()) {
		t.Fatalf("regression baseline drifted: %d/%s vs %d/%s", len(a.Sales), a.TotalRevenue(), len(b.Sales), b.TotalRevenue())
	}
}

func dumpState(t *testing.T, st state.Store) map[string]state.PairState {
	t.Helper()
	out := map[string]state.PairState{}
	if err := st.Range(func(k string, ps state.PairState) error {
		out[k] = ps
		return nil
	}); err != nil {
		t.Fatalf("range: %v", err)
	}
	return out
}

func TestRun_ReusedPebbleDirMatchesFreshRun(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig()
	cfg.Stores = 2

	ps, err := state.NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	cfg.Seed = 1
	if _, err := New(refdata.Default(), WithStateStore(ps)).Run(context.Background(), cfg); err != nil {
		t.Fatalf("seed 1: %v", err)
	}
	if err := ps.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ps, err = state.NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen pebble: %v", err)
	}
	defer ps.Close()
	cfg.Seed = 2
	reused, err := New(refdata.Default(), WithStateStore(ps)).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("seed 2 reused: %v", err)
	}

	mem := state.NewInMemoryStore()
	fresh, err := New(refdata.Default(), WithStateStore(mem)).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("seed 2 fresh: %v", err)
	}

	if len(reused.Inventory) != len(fresh.Inventory) {
		t.Fatalf("inventory %d vs %d", len(reused.Inventory), len(fresh.Inventory))
	}
	for i, got := range reused.Inventory {
		want := fresh.Inventory[i]
		if got.StoreID != want.StoreID || got.SKU != want.SKU || got.AvgDailySales != want.AvgDailySales ||
			got.VelocityFallback != want.VelocityFallback || got.ReorderPoint != want.ReorderPoint {
			t.Fatalf("pair %d/%s: reused avg=%v fresh avg=%v", got.StoreID, got.SKU, got.AvgDailySales, want.AvgDailySales)
		}
	}
	if got, want := dumpState(t, ps), dumpState(t, mem); !reflect.DeepEqual(got, want) {
		t.Fatalf("state holds %d keys, fresh run %d", len(got), len(want))
	}
}
