package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stormguard/internal/config"
	"stormguard/internal/events"
	"stormguard/internal/forecast"
	"stormguard/internal/logger"
	"stormguard/internal/manifest"
	"stormguard/internal/model"
	"stormguard/internal/pgstore"
	"stormguard/internal/refdata"
	"stormguard/internal/restore"
	"stormguard/internal/state"
)

type Flags struct {
	SKUs           string
	StoreID        int
	Horizon        int
	Confidence     bool
	EventType      string
	EventDate      string
	KnownEvents    bool
	SnapshotDir    string
	ManifestDir    string
	ManifestSource string // file|kafka
	KafkaBootstrap string
	PostgresURL    string
}

// output pairs a forecast with its event-adjusted projection.
type output struct {
	Result   forecast.Result  `json:"result"`
	Adjusted *forecast.Series `json:"adjusted_forecast,omitempty"`
}

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	var f Flags
	flag.StringVar(&f.SKUs, "sku", strings.Join(cfg.Forecast.SKUs, ","), "comma-separated SKUs")
	flag.IntVar(&f.StoreID, "store", 0, "store id; 0 forecasts the chain-wide aggregate")
	flag.IntVar(&f.Horizon, "horizon", cfg.Forecast.Horizon, "forecast horizon in days")
	flag.BoolVar(&f.Confidence, "confidence", true, "include lower/upper bands")
	flag.StringVar(&f.EventType, "event-type", "", "adjust for an event: hurricane|sports|holiday")
	flag.StringVar(&f.EventDate, "event-date", "", "event date (YYYY-MM-DD)")
	flag.BoolVar(&f.KnownEvents, "known-events", false, "adjust for the known events inside the horizon")
	flag.StringVar(&f.SnapshotDir, "snapshot-dir", cfg.Output.SnapshotDir, "snapshot directory")
	flag.StringVar(&f.ManifestDir, "manifest-dir", cfg.Output.ManifestDir, "manifest directory")
	flag.StringVar(&f.ManifestSource, "manifest-source", "file", "manifest source: file|kafka")
	flag.StringVar(&f.KafkaBootstrap, "kafka-bootstrap", cfg.Kafka.Bootstrap, "kafka bootstrap servers")
	flag.StringVar(&f.PostgresURL, "postgres-url", cfg.Postgres.URL, "read sales history from postgres when set")
	flag.Parse()

	zl, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if err := run(context.Background(), cfg, f, zl); err != nil {
		zl.Fatal("forecast failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, f Flags, zl *zap.Logger) error {
	var eventDate time.Time
	if f.EventType != "" {
		d, err := model.ParseDate(f.EventDate)
		if err != nil {
			return fmt.Errorf("-event-date: %w", err)
		}
		eventDate = d
	}
	var skus []string
	for _, s := range strings.Split(f.SKUs, ",") {
		if s = strings.TrimSpace(s); s != "" {
			skus = append(skus, s)
		}
	}
	if len(skus) == 0 {
		return fmt.Errorf("-sku: no SKUs given")
	}
	var storeID *int
	if f.StoreID > 0 {
		storeID = &f.StoreID
	}

	var mr manifest.Reader = manifest.NewFilesystemManifest(f.ManifestDir)
	if f.ManifestSource == "kafka" && f.KafkaBootstrap != "" {
		kr := manifest.NewKafkaReader(cfg.Kafka.Brokers(), cfg.Kafka.ManifestTopic, cfg.Kafka.ManifestKey)
		defer kr.Close()
		mr = kr
	}
	m, err := mr.ReadLatest()
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	ds, err := restore.NewRestorer(state.NewInMemoryStore(), mr, f.SnapshotDir, restore.WithLogger(zl)).LoadDataset(m)
	if err != nil {
		return err
	}

	sales, products, stores := ds.Sales, ds.Products, ds.Stores
	if f.PostgresURL != "" {
		if sales, products, stores, err = fromPostgres(ctx, f.PostgresURL, skus, storeID); err != nil {
			return err
		}
	}

	tool := forecast.New(refdata.Default(), sales, products, stores,
		forecast.WithEvents(events.NewStaticProvider(ds.Events, ds.StormTrack)),
		forecast.WithLogger(zl))
	out := make([]output, len(skus))
	for i, sku := range skus {
		r, err := tool.Query(sku, storeID, f.Horizon, f.Confidence)
		if err != nil {
			return err
		}
		out[i].Result = r
		switch {
		case f.EventType != "":
			adj, err := tool.AdjustForEvent(r.Forecast, f.EventType, eventDate, r.SKU)
			if err != nil {
				return err
			}
			out[i].Adjusted = &adj
		case f.KnownEvents:
			adj, err := tool.AdjustForKnownEvents(r.Forecast, r.SKU)
			if err != nil {
				return err
			}
			out[i].Adjusted = &adj
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func fromPostgres(ctx context.Context, url string, skus []string, storeID *int) ([]model.SaleRecord, []model.Product, []model.Store, error) {
	pool, err := pgstore.NewPool(ctx, url, 2)
	if err != nil {
		return nil, nil, nil, err
	}
	defer pool.Close()
	r := pgstore.NewReader(pool)
	defer r.Close()

	var sales []model.SaleRecord
	for _, sku := range skus {
		rows, err := r.SalesHistory(ctx, sku, storeID)
		if err != nil {
			return nil, nil, nil, err
		}
		sales = append(sales, rows...)
	}
	products, err := r.Products(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	stores, err := r.Stores(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return sales, products, stores, nil
}
