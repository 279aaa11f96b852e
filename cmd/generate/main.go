package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stormguard/internal/changelog"
	"stormguard/internal/config"
	"stormguard/internal/logger"
	"stormguard/internal/manifest"
	"stormguard/internal/metrics"
	"stormguard/internal/model"
	"stormguard/internal/pgstore"
	"stormguard/internal/pipeline"
	"stormguard/internal/publish"
	"stormguard/internal/refdata"
	"stormguard/internal/snapshot"
	"stormguard/internal/state"
)

// Flags holds the CLI options; defaults come from the environment.
type Flags struct {
	Stores       int
	Products     int
	Start        string
	End          string
	AsOf         string
	Seed         int64
	Workers      int
	SnapshotDir  string
	ManifestDir  string
	ChangelogDir string
	StateBackend string // memory|pebble
	PebbleDir    string
	// Kafka sinks
	KafkaBootstrap string
	ChangelogSink  string // none|file|kafka|both
	ManifestSink   string // file|kafka|both
	Publish        bool
	// Postgres
	PostgresURL string
	MetricsAddr string
	Linger      time.Duration
}

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()
	f := readFlags(cfg)

	zl, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, f, zl); err != nil {
		zl.Fatal("generate failed", zap.Error(err))
	}
}

func readFlags(cfg *config.Config) Flags {
	g := cfg.Generation
	var f Flags
	flag.IntVar(&f.Stores, "stores", g.Stores, "number of stores")
	flag.IntVar(&f.Products, "products", g.Products, "number of products")
	flag.StringVar(&f.Start, "start", model.FormatDate(g.Start), "first sales day (YYYY-MM-DD)")
	flag.StringVar(&f.End, "end", model.FormatDate(g.End), "last sales day (YYYY-MM-DD)")
	asOf := ""
	if !g.AsOf.IsZero() {
		asOf = model.FormatDate(g.AsOf)
	}
	flag.StringVar(&f.AsOf, "as-of", asOf, "inventory snapshot day; empty means the day after the last sale")
	flag.Int64Var(&f.Seed, "seed", g.Seed, "random seed")
	flag.IntVar(&f.Workers, "workers", g.Workers, "sales workers; 0 means GOMAXPROCS")
	flag.StringVar(&f.SnapshotDir, "snapshot-dir", cfg.Output.SnapshotDir, "snapshot directory")
	flag.StringVar(&f.ManifestDir, "manifest-dir", cfg.Output.ManifestDir, "manifest directory")
	flag.StringVar(&f.ChangelogDir, "changelog-dir", cfg.Output.ChangelogDir, "changelog directory")
	flag.StringVar(&f.StateBackend, "state-backend", cfg.State.Backend, "velocity state backend: memory|pebble")
	flag.StringVar(&f.PebbleDir, "pebble-dir", cfg.State.PebbleDir, "pebble data directory")
	flag.StringVar(&f.KafkaBootstrap, "kafka-bootstrap", cfg.Kafka.Bootstrap, "kafka bootstrap servers, e.g. localhost:9092")
	flag.StringVar(&f.ChangelogSink, "changelog-sink", "file", "changelog sink: none|file|kafka|both")
	flag.StringVar(&f.ManifestSink, "manifest-sink", "file", "manifest sink: file|kafka|both")
	flag.BoolVar(&f.Publish, "publish", false, "publish the dataset to kafka in one transaction")
	flag.StringVar(&f.PostgresURL, "postgres-url", cfg.Postgres.URL, "load the dataset into postgres when set")
	flag.StringVar(&f.MetricsAddr, "metrics-addr", cfg.Metrics.Addr, "serve /metrics on this address when set")
	flag.DurationVar(&f.Linger, "linger", 0, "keep serving metrics this long after finishing")
	flag.Parse()
	return f
}

func (f Flags) pipelineConfig() (pipeline.Config, error) {
	start, err := model.ParseDate(f.Start)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("-start: %w", err)
	}
	end, err := model.ParseDate(f.End)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("-end: %w", err)
	}
	var asOf time.Time
	if f.AsOf != "" {
		if asOf, err = model.ParseDate(f.AsOf); err != nil {
			return pipeline.Config{}, fmt.Errorf("-as-of: %w", err)
		}
	}
	return pipeline.Config{
		Stores:   f.Stores,
		Products: f.Products,
		Start:    start,
		End:      end,
		Seed:     f.Seed,
		Workers:  f.Workers,
		AsOf:     asOf,
	}, nil
}

func serveMetrics(addr string, mreg *metrics.Registry, zl *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mreg.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

func run(ctx context.Context, cfg *config.Config, f Flags, zl *zap.Logger) error {
	pcfg, err := f.pipelineConfig()
	if err != nil {
		return err
	}
	mreg := metrics.NewRegistry()
	if f.MetricsAddr != "" {
		srv := serveMetrics(f.MetricsAddr, mreg, zl)
		defer func() {
			if f.Linger > 0 {
				zl.Info("lingering for metrics scrape", zap.Duration("for", f.Linger))
				select {
				case <-time.After(f.Linger):
				case <-ctx.Done():
				}
			}
			_ = srv.Close()
		}()
	}

	var st state.Store
	if f.StateBackend == "pebble" {
		ps, err := state.NewPebbleStore(f.PebbleDir)
		if err != nil {
			return fmt.Errorf("init pebble: %w", err)
		}
		defer ps.Close()
		st = ps
	} else {
		st = state.NewInMemoryStore()
	}

	// changelog sinks; the file writer's offset is what the manifest records
	var (
		clog changelog.Writer
		fw   *changelog.FileWriter
	)
	if f.ChangelogSink == "file" || f.ChangelogSink == "both" {
		fw, err = changelog.NewFileWriter(f.ChangelogDir, "sales.jsonl")
		if err != nil {
			return fmt.Errorf("init changelog file: %w", err)
		}
		clog = fw
	}
	if (f.ChangelogSink == "kafka" || f.ChangelogSink == "both") && f.KafkaBootstrap != "" {
		kw := changelog.NewKafkaWriter(f.KafkaBootstrap, cfg.Kafka.ChangelogTopic)
		if clog == nil {
			clog = kw
		} else {
			clog = changelog.NewMultiWriter(clog, kw)
		}
	}

	opts := []pipeline.Option{
		pipeline.WithStateStore(st),
		pipeline.WithLogger(zl),
		pipeline.WithMetrics(mreg),
	}
	if clog != nil {
		opts = append(opts, pipeline.WithJournal(changelog.NewJournal(clog, mreg)))
	}
	pl := pipeline.New(refdata.Default(), opts...)
	ds, err := pl.Run(ctx, pcfg)
	if err != nil {
		return err
	}
	summary := pipeline.Summarize(ds, pl.Window())

	sid := snapshot.ID(pcfg.Seed, pcfg.Stores, pcfg.Products, pcfg.Start, pcfg.End)
	snap := snapshot.NewFilesystemSnapshotter(f.SnapshotDir)
	if err := snap.WriteSnapshot(sid, snapshot.Contents{Dataset: ds, State: st, Summary: summary.Text()}); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	mreg.SnapshotsWritten.Inc()

	var offset int64
	if fw != nil {
		offset = fw.Offset()
	}
	var mani manifest.Publisher = manifest.NewFilesystemManifest(f.ManifestDir)
	if (f.ManifestSink == "kafka" || f.ManifestSink == "both") && f.KafkaBootstrap != "" {
		mk := manifest.NewKafkaManifest(cfg.Kafka.Brokers(), cfg.Kafka.ManifestTopic, cfg.Kafka.ManifestKey)
		if f.ManifestSink == "kafka" {
			mani = mk
		} else {
			mani = manifest.MultiPublisher(mani, mk)
		}
	}
	if err := mani.PublishLatest(manifest.ForDataset(sid, ds, offset)); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	zl.Info("snapshot and manifest published",
		zap.String("snapshot", sid),
		zap.String("dir", filepath.Join(f.SnapshotDir, sid)),
		zap.Int64("changelog_offset", offset))

	if f.Publish && f.KafkaBootstrap != "" {
		pub, err := publish.NewTxPublisher(ctx, f.KafkaBootstrap, cfg.Kafka.TransactionalID, cfg.Kafka.TopicPrefix,
			publish.WithMetrics(mreg), publish.WithLogger(zl))
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		defer pub.Close()
		if err := pub.Publish(ctx, sid, ds); err != nil {
			return fmt.Errorf("publish dataset: %w", err)
		}
	}

	if f.PostgresURL != "" {
		pool, err := pgstore.NewPool(ctx, f.PostgresURL, int32(cfg.Postgres.MaxConns))
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pgstore.CreateSchema(ctx, pool); err != nil {
			return err
		}
		if err := pgstore.NewWriter(pool, zl).WriteDataset(ctx, ds); err != nil {
			return fmt.Errorf("postgres load: %w", err)
		}
	}

	zl.Info("generation complete",
		zap.Int("stores", summary.Stores),
		zap.Int("products", summary.Products),
		zap.Int("transactions", summary.Transactions),
		zap.String("total_revenue", summary.TotalRevenue.StringFixed(2)),
		zap.Float64("disaster_uplift_pct", summary.UpliftPct))
	return nil
}
