package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"stormguard/internal/config"
	"stormguard/internal/logger"
	"stormguard/internal/manifest"
	"stormguard/internal/metrics"
	"stormguard/internal/restore"
	"stormguard/internal/state"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	var (
		bootstrap       string
		manifestSource  string
		changelogSource string
		manifestDir     string
		snapshotDir     string
		changelogPath   string
		stateBackend    string
		pebbleDir       string
		httpAddr        string
		pollIntervalSec int
		once            bool
	)
	flag.StringVar(&bootstrap, "bootstrap", cfg.Kafka.Bootstrap, "kafka bootstrap")
	flag.StringVar(&manifestSource, "manifest-source", "file", "file|kafka")
	flag.StringVar(&changelogSource, "changelog-source", "file", "file|kafka")
	flag.StringVar(&manifestDir, "manifest-dir", cfg.Output.ManifestDir, "manifest dir for file mode")
	flag.StringVar(&snapshotDir, "snapshot-dir", cfg.Output.SnapshotDir, "snapshot dir")
	flag.StringVar(&changelogPath, "changelog", filepath.Join(cfg.Output.ChangelogDir, "sales.jsonl"), "changelog file for file mode")
	flag.StringVar(&stateBackend, "state-backend", cfg.State.Backend, "memory|pebble")
	flag.StringVar(&pebbleDir, "pebble-dir", filepath.Join(cfg.State.PebbleDir, "recovered"), "pebble dir for the recovered state")
	flag.StringVar(&httpAddr, "http", cfg.Metrics.Addr, "http listen for /metrics")
	flag.IntVar(&pollIntervalSec, "poll", 10, "poll interval seconds for manifest")
	flag.BoolVar(&once, "once", false, "run a single recovery cycle and exit")
	flag.Parse()

	zl, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	mreg := metrics.NewRegistry()
	if httpAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mreg.Handler())
			if err := http.ListenAndServe(httpAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Error("metrics server", zap.Error(err))
			}
		}()
	}

	var mReader manifest.Reader
	if manifestSource == "kafka" {
		kr := manifest.NewKafkaReader(cfg.Kafka.Brokers(), cfg.Kafka.ManifestTopic, cfg.Kafka.ManifestKey)
		defer kr.Close()
		mReader = kr
	} else {
		mReader = manifest.NewFilesystemManifest(manifestDir)
	}
	if bootstrap != "" {
		cfg.Kafka.Bootstrap = bootstrap
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(pollIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		if err := cycle(cfg, mReader, mreg, zl, cycleOptions{
			changelogSource: changelogSource,
			changelogPath:   changelogPath,
			snapshotDir:     snapshotDir,
			stateBackend:    stateBackend,
			pebbleDir:       pebbleDir,
		}); err != nil {
			zl.Error("recovery cycle", zap.Error(err))
		}
		if once {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type cycleOptions struct {
	changelogSource string
	changelogPath   string
	snapshotDir     string
	stateBackend    string
	pebbleDir       string
}

// cycle restores into a fresh state store each time.
func cycle(cfg *config.Config, mReader manifest.Reader, mreg *metrics.Registry, zl *zap.Logger, o cycleOptions) error {
	t1 := time.Now()
	var st state.Store
	if o.stateBackend == "pebble" {
		ps, err := state.NewPebbleStore(o.pebbleDir)
		if err != nil {
			return err
		}
		defer ps.Close()
		st = ps
	} else {
		st = state.NewInMemoryStore()
	}

	r := restore.NewRestorer(st, mReader, o.snapshotDir,
		restore.WithChangelogPath(o.changelogPath),
		restore.WithMetrics(mreg),
		restore.WithLogger(zl))

	var res restore.RestoreResult
	if o.changelogSource == "kafka" && cfg.Kafka.Bootstrap != "" {
		m, err := mReader.ReadLatest()
		if err != nil {
			return err
		}
		if err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
			return err
		}
		res = r.ReplayChangelogKafka(cfg.Kafka.Brokers(), cfg.Kafka.ChangelogTopic, m.LastChangelogOffset)
		res.Manifest = m
		if res.Error != nil {
			return res.Error
		}
		if head := headOffset(cfg.Kafka.ChangelogTopic, cfg.Kafka.Brokers()); head >= 0 {
			// kafka offsets are 0-based, LastAppliedOffset counts messages
			mreg.Lag.Set(float64(head + 1 - res.LastAppliedOffset))
		}
		mreg.TTRSec.Set(time.Since(t1).Seconds())
		mreg.LastManifestAgeSec.Set(m.Age(time.Now()).Seconds())
	} else {
		var err error
		if res, err = r.RestoreAndReplay(); err != nil {
			return err
		}
	}

	zl.Info("recovery cycle",
		zap.String("snapshot", res.Manifest.SnapshotID),
		zap.Int("applied", res.Applied),
		zap.Int("skipped", res.Skipped),
		zap.Int64("last_offset", res.LastAppliedOffset),
		zap.Duration("ttr", time.Since(t1)))
	return nil
}

// headOffset returns the last (high-watermark - 1) offset of partition 0 for a topic
func headOffset(topic string, brokers []string) int64 {
	if len(brokers) == 0 {
		return -1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := kafka.DialLeader(ctx, "tcp", brokers[0], topic, 0)
	if err != nil {
		return -1
	}
	defer conn.Close()
	off, err := conn.ReadLastOffset()
	if err != nil {
		return -1
	}
	return off - 1
}
