package restore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"stormguard/internal/changelog"
	"stormguard/internal/manifest"
	"stormguard/internal/metrics"
	"stormguard/internal/model"
	"stormguard/internal/snapshot"
	"stormguard/internal/state"
	"stormguard/internal/velocity"
)

// DefaultChangelogPath is where generate writes the file changelog by default.
var DefaultChangelogPath = filepath.Join("changelog", "sales.jsonl")

type Restorer struct {
	stateStore      state.Store
	manifestReader  manifest.Reader
	snapshotBaseDir string
	changelogPath   string
	metrics         *metrics.Registry
	log             *zap.Logger
}

type Option func(*Restorer)

// WithChangelogPath sets the file RestoreAndReplay replays from.
func WithChangelogPath(path string) Option {
	return func(r *Restorer) { r.changelogPath = path }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(r *Restorer) { r.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Restorer) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRestorer(st state.Store, mr manifest.Reader, snapshotBaseDir string, opts ...Option) *Restorer {
	r := &Restorer{
		stateStore:      st,
		manifestReader:  mr,
		snapshotBaseDir: snapshotBaseDir,
		changelogPath:   DefaultChangelogPath,
		log:             zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type RestoreResult struct {
	Manifest manifest.Manifest
	// Entries counts changelog lines read past the offset.
	Entries int
	Applied int
	Skipped int
	// LastAppliedOffset is the 1-based position of the last entry read, or
	// the starting offset when nothing was read.
	LastAppliedOffset int64
	Error             error
}

// RestoreFromSnapshot loads the snapshot's velocity state into the store. A
// snapshot without velocity_state.json leaves the store untouched.
func (r *Restorer) RestoreFromSnapshot(snapshotID string) error {
	if snapshotID == "" {
		return nil
	}
	dir := filepath.Join(r.snapshotBaseDir, snapshotID)
	dump, ok, err := snapshot.ReadState(dir)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if !ok {
		r.log.Warn("restore: snapshot has no velocity state, skipping", zap.String("dir", dir))
		return nil
	}
	r.stateStore.LoadAll(dump)
	r.log.Info("restore: loaded velocity state", zap.Int("keys", len(dump)), zap.String("snapshot", snapshotID))
	return nil
}

// LoadDataset reads the snapshot tables named by m and checks them against
// the row counts the manifest recorded. Seed and the date range come from m.
func (r *Restorer) LoadDataset(m manifest.Manifest) (*model.Dataset, error) {
	if m.SnapshotID == "" {
		return nil, fmt.Errorf("manifest has no snapshot id")
	}
	ds, err := snapshot.ReadDataset(filepath.Join(r.snapshotBaseDir, m.SnapshotID))
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", m.SnapshotID, err)
	}
	ds.Seed = m.Seed
	// the generation range can start or end on a day with no sales
	if m.Start != "" {
		if ds.Start, err = model.ParseDate(m.Start); err != nil {
			return nil, fmt.Errorf("manifest start: %w", err)
		}
	}
	if m.End != "" {
		if ds.End, err = model.ParseDate(m.End); err != nil {
			return nil, fmt.Errorf("manifest end: %w", err)
		}
	}
	checks := []struct {
		table     string
		got, want int
	}{
		{"stores", len(ds.Stores), m.Stores},
		{"products", len(ds.Products), m.Products},
		{"sales_history", len(ds.Sales), m.SalesRows},
		{"inventory", len(ds.Inventory), m.InventoryRows},
	}
	for _, c := range checks {
		if c.got != c.want {
			return nil, fmt.Errorf("snapshot %s: %s has %d rows, manifest says %d", m.SnapshotID, c.table, c.got, c.want)
		}
	}
	return ds, nil
}

func (r *Restorer) apply(res *RestoreResult, e changelog.Entry, size int) error {
	d, err := e.Delta()
	if err != nil {
		return err
	}
	ok, err := velocity.Apply(r.stateStore, d)
	if err != nil {
		return err
	}
	res.Entries++
	if ok {
		res.Applied++
	} else {
		res.Skipped++
	}
	if r.metrics != nil {
		r.metrics.ReplayBytes.Add(float64(size))
		if ok {
			r.metrics.Applied.Inc()
		} else {
			r.metrics.Skipped.Inc()
		}
	}
	return nil
}

// ReplayChangelog applies the entries of a JSON-lines changelog that come
// after fromOffset. Entries at or below a pair's LastSeq are skipped.
func (r *Restorer) ReplayChangelog(changelogPath string, fromOffset int64) RestoreResult {
	res := RestoreResult{LastAppliedOffset: fromOffset}
	file, err := os.Open(changelogPath)
	if err != nil {
		res.Error = fmt.Errorf("open changelog: %w", err)
		return res
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lineNum int64
	for scanner.Scan() {
		lineNum++
		if lineNum <= fromOffset {
			continue
		}
		var e changelog.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			res.Error = fmt.Errorf("unmarshal line %d: %w", lineNum, err)
			return res
		}
		if err := r.apply(&res, e, len(scanner.Bytes())+1); err != nil {
			res.Error = fmt.Errorf("apply line %d: %w", lineNum, err)
			return res
		}
		res.LastAppliedOffset = lineNum
	}
	if err := scanner.Err(); err != nil {
		res.Error = fmt.Errorf("scan changelog: %w", err)
	}
	return res
}

type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReplayChangelogKafka consumes entries from partition 0 of topic and applies
// them. fromOffset is a message count, matching the file changelog's offset.
func (r *Restorer) ReplayChangelogKafka(brokers []string, topic string, fromOffset int64) RestoreResult {
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	return r.ReplayFrom(rd, fromOffset, 20*time.Second)
}

// ReplayFrom drains rd until idle for the given timeout. It closes rd.
func (r *Restorer) ReplayFrom(rd kafkaMessageReader, fromOffset int64, timeout time.Duration) RestoreResult {
	defer rd.Close()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res := RestoreResult{LastAppliedOffset: fromOffset}
	var idx int64
	for {
		m, err := rd.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			res.Error = fmt.Errorf("read kafka: %w", err)
			return res
		}
		idx++
		if idx <= fromOffset {
			continue
		}
		var e changelog.Entry
		if err := json.Unmarshal(m.Value, &e); err != nil {
			res.Error = fmt.Errorf("unmarshal entry %d: %w", idx, err)
			return res
		}
		if err := r.apply(&res, e, len(m.Value)); err != nil {
			res.Error = fmt.Errorf("apply entry %d: %w", idx, err)
			return res
		}
		res.LastAppliedOffset = idx
	}
	return res
}

// RestoreAndReplay reads the latest manifest, restores its snapshot and
// replays the file changelog past the manifest offset.
func (r *Restorer) RestoreAndReplay() (RestoreResult, error) {
	start := time.Now()
	m, err := r.manifestReader.ReadLatest()
	if err != nil {
		return RestoreResult{}, fmt.Errorf("read manifest: %w", err)
	}
	if err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
		return RestoreResult{Manifest: m}, fmt.Errorf("restore snapshot: %w", err)
	}

	var result RestoreResult
	if _, err := os.Stat(r.changelogPath); os.IsNotExist(err) {
		r.log.Warn("restore: no changelog, snapshot state only", zap.String("path", r.changelogPath))
		result = RestoreResult{LastAppliedOffset: m.LastChangelogOffset}
	} else {
		result = r.ReplayChangelog(r.changelogPath, m.LastChangelogOffset)
	}
	result.Manifest = m
	if r.metrics != nil {
		r.metrics.TTRSec.Set(time.Since(start).Seconds())
		r.metrics.LastManifestAgeSec.Set(m.Age(time.Now()).Seconds())
	}
	r.log.Info("restore: replay finished",
		zap.String("snapshot", m.SnapshotID),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Duration("ttr", time.Since(start)))
	return result, result.Error
}
