package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"stormguard/internal/model"
)

const latestFile = "manifest.latest.json"

// ErrNotFound is returned when no manifest has been published yet.
var ErrNotFound = errors.New("manifest not found")

// Manifest points at the latest snapshot and records what produced it.
// LastChangelogOffset is the number of changelog entries already folded into
// the snapshot's velocity state.
type Manifest struct {
	SnapshotID           string          `json:"snapshotId"`
	Seed                 int64           `json:"seed"`
	Start                string          `json:"start"`
	End                  string          `json:"end"`
	Stores               int             `json:"stores"`
	Products             int             `json:"products"`
	SalesRows            int             `json:"salesRows"`
	InventoryRows        int             `json:"inventoryRows"`
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	LastChangelogOffset  int64           `json:"lastChangelogOffset"`
	CreatedAtEpochSecond int64           `json:"createdAt"`
}

// ForDataset fills the dataset-derived fields.
func ForDataset(snapshotID string, ds *model.Dataset, lastChangelogOffset int64) Manifest {
	return Manifest{
		SnapshotID:          snapshotID,
		Seed:                ds.Seed,
		Start:               model.FormatDate(ds.Start),
		End:                 model.FormatDate(ds.End),
		Stores:              len(ds.Stores),
		Products:            len(ds.Products),
		SalesRows:           len(ds.Sales),
		InventoryRows:       len(ds.Inventory),
		TotalRevenue:        ds.TotalRevenue(),
		LastChangelogOffset: lastChangelogOffset,
	}
}

// Age is how long ago the manifest was published.
func (m Manifest) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(m.CreatedAtEpochSecond, 0))
}

type Publisher interface {
	PublishLatest(m Manifest) error
}

// MultiPublisher writes to multiple publishers sequentially.
type MultiPublisherImpl struct {
	pubs []Publisher
}

func MultiPublisher(pubs ...Publisher) Publisher {
	return &MultiPublisherImpl{pubs: pubs}
}

func (m *MultiPublisherImpl) PublishLatest(man Manifest) error {
	stamp(&man)
	for _, p := range m.pubs {
		if err := p.PublishLatest(man); err != nil {
			return err
		}
	}
	return nil
}

func stamp(m *Manifest) {
	if m.CreatedAtEpochSecond == 0 {
		m.CreatedAtEpochSecond = time.Now().UTC().Unix()
	}
}

type Reader interface {
	ReadLatest() (Manifest, error)
}

type FilesystemManifest struct {
	baseDir string
}

func NewFilesystemManifest(baseDir string) *FilesystemManifest {
	return &FilesystemManifest{baseDir: baseDir}
}

func (f *FilesystemManifest) PublishLatest(m Manifest) error {
	if err := os.MkdirAll(f.baseDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	stamp(&m)
	// write-then-rename so readers never see a partial manifest
	file := filepath.Join(f.baseDir, latestFile)
	tmp := file + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&m); err != nil {
		out.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (f *FilesystemManifest) ReadLatest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.baseDir, latestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, ErrNotFound
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}

// KafkaManifest publishes manifest.latest as a compacted Kafka record.
type KafkaManifest struct {
	writer kafkaMessageWriter
	key    []byte
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaManifest creates a Kafka manifest publisher. key is typically
// "stormguard-manifest-latest".
func NewKafkaManifest(brokers []string, topic string, key string) *KafkaManifest {
	return &KafkaManifest{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}, key: []byte(key)}
}

func (k *KafkaManifest) PublishLatest(m Manifest) error {
	stamp(&m)
	b, err := json.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(context.Background(), kafka.Message{Key: k.key, Value: b})
}

// NewKafkaManifestWith is only for tests to inject a fake writer.
func NewKafkaManifestWith(w kafkaMessageWriter, key string) *KafkaManifest {
	return &KafkaManifest{writer: w, key: []byte(key)}
}

// KafkaReader reads the latest manifest record for a key from a compacted
// topic, scanning partition 0 until the read timeout.
type KafkaReader struct {
	reader  kafkaMessageReader
	key     []byte
	timeout time.Duration
}

type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func NewKafkaReader(brokers []string, topic string, key string) *KafkaReader {
	return &KafkaReader{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:   brokers,
			Topic:     topic,
			Partition: 0,
			MinBytes:  1,
			MaxBytes:  10e6,
		}),
		key:     []byte(key),
		timeout: 10 * time.Second,
	}
}

// NewKafkaReaderWith is only for tests to inject a fake reader.
func NewKafkaReaderWith(r kafkaMessageReader, key string, timeout time.Duration) *KafkaReader {
	return &KafkaReader{reader: r, key: []byte(key), timeout: timeout}
}

func (k *KafkaReader) Close() error { return k.reader.Close() }

func (k *KafkaReader) ReadLatest() (Manifest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	var last Manifest
	found := false
	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return Manifest{}, fmt.Errorf("read kafka: %w", err)
		}
		if string(msg.Key) != string(k.key) {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(msg.Value, &m); err != nil {
			return Manifest{}, fmt.Errorf("unmarshal kafka manifest: %w", err)
		}
		last, found = m, true
	}
	if !found {
		return Manifest{}, ErrNotFound
	}
	return last, nil
}
