package changelog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"stormguard/internal/metrics"
	"stormguard/internal/model"
	"stormguard/internal/velocity"
)

// Entry is one velocity aggregation step for a store/SKU pair.
type Entry struct {
	Key     string `json:"key"`
	Seq     int64  `json:"seq"`
	Revenue int64  `json:"revenueCents"`
	Qty     int64  `json:"qty"`
	Date    string `json:"date,omitempty"`
}

func FromDelta(d velocity.Delta) Entry {
	return Entry{Key: d.Key, Seq: d.Seq, Revenue: d.RevenueCents, Qty: d.Units, Date: model.FormatDate(d.Date)}
}

// Delta converts the entry back into an aggregation step.
func (e Entry) Delta() (velocity.Delta, error) {
	d := velocity.Delta{Key: e.Key, Seq: e.Seq, RevenueCents: e.Revenue, Units: e.Qty}
	if e.Date != "" {
		t, err := model.ParseDate(e.Date)
		if err != nil {
			return velocity.Delta{}, fmt.Errorf("entry %s seq=%d: %w", e.Key, e.Seq, err)
		}
		d.Date = t
	}
	return d, nil
}

// FromSales converts sale records in their given order.
func FromSales(sales []model.SaleRecord) []Entry {
	out := make([]Entry, len(sales))
	for i, s := range sales {
		out[i] = FromDelta(velocity.DeltaFor(s))
	}
	return out
}

type Writer interface {
	Append(entries ...Entry) error
}

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(entries ...Entry) error {
	for _, w := range m.writers {
		if err := w.Append(entries...); err != nil {
			return err
		}
	}
	return nil
}

// FileWriter appends JSON lines. Its offset is the number of lines in the
// file, which is what restore skips past.
type FileWriter struct {
	mu     sync.Mutex
	path   string
	offset int64
}

func NewFileWriter(dir string, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	w := &FileWriter{path: filepath.Join(dir, filename)}
	n, err := CountLines(w.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	w.offset = n
	return w, nil
}

func (w *FileWriter) Path() string { return w.path }

// Offset returns the number of entries in the file.
func (w *FileWriter) Offset() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}

func (w *FileWriter) Append(entries ...Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	w.offset += int64(len(entries))
	return nil
}

// CountLines counts newline-terminated entries in path.
func CountLines(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	var n int64
	for sc.Scan() {
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("scan %s: %w", path, err)
	}
	return n, nil
}

// KafkaWriter publishes entries to a Kafka topic keyed by pair. Pure-Go client (segmentio/kafka-go).
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a Kafka writer.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaWriter(bootstrap string, topic string) *KafkaWriter {
	addrs := strings.Split(bootstrap, ",")
	var brokers []string
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

func (k *KafkaWriter) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(entries))
	for i := range entries {
		b, err := json.Marshal(&entries[i])
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(entries[i].Key), Value: b})
	}
	return k.writer.WriteMessages(context.Background(), msgs...)
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}

// Journal adapts a Writer to velocity.Journal.
type Journal struct {
	w       Writer
	metrics *metrics.Registry
}

func NewJournal(w Writer, m *metrics.Registry) *Journal {
	return &Journal{w: w, metrics: m}
}

func (j *Journal) Record(deltas ...velocity.Delta) error {
	entries := make([]Entry, len(deltas))
	for i, d := range deltas {
		entries[i] = FromDelta(d)
	}
	if err := j.w.Append(entries...); err != nil {
		return fmt.Errorf("append changelog: %w", err)
	}
	if j.metrics != nil {
		j.metrics.ChangelogAppended.Add(float64(len(entries)))
	}
	return nil
}
