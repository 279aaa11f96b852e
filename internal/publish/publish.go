package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"stormguard/internal/metrics"
	"stormguard/internal/model"
	"stormguard/internal/velocity"
)

// Table names, appended to the topic prefix.
const (
	TableStores    = "stores"
	TableProducts  = "products"
	TableSales     = "sales_history"
	TableInventory = "inventory"
	TableEvents    = "known_events"
	TableStorm     = "hurricane_track"
)

// HeaderSnapshotID carries the snapshot id on every published record.
const HeaderSnapshotID = "snapshot_id"

const flushTimeoutMs = 15000

// txProducer is the subset of *ck.Producer used here.
type txProducer interface {
	InitTransactions(ctx context.Context) error
	BeginTransaction() error
	Produce(msg *ck.Message, deliveryChan chan ck.Event) error
	Flush(timeoutMs int) int
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	Close()
}

// TxPublisher publishes a whole dataset inside one Kafka transaction, so
// read_committed consumers see every table or none.
type TxPublisher struct {
	p       txProducer
	prefix  string
	metrics *metrics.Registry
	log     *zap.Logger
}

type Option func(*TxPublisher)

func WithMetrics(m *metrics.Registry) Option { return func(t *TxPublisher) { t.metrics = m } }

func WithLogger(l *zap.Logger) Option {
	return func(t *TxPublisher) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTxPublisher creates an idempotent transactional producer and
// initialises its transactions.
func NewTxPublisher(ctx context.Context, bootstrap, transactionalID, topicPrefix string, opts ...Option) (*TxPublisher, error) {
	prod, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
		"transactional.id":   transactionalID,
	})
	if err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	if err := prod.InitTransactions(ctx); err != nil {
		prod.Close()
		return nil, fmt.Errorf("init tx: %w", err)
	}
	return NewTxPublisherWith(prod, topicPrefix, opts...), nil
}

// NewTxPublisherWith wraps an already initialised producer. Tests inject fakes here.
func NewTxPublisherWith(p txProducer, topicPrefix string, opts ...Option) *TxPublisher {
	t := &TxPublisher{p: p, prefix: topicPrefix, log: zap.NewNop()}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *TxPublisher) Close() { t.p.Close() }

// Topic returns the topic a table is published to.
func (t *TxPublisher) Topic(table string) string { return t.prefix + table }

type record struct {
	key   string
	value any
}

func tables(ds *model.Dataset) []struct {
	name string
	rows []record
} {
	out := []struct {
		name string
		rows []record
	}{
		{TableStores, nil}, {TableProducts, nil}, {TableSales, nil},
		{TableInventory, nil}, {TableEvents, nil}, {TableStorm, nil},
	}
	for _, s := range ds.Stores {
		out[0].rows = append(out[0].rows, record{strconv.Itoa(s.StoreID), s})
	}
	for _, p := range ds.Products {
		out[1].rows = append(out[1].rows, record{p.SKU, p})
	}
	for _, s := range ds.Sales {
		out[2].rows = append(out[2].rows, record{velocity.PairKey(s.StoreID, s.SKU) + "#" + model.FormatDate(s.Date), s})
	}
	for _, r := range ds.Inventory {
		out[3].rows = append(out[3].rows, record{velocity.PairKey(r.StoreID, r.SKU), r})
	}
	for _, e := range ds.Events {
		out[4].rows = append(out[4].rows, record{model.FormatDate(e.Date), e})
	}
	for _, o := range ds.StormTrack {
		out[5].rows = append(out[5].rows, record{model.FormatDate(o.Date), o})
	}
	return out
}

// Publish sends every table of ds in a single transaction. On any failure
// the transaction is aborted and the error returned.
func (t *TxPublisher) Publish(ctx context.Context, snapshotID string, ds *model.Dataset) error {
	start := time.Now()
	if err := t.p.BeginTransaction(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	headers := []ck.Header{{Key: HeaderSnapshotID, Value: []byte(snapshotID)}}
	produced := 0
	for _, tbl := range tables(ds) {
		topic := t.Topic(tbl.name)
		for _, r := range tbl.rows {
			if err := ctx.Err(); err != nil {
				return t.abort(ctx, err)
			}
			b, err := json.Marshal(r.value)
			if err != nil {
				return t.abort(ctx, fmt.Errorf("marshal %s %s: %w", tbl.name, r.key, err))
			}
			msg := &ck.Message{
				TopicPartition: ck.TopicPartition{Topic: &topic, Partition: ck.PartitionAny},
				Key:            []byte(r.key),
				Value:          b,
				Headers:        headers,
			}
			if err := t.p.Produce(msg, nil); err != nil {
				return t.abort(ctx, fmt.Errorf("produce %s: %w", tbl.name, err))
			}
			produced++
		}
	}
	if left := t.p.Flush(flushTimeoutMs); left > 0 {
		return t.abort(ctx, fmt.Errorf("flush: %d messages undelivered", left))
	}
	if err := t.p.CommitTransaction(ctx); err != nil {
		return t.abort(ctx, fmt.Errorf("commit tx: %w", err))
	}
	if t.metrics != nil {
		t.metrics.TxProduced.Add(float64(produced))
		t.metrics.TxLatencySec.Observe(time.Since(start).Seconds())
	}
	t.log.Info("published dataset", zap.String("snapshot", snapshotID), zap.Int("records", produced))
	return nil
}

func (t *TxPublisher) abort(ctx context.Context, cause error) error {
	// the abort must run even when ctx is what failed
	if err := t.p.AbortTransaction(context.WithoutCancel(ctx)); err != nil {
		t.log.Error("abort tx", zap.Error(err))
	}
	if t.metrics != nil {
		t.metrics.TxAborted.Inc()
	}
	return cause
}
