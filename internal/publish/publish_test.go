package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/shopspring/decimal"

	"stormguard/internal/metrics"
	"stormguard/internal/model"
)

// fakeProducer records the transaction lifecycle.
type fakeProducer struct {
	msgs      []*ck.Message
	calls     []string
	failAfter int // fail Produce once this many messages were accepted; 0 disables
	commitErr error
	unflushed int
}

func (f *fakeProducer) InitTransactions(ctx context.Context) error {
	f.calls = append(f.calls, "init")
	return nil
}

func (f *fakeProducer) BeginTransaction() error {
	f.calls = append(f.calls, "begin")
	return nil
}

func (f *fakeProducer) Produce(msg *ck.Message, _ chan ck.Event) error {
	if f.failAfter > 0 && len(f.msgs) >= f.failAfter {
		return errors.New("queue full")
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeProducer) Flush(int) int { return f.unflushed }

func (f *fakeProducer) CommitTransaction(ctx context.Context) error {
	f.calls = append(f.calls, "commit")
	return f.commitErr
}

func (f *fakeProducer) AbortTransaction(ctx context.Context) error {
	f.calls = append(f.calls, "abort")
	return nil
}

func (f *fakeProducer) Close() {}

func (f *fakeProducer) last() string { return f.calls[len(f.calls)-1] }

func dataset() *model.Dataset {
	return &model.Dataset{
		Stores:   []model.Store{{StoreID: 1}, {StoreID: 2}},
		Products: []model.Product{{SKU: "SKU-0001", BasePrice: decimal.RequireFromString("2.50")}},
		Sales: []model.SaleRecord{{
			Date: model.MustDate("2024-10-08"), StoreID: 1, SKU: "SKU-0001", QuantitySold: 2,
			UnitPrice: decimal.RequireFromString("2.50"), Revenue: decimal.RequireFromString("5.00"),
		}},
		Inventory: []model.InventoryRecord{{StoreID: 1, SKU: "SKU-0001", OnHandQty: 4}},
		Events:    []model.KnownEvent{{Date: model.MustDate("2024-10-09"), Label: "landfall"}},
	}
}

func TestPublish_CommitsAllTables(t *testing.T) {
	fp := &fakeProducer{}
	reg := metrics.NewRegistry()
	pub := NewTxPublisherWith(fp, "stormguard.", WithMetrics(reg))
	if err := pub.Publish(context.Background(), "sid", dataset()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fp.msgs) != 6 || fp.calls[0] != "begin" || fp.last() != "commit" {
		t.Fatalf("msgs=%d calls=%v", len(fp.msgs), fp.calls)
	}
	byTopic := map[string]int{}
	for _, m := range fp.msgs {
		byTopic[*m.TopicPartition.Topic]++
		if len(m.Headers) != 1 || string(m.Headers[0].Value) != "sid" {
			t.Fatalf("headers %v", m.Headers)
		}
	}
	if byTopic["stormguard.stores"] != 2 || byTopic["stormguard.sales_history"] != 1 || byTopic["stormguard.known_events"] != 1 {
		t.Fatalf("topics %v", byTopic)
	}

	sale := fp.msgs[3]
	if string(sale.Key) != "1#SKU-0001#2024-10-08" {
		t.Fatalf("sale key %s", sale.Key)
	}
	var row map[string]any
	if err := json.Unmarshal(sale.Value, &row); err != nil || row["revenue"] != "5" {
		t.Fatalf("sale payload %s: %v", sale.Value, err)
	}

	families, _ := reg.Gatherer().Gather()
	for _, f := range families {
		if f.GetName() == "stormguard_tx_produced_total" && f.GetMetric()[0].GetCounter().GetValue() != 6 {
			t.Fatalf("produced counter %v", f.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestPublish_AbortsOnFailure(t *testing.T) {
	cases := map[string]*fakeProducer{
		"produce": {failAfter: 3},
		"flush":   {unflushed: 2},
		"commit":  {commitErr: errors.New("fenced")},
	}
	for name, fp := range cases {
		t.Run(name, func(t *testing.T) {
			pub := NewTxPublisherWith(fp, "")
			if err := pub.Publish(context.Background(), "sid", dataset()); err == nil {
				t.Fatalf("expected error")
			}
			if fp.last() != "abort" {
				t.Fatalf("calls %v", fp.calls)
			}
		})
	}
}

func TestPublish_CanceledContextAborts(t *testing.T) {
	fp := &fakeProducer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTxPublisherWith(fp, "").Publish(ctx, "sid", dataset())
	if !errors.Is(err, context.Canceled) || len(fp.msgs) != 0 || fp.last() != "abort" {
		t.Fatalf("err=%v msgs=%d calls=%v", err, len(fp.msgs), fp.calls)
	}
}
