package changelog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"stormguard/internal/metrics"
	"stormguard/internal/model"
	"stormguard/internal/velocity"
)

func TestFileWriter_Append(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "sales.jsonl")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}

	e1 := Entry{Key: "1#SKU-0001", Seq: 19700, Revenue: 1000, Qty: 2, Date: "2023-12-09"}
	e2 := Entry{Key: "2#SKU-0002", Seq: 19701, Revenue: 250, Qty: 1, Date: "2023-12-10"}
	if err := w.Append(e1); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := w.Append(e2); err != nil {
		t.Fatalf("append2: %v", err)
	}
	if w.Offset() != 2 {
		t.Fatalf("offset=%d want 2", w.Offset())
	}

	f, err := os.Open(filepath.Join(dir, "sales.jsonl"))
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	var got []Entry
	for s.Scan() {
		var e Entry
		if err := json.Unmarshal(s.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, e)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0] != e1 || got[1] != e2 {
		t.Fatalf("mismatch: %+v", got)
	}

	// reopening resumes the offset
	w2, err := NewFileWriter(dir, "sales.jsonl")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if w2.Offset() != 2 {
		t.Fatalf("reopened offset=%d", w2.Offset())
	}
}

func TestEntry_DeltaRoundTrip(t *testing.T) {
	sale := model.SaleRecord{
		Date:         model.MustDate("2024-10-09"),
		StoreID:      3,
		SKU:          "SKU-0007",
		QuantitySold: 4,
		Revenue:      decimal.RequireFromString("19.96"),
	}
	entries := FromSales([]model.SaleRecord{sale})
	if len(entries) != 1 {
		t.Fatalf("entries=%d", len(entries))
	}
	e := entries[0]
	if e.Key != "3#SKU-0007" || e.Revenue != 1996 || e.Qty != 4 || e.Date != "2024-10-09" {
		t.Fatalf("entry %+v", e)
	}
	d, err := e.Delta()
	if err != nil {
		t.Fatalf("delta: %v", err)
	}
	want := velocity.DeltaFor(sale)
	if d.Key != want.Key || d.Seq != want.Seq || d.RevenueCents != want.RevenueCents || d.Units != want.Units || !d.Date.Equal(want.Date) {
		t.Fatalf("delta %+v want %+v", d, want)
	}
	if _, err := (Entry{Key: "k", Date: "10/09/2024"}).Delta(); err == nil {
		t.Fatalf("expected date error")
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaWriter_Append_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	kw := NewKafkaWriterWith(fk)
	e := Entry{Key: "1#SKU-0001", Seq: 1, Revenue: 10, Qty: 1}
	if err := kw.Append(e, Entry{Key: "2#SKU-0001", Seq: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fk.msgs) != 2 {
		t.Fatalf("want 2 msgs, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != e.Key {
		t.Fatalf("bad key: %s", string(fk.msgs[0].Key))
	}
	if err := kw.Append(); err != nil || len(fk.msgs) != 2 {
		t.Fatalf("empty append should be a no-op")
	}
}

func TestKafkaWriter_Append_Fail(t *testing.T) {
	fk := &fakeKafkaWriter{fail: true}
	kw := NewKafkaWriterWith(fk)
	if err := kw.Append(Entry{Key: "1#SKU-0001", Seq: 1}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestJournal_RecordsToAllWriters(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWriter(dir, "sales.jsonl")
	if err != nil {
		t.Fatalf("file writer: %v", err)
	}
	fk := &fakeKafkaWriter{}
	reg := metrics.NewRegistry()
	j := NewJournal(NewMultiWriter(fw, NewKafkaWriterWith(fk)), reg)

	deltas := []velocity.Delta{
		{Key: "1#A", Seq: 10, RevenueCents: 100, Units: 1, Date: model.MustDate("1970-01-11")},
		{Key: "1#B", Seq: 10, RevenueCents: 200, Units: 2, Date: model.MustDate("1970-01-11")},
	}
	if err := j.Record(deltas...); err != nil {
		t.Fatalf("record: %v", err)
	}
	if fw.Offset() != 2 || len(fk.msgs) != 2 {
		t.Fatalf("file=%d kafka=%d", fw.Offset(), len(fk.msgs))
	}

	fk.fail = true
	if err := j.Record(deltas[0]); err == nil {
		t.Fatalf("expected kafka failure to surface")
	}
}
