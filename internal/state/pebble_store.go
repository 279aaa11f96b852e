package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store on an embedded Pebble database, for
// aggregation runs that should survive a restart.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		// write-heavy bulk loads: one Apply per sale row
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    12,
		WALBytesPerSync:          1 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func encodePairState(st PairState) ([]byte, error) { return json.Marshal(st) }

func decodePairState(val []byte) (PairState, error) {
	var st PairState
	if err := json.Unmarshal(val, &st); err != nil {
		return PairState{}, err
	}
	return st, nil
}

func (p *PebbleStore) read(k []byte) (PairState, bool, error) {
	v, closer, err := p.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return PairState{}, false, nil
	}
	if err != nil {
		return PairState{}, false, err
	}
	defer closer.Close()
	st, err := decodePairState(v)
	if err != nil {
		return PairState{}, false, fmt.Errorf("decode %s: %w", k, err)
	}
	return st, true, nil
}

func (p *PebbleStore) Apply(key string, deltaRevenue int64, deltaUnits int64, seq int64) (bool, PairState, error) {
	k := []byte(key)
	cur, _, err := p.read(k)
	if err != nil {
		return false, PairState{}, err
	}
	if seq <= cur.LastSeq {
		return false, cur, nil
	}
	cur.RevenueCents += deltaRevenue
	cur.Units += deltaUnits
	cur.LastSeq = seq
	b, err := encodePairState(cur)
	if err != nil {
		return false, PairState{}, err
	}
	if err := p.db.Set(k, b, pebble.NoSync); err != nil {
		return false, PairState{}, err
	}
	return true, cur, nil
}

func (p *PebbleStore) Get(key string) (PairState, bool) {
	st, ok, err := p.read([]byte(key))
	if err != nil {
		return PairState{}, false
	}
	return st, ok
}

// Range visits keys in byte order.
func (p *PebbleStore) Range(fn func(key string, st PairState) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := string(it.Key())
		st, err := decodePairState(it.Value())
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		if err := fn(k, st); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return it.Error()
}

// LoadAll replaces every key with the given snapshot in a single batch.
func (p *PebbleStore) LoadAll(all map[string]PairState) {
	wb := p.db.NewBatch()
	defer wb.Close()
	// DeleteRange over the whole keyspace; keys are printable ASCII
	_ = wb.DeleteRange([]byte{0x00}, []byte{0xff}, nil)
	for k, st := range all {
		b, err := encodePairState(st)
		if err != nil {
			continue
		}
		_ = wb.Set([]byte(k), b, nil)
	}
	_ = wb.Commit(pebble.Sync)
}

// Flush forces buffered writes to disk.
func (p *PebbleStore) Flush() error { return p.db.Flush() }
