package state

import (
	"fmt"
	"sort"
	"sync"
)

// PairState is the running sales aggregate of one store/SKU pair.
type PairState struct {
	RevenueCents int64 `json:"revenueCents"`
	Units        int64 `json:"units"`
	// LastSeq is the highest sequence applied; replays at or below it are skipped.
	LastSeq int64 `json:"lastSeq"`
}

// Store abstracts the aggregation backend.
type Store interface {
	Apply(key string, deltaRevenue int64, deltaUnits int64, seq int64) (applied bool, newState PairState, err error)
	Get(key string) (PairState, bool)
	Range(fn func(key string, st PairState) error) error
	LoadAll(all map[string]PairState)
}

// InMemoryStore is a thread-safe map store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]PairState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]PairState)}
}

// LoadAll replaces the store contents with the provided snapshot.
func (s *InMemoryStore) LoadAll(all map[string]PairState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]PairState, len(all))
	for k, v := range all {
		s.data[k] = v
	}
}

func (s *InMemoryStore) Apply(key string, deltaRevenue int64, deltaUnits int64, seq int64) (bool, PairState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.data[key]
	if seq <= st.LastSeq {
		return false, st, nil
	}
	// gaps are expected: seq is a day number and pairs do not sell every day
	st.RevenueCents += deltaRevenue
	st.Units += deltaUnits
	st.LastSeq = seq
	s.data[key] = st
	return true, st, nil
}

func (s *InMemoryStore) Get(key string) (PairState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[key]
	return st, ok
}

// Range visits keys in sorted order.
func (s *InMemoryStore) Range(fn func(key string, st PairState) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	snapshot := make(map[string]PairState, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, snapshot[k]); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

// Len returns the number of keys held.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
