package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/oops"
)

// FailFunc decides whether an operation on key should fail.
// op is one of "read", "readall", "write" or "delete".
type FailFunc func(op, key string) error

// MemStore keeps records in memory. It is used for ephemeral runs and tests.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]Record
	fail    FailFunc
	writes  int
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

// FailWith installs a failure hook. A nil hook clears it.
func (m *MemStore) FailWith(fn FailFunc) {
	m.mu.Lock()
	m.fail = fn
	m.mu.Unlock()
}

// Writes returns how many writes succeeded.
func (m *MemStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Len returns the number of stored records.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemStore) check(op, key string) error {
	if m.fail == nil {
		return nil
	}
	if err := m.fail(op, key); err != nil {
		return oops.Code("STORE_" + op).With("key", key).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return nil
}

func (m *MemStore) Read(_ context.Context, key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("read", key); err != nil {
		return Record{}, err
	}
	rec, ok := m.records[key]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	rec.Body = slices.Clone(rec.Body)
	return rec, nil
}

func (m *MemStore) ReadAll(_ context.Context, kind Kind) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("readall", string(kind)); err != nil {
		return nil, err
	}
	out := make([]Record, 0)
	for _, rec := range m.records {
		if rec.Kind == kind {
			rec.Body = slices.Clone(rec.Body)
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b Record) int { return compareKeys(a.Key, b.Key) })
	return out, nil
}

func (m *MemStore) Write(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("write", rec.Key); err != nil {
		return err
	}
	rec.Body = slices.Clone(rec.Body)
	m.records[rec.Key] = rec
	m.writes++
	return nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete", key); err != nil {
		return err
	}
	delete(m.records, key)
	return nil
}

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

// compareKeys orders keys by length first so rank_2 sorts before rank_10.
func compareKeys(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
