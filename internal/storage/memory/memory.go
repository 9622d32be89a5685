// Package memory is an in-process record backend, used as the test double
// and selectable with storage.driver: memory.
package memory

import (
	"context"
	"sync"

	"mention_collector/internal/domain"
	"mention_collector/internal/storage"
)

type KV struct {
	mu      sync.RWMutex
	records map[string]domain.Record
}

func New() *KV {
	return &KV{records: make(map[string]domain.Record)}
}

func (m *KV) Hash(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return "", false, nil
	}
	return rec.ContentHash, true, nil
}

func (m *KV) Insert(_ context.Context, rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.Key()]; ok {
		return storage.ErrConflict
	}
	m.records[rec.Key()] = rec
	return nil
}

func (m *KV) Replace(_ context.Context, rec domain.Record, expectedHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.records[rec.Key()]
	if !ok || cur.ContentHash != expectedHash {
		return storage.ErrConflict
	}
	m.records[rec.Key()] = rec
	return nil
}

// Get returns the stored record.
func (m *KV) Get(key string) (domain.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	return rec, ok
}

func (m *KV) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *KV) Ping(_ context.Context) error {
	return nil
}
