package routing

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is one cached path result with its insertion timestamp.
type memoryEntry struct {
	resp     RoutingResponse
	storedAt time.Time
}

// MemoryStore is an in-memory CacheStore guarded by an RWMutex. Expiry is
// lazy: entries are checked against the TTL on read and dropped then; there
// is no background sweep. It is safe for concurrent use; concurrent writers
// to the same key follow last-writer-wins semantics.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the time source. Intended for tests that need to step
// across the expiry boundary deterministically.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates an in-memory store with the given TTL.
// Pass CacheTTL for production use.
func NewMemoryStore(ttl time.Duration, opts ...MemoryStoreOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// GetCachedPath returns the entry for key if it is younger than the TTL.
// Expired entries are deleted on the spot and reported as a miss.
func (m *MemoryStore) GetCachedPath(_ context.Context, key string) (*RoutingResponse, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if m.now().Sub(e.storedAt) >= m.ttl {
		m.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have refreshed it.
		if cur, still := m.entries[key]; still && m.now().Sub(cur.storedAt) >= m.ttl {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, nil
	}

	resp := e.resp
	return &resp, nil
}

// SetCachedPath stores a copy of resp under key, stamped with the current time.
func (m *MemoryStore) SetCachedPath(_ context.Context, key string, resp *RoutingResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{resp: *resp, storedAt: m.now()}
	return nil
}

// Len reports the number of entries currently held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
