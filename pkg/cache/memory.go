package cache

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store backed by a map.
// It has no capacity bound and never evicts; entries live until overwritten.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
	}
}

// Get returns a copy of the entry stored for symbol.
func (s *MemoryStore) Get(_ context.Context, symbol string) (*Entry, error) {
	key := Key(symbol)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	entry = entry.clone()
	return &entry, nil
}

// Put replaces the entry for entry.Symbol. The payload is copied so later
// mutation of the caller's slice cannot leak into the store.
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	key := Key(entry.Symbol)
	entry = entry.clone()
	entry.Symbol = NormalizeSymbol(entry.Symbol)

	s.mu.Lock()
	s.entries[key] = entry
	size := len(s.entries)
	s.mu.Unlock()

	CacheEntries.WithLabelValues("memory").Set(float64(size))
	return nil
}

// Len returns the number of symbols held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping always succeeds; the memory store has no external dependency.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
