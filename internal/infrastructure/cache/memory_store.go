package cache

import (
	"context"
	"sync"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/domain/repository"
)

// MemoryStore is a thread-safe in-memory snapshot repository.
// Entries are replaced by pointer swap, never mutated in place.
type MemoryStore struct {
	entries map[string]*entity.CacheEntry
	mutex   sync.RWMutex
}

var _ repository.SnapshotRepository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entity.CacheEntry),
	}
}

// Get retrieves the entry for a base currency, nil when absent
func (s *MemoryStore) Get(_ context.Context, base string) (*entity.CacheEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.entries[base], nil
}

// Put stores an entry, replacing any previous one
func (s *MemoryStore) Put(_ context.Context, base string, entry *entity.CacheEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[base] = entry
	return nil
}

// Clear clears all entries from the store
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries = make(map[string]*entity.CacheEntry)
	return nil
}

// Len returns the number of items in the store
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.entries), nil
}
