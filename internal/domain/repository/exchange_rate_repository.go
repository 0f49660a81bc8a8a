// Package repository internal/domain/repository/exchange_rate_repository.go
package repository

import (
	"context"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
)

// SnapshotRepository defines the interface for cached snapshot storage keyed by base currency
type SnapshotRepository interface {
	// Get returns the entry for a base currency, or nil when none is stored
	Get(ctx context.Context, base string) (*entity.CacheEntry, error)

	// Put replaces the entry for the snapshot's base currency
	Put(ctx context.Context, base string, entry *entity.CacheEntry) error

	// Clear drops every stored entry
	Clear(ctx context.Context) error

	// Len returns the number of stored entries
	Len(ctx context.Context) (int, error)
}
