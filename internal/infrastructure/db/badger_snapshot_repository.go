package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/domain/repository"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/dgraph-io/badger/v3"
)

const snapshotKeyPrefix = "rates:"

// BadgerSnapshotRepository implements the snapshot repository interface using BadgerDB
type BadgerSnapshotRepository struct {
	db *badger.DB
}

var _ repository.SnapshotRepository = (*BadgerSnapshotRepository)(nil)

// OpenInMemory opens a BadgerDB instance that keeps everything in memory.
// Nothing written to it survives a restart.
func OpenInMemory(log logger.Logger) (*badger.DB, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(&badgerLogger{log: log.WithField("component", "badger")}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// NewBadgerSnapshotRepository creates a new BadgerDB snapshot repository
func NewBadgerSnapshotRepository(db *badger.DB) *BadgerSnapshotRepository {
	return &BadgerSnapshotRepository{db: db}
}

func snapshotKey(base string) []byte {
	return []byte(snapshotKeyPrefix + base)
}

// Get retrieves the entry for a base currency, nil when absent
func (r *BadgerSnapshotRepository) Get(ctx context.Context, base string) (*entity.CacheEntry, error) {
	var entry entity.CacheEntry

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(base))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to retrieve rates for %s: %w", base, err)
	}

	return &entry, nil
}

// Put stores an entry, replacing any previous one in a single transaction
func (r *BadgerSnapshotRepository) Put(ctx context.Context, base string, entry *entity.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal rates: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(base), data)
	})

	if err != nil {
		return fmt.Errorf("failed to store rates for %s: %w", base, err)
	}

	return nil
}

// Clear drops every stored entry
func (r *BadgerSnapshotRepository) Clear(ctx context.Context) error {
	if err := r.db.DropPrefix([]byte(snapshotKeyPrefix)); err != nil {
		return fmt.Errorf("failed to clear rates: %w", err)
	}

	return nil
}

// Len counts the stored entries
func (r *BadgerSnapshotRepository) Len(ctx context.Context) (int, error) {
	count := 0

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(snapshotKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count rates: %w", err)
	}

	return count, nil
}

// badgerLogger routes badger's own logging through the service logger
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...), nil)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...), nil)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...), nil)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...), nil)
}
