package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/domain/repository"
	"github.com/damon-houk/currency-tracker/internal/domain/service"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a snapshot is served without asking the provider again
	DefaultTTL = 5 * time.Minute

	// DefaultFetchTimeout bounds a single upstream fetch
	DefaultFetchTimeout = 10 * time.Second
)

// ExchangeRateCache serves snapshots per base currency, fetching from the provider only
// when the cached entry is missing or expired. Expired entries remain usable as a fallback
// when the provider fails. Concurrent callers for the same base share one fetch.
type ExchangeRateCache struct {
	provider     service.RateProvider
	store        repository.SnapshotRepository
	estimator    ChangeEstimator
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	group        singleflight.Group
	logger       logger.Logger
	metrics      *metrics.Metrics
}

// Option configures an ExchangeRateCache
type Option func(*ExchangeRateCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *ExchangeRateCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *ExchangeRateCache) {
		if timeout > 0 {
			c.fetchTimeout = timeout
		}
	}
}

func WithStore(store repository.SnapshotRepository) Option {
	return func(c *ExchangeRateCache) {
		if store != nil {
			c.store = store
		}
	}
}

func WithChangeEstimator(estimator ChangeEstimator) Option {
	return func(c *ExchangeRateCache) {
		if estimator != nil {
			c.estimator = estimator
		}
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(c *ExchangeRateCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *ExchangeRateCache) {
		if log != nil {
			c.logger = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ExchangeRateCache) {
		c.metrics = m
	}
}

// NewExchangeRateCache creates a new exchange rate cache in front of a provider
func NewExchangeRateCache(provider service.RateProvider, opts ...Option) *ExchangeRateCache {
	c := &ExchangeRateCache{
		provider:     provider,
		store:        NewMemoryStore(),
		estimator:    NoChangeEstimator{},
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		logger:       logger.GetDefaultLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func normalizeBase(base string) string {
	if base == "" {
		return entity.DefaultBase
	}
	return base
}

// GetRates returns the snapshot for a base currency. It fails with ErrUpstreamUnavailable
// only when the provider failed and nothing was ever cached for the base.
func (c *ExchangeRateCache) GetRates(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error) {
	base = normalizeBase(base)

	entry, err := c.store.Get(ctx, base)
	if err != nil {
		c.logger.Warn("Failed to read cached rates", map[string]interface{}{
			"base":  base,
			"error": err.Error(),
		})
		entry = nil
	}

	if entry != nil && entry.FreshAt(c.now(), c.ttl) {
		c.metrics.ObserveCacheLookup(metrics.CacheHit)
		c.logger.Debug("Rates served from cache", map[string]interface{}{
			"base":      base,
			"cached_at": entry.CachedAt.Format(time.RFC3339),
		})
		return entry.Snapshot, nil
	}

	snapshot, fetchErr := c.fetch(ctx, base, false)
	if fetchErr == nil {
		c.metrics.ObserveCacheLookup(metrics.CacheMiss)
		return snapshot, nil
	}

	if entry != nil {
		c.metrics.ObserveCacheLookup(metrics.CacheStale)
		c.logger.Warn("Returning expired cached rates due to provider error", map[string]interface{}{
			"base":      base,
			"cached_at": entry.CachedAt.Format(time.RFC3339),
			"error":     fetchErr.Error(),
		})
		return entry.Snapshot, nil
	}

	c.metrics.ObserveCacheLookup(metrics.CacheUnavailable)
	c.logger.Error("Failed to fetch exchange rates and no cached data available", map[string]interface{}{
		"base":  base,
		"error": fetchErr.Error(),
	})

	return nil, fmt.Errorf("%w for %s: %w", entity.ErrUpstreamUnavailable, base, fetchErr)
}

// GetPair returns the rate of target against base. A target missing from the snapshot
// is reported through the boolean, not as an error.
func (c *ExchangeRateCache) GetPair(ctx context.Context, base, target string) (*entity.CurrencyRate, bool, error) {
	snapshot, err := c.GetRates(ctx, base)
	if err != nil {
		return nil, false, err
	}

	rate, ok := snapshot.Find(target)
	return rate, ok, nil
}

// Refresh fetches a base currency regardless of the cached entry's age.
// Failures are returned as they are; the cached entry is left untouched.
func (c *ExchangeRateCache) Refresh(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error) {
	base = normalizeBase(base)

	snapshot, err := c.fetch(ctx, base, true)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", entity.ErrUpstreamUnavailable, base, err)
	}

	return snapshot, nil
}

// Clear drops every cached entry
func (c *ExchangeRateCache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear rate cache: %w", err)
	}

	c.logger.Info("Rate cache cleared", nil)
	return nil
}

// Size returns the number of cached base currencies
func (c *ExchangeRateCache) Size(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}

// fetch performs at most one provider call per base at a time and stores its result.
// The shared call ignores the caller's cancellation and is bounded by fetchTimeout.
// Unless forced, an entry stored by a flight that ended after the caller's lookup is reused.
func (c *ExchangeRateCache) fetch(ctx context.Context, base string, force bool) (*entity.ExchangeRateSnapshot, error) {
	ch := c.group.DoChan(base, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		if !force {
			if entry, err := c.store.Get(fetchCtx, base); err == nil && entry != nil && entry.FreshAt(c.now(), c.ttl) {
				return entry.Snapshot, nil
			}
		}

		c.logger.Info("Fetching exchange rates", map[string]interface{}{
			"base": base,
		})

		payload, err := c.provider.FetchRates(fetchCtx, base)
		if err != nil {
			return nil, err
		}

		now := c.now()
		snapshot := buildSnapshot(payload, now, c.estimator)

		if err := c.store.Put(fetchCtx, base, &entity.CacheEntry{Snapshot: snapshot, CachedAt: now}); err != nil {
			c.logger.Error("Failed to store fetched rates", map[string]interface{}{
				"base":  base,
				"error": err.Error(),
			})
		}

		return snapshot, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entity.ExchangeRateSnapshot), nil
	}
}
