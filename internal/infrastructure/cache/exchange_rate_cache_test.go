package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/domain/service"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/metrics"
	"github.com/damon-houk/currency-tracker/internal/mocks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func usdPayload(eur float64) *service.RatesPayload {
	return &service.RatesPayload{
		Base: "USD",
		Date: "2024-01-01",
		Rates: []service.RateQuote{
			{Code: "USD", Rate: 1},
			{Code: "EUR", Rate: eur},
			{Code: "GBP", Rate: 0.79},
		},
	}
}

func newTestCache(provider service.RateProvider, clock *testClock, opts ...Option) *ExchangeRateCache {
	opts = append([]Option{WithClock(clock.Now), WithLogger(logger.NopLogger{})}, opts...)
	return NewExchangeRateCache(provider, opts...)
}

func TestGetRatesCacheHit(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	clock := newTestClock()
	m := metrics.New()
	cache := newTestCache(provider, clock, WithMetrics(m))
	ctx := context.Background()

	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()

	first, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)

	clock.Advance(4*time.Minute + 59*time.Second)

	second, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)

	assert.Same(t, first, second)
	provider.AssertNumberOfCalls(t, "FetchRates", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.CacheHit)))
}

func TestGetRatesDefaultsToUSD(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	cache := newTestCache(provider, newTestClock())

	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()

	snapshot, err := cache.GetRates(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "USD", snapshot.Base)
	provider.AssertExpectations(t)
}

func TestGetRatesRefetchesAfterTTL(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	clock := newTestClock()
	cache := newTestCache(provider, clock)
	ctx := context.Background()

	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()
	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.95), nil).Once()

	first, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)

	clock.Advance(DefaultTTL)

	second, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)

	eur, ok := second.Find("EUR")
	require.True(t, ok)
	assert.Equal(t, 0.95, eur.Rate)
	assert.NotSame(t, first, second)
	assert.Equal(t, clock.Now(), second.Timestamp)
	provider.AssertExpectations(t)
}

func TestGetRatesStaleFallback(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	clock := newTestClock()
	m := metrics.New()
	cache := newTestCache(provider, clock, WithMetrics(m))
	ctx := context.Background()

	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()
	provider.On("FetchRates", mock.Anything, "USD").Return(nil, errors.New("connection refused"))

	original, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)

	for _, age := range []time.Duration{DefaultTTL, 24 * time.Hour, 365 * 24 * time.Hour} {
		clock.Advance(age)

		stale, err := cache.GetRates(ctx, "USD")
		require.NoError(t, err)
		assert.Same(t, original, stale)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.CacheStale)))
}

func TestGetRatesStaleFallbackLogsWarning(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	log := new(mocks.MockLogger)
	clock := newTestClock()
	cache := newTestCache(provider, clock, WithLogger(log))
	ctx := context.Background()

	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()
	provider.On("FetchRates", mock.Anything, "USD").Return(nil, errors.New("connection refused"))

	log.On("Info", "Fetching exchange rates", mock.Anything).Twice()
	log.On("Warn", "Returning expired cached rates due to provider error", mock.MatchedBy(func(f map[string]interface{}) bool {
		return f["base"] == "USD" && f["error"] != nil
	})).Once()

	_, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)

	clock.Advance(DefaultTTL)

	_, err = cache.GetRates(ctx, "USD")
	require.NoError(t, err)

	log.AssertExpectations(t)
	log.AssertNotCalled(t, "Error", mock.Anything, mock.Anything)
}

func TestGetRatesNoFallback(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	cache := newTestCache(provider, newTestClock())

	provider.On("FetchRates", mock.Anything, "EUR").Return(nil, errors.New("API returned error status: 500"))

	snapshot, err := cache.GetRates(context.Background(), "EUR")

	assert.Nil(t, snapshot)
	assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "500")
}

func TestGetRatesFetchTimeout(t *testing.T) {
	cache := newTestCache(&blockingProvider{}, newTestClock(), WithFetchTimeout(20*time.Millisecond))

	_, err := cache.GetRates(context.Background(), "USD")

	assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetPair(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	cache := newTestCache(provider, newTestClock())
	ctx := context.Background()

	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()

	t.Run("Present target", func(t *testing.T) {
		rate, ok, err := cache.GetPair(ctx, "USD", "EUR")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Euro", rate.Name)
		assert.Equal(t, 0.9, rate.Rate)
	})

	t.Run("Absent target is not an error", func(t *testing.T) {
		rate, ok, err := cache.GetPair(ctx, "USD", "XYZ")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, rate)
	})

	t.Run("Lookup is case-sensitive", func(t *testing.T) {
		_, ok, err := cache.GetPair(ctx, "USD", "eur")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Upstream failure propagates", func(t *testing.T) {
		provider.On("FetchRates", mock.Anything, "JPY").Return(nil, errors.New("timeout")).Once()

		_, _, err := cache.GetPair(ctx, "JPY", "USD")
		assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
	})

	provider.AssertExpectations(t)
}

func TestClearForcesFetch(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	cache := newTestCache(provider, newTestClock())
	ctx := context.Background()

	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()
	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.8), nil).Once()

	before, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)

	size, err := cache.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	require.NoError(t, cache.Clear(ctx))

	size, err = cache.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)

	after, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)
	assert.NotSame(t, before, after)

	eur, _ := after.Find("EUR")
	assert.Equal(t, 0.8, eur.Rate)
	provider.AssertExpectations(t)
}

func TestClearThenFailureHasNoFallback(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	cache := newTestCache(provider, newTestClock())
	ctx := context.Background()

	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()
	provider.On("FetchRates", mock.Anything, "USD").Return(nil, errors.New("down")).Once()

	_, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)
	require.NoError(t, cache.Clear(ctx))

	_, err = cache.GetRates(ctx, "USD")
	assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
}

func TestRefreshReplacesFreshEntry(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	clock := newTestClock()
	cache := newTestCache(provider, clock)
	ctx := context.Background()

	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()
	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.7), nil).Once()
	provider.On("FetchRates", mock.Anything, "USD").Return(nil, errors.New("down")).Once()

	_, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)

	refreshed, err := cache.Refresh(ctx, "USD")
	require.NoError(t, err)

	// The refreshed entry is now the cached one
	cached, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)
	assert.Same(t, refreshed, cached)

	// A failed refresh reports the error and keeps the entry
	_, err = cache.Refresh(ctx, "USD")
	assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)

	cached, err = cache.GetRates(ctx, "USD")
	require.NoError(t, err)
	assert.Same(t, refreshed, cached)
	provider.AssertExpectations(t)
}

func TestGetRatesStoreErrors(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	store := new(mocks.MockSnapshotRepository)
	cache := newTestCache(provider, newTestClock(), WithStore(store))

	store.On("Get", mock.Anything, "USD").Return(nil, errors.New("disk on fire"))
	store.On("Put", mock.Anything, "USD", mock.AnythingOfType("*entity.CacheEntry")).Return(errors.New("disk on fire"))
	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil)

	// Store failures degrade to a plain fetch
	snapshot, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Len(t, snapshot.Rates, 3)
	store.AssertExpectations(t)
}

func TestGetRatesCoalescesConcurrentFetches(t *testing.T) {
	provider := &gatedProvider{release: make(chan struct{}), payload: usdPayload(0.9)}
	cache := newTestCache(provider, newTestClock())

	const callers = 50
	results := make([]*entity.ExchangeRateSnapshot, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetRates(context.Background(), "USD")
		}(i)
	}

	// Wait until the first fetch is in flight, give the rest time to pile up behind it
	require.Eventually(t, func() bool { return provider.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(provider.release)
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestGetRatesCallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	provider := &gatedProvider{release: make(chan struct{}), payload: usdPayload(0.9)}
	cache := newTestCache(provider, newTestClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.GetRates(ctx, "USD")
		done <- err
	}()

	require.Eventually(t, func() bool { return provider.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	// The detached fetch still completes and lands in the cache
	close(provider.release)
	require.Eventually(t, func() bool {
		n, _ := cache.Size(context.Background())
		return n == 1
	}, time.Second, time.Millisecond)

	snapshot, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, "USD", snapshot.Base)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestDistinctBasesFetchIndependently(t *testing.T) {
	provider := new(mocks.MockRateProvider)
	cache := newTestCache(provider, newTestClock())
	ctx := context.Background()

	eurPayload := &service.RatesPayload{Base: "EUR", Date: "2024-01-01", Rates: []service.RateQuote{{Code: "USD", Rate: 1.1}}}
	provider.On("FetchRates", mock.Anything, "USD").Return(usdPayload(0.9), nil).Once()
	provider.On("FetchRates", mock.Anything, "EUR").Return(eurPayload, nil).Once()

	usd, err := cache.GetRates(ctx, "USD")
	require.NoError(t, err)
	eur, err := cache.GetRates(ctx, "EUR")
	require.NoError(t, err)

	assert.Equal(t, "USD", usd.Base)
	assert.Equal(t, "EUR", eur.Base)
	provider.AssertExpectations(t)
}

// gatedProvider blocks every fetch until release is closed
type gatedProvider struct {
	calls   atomic.Int32
	release chan struct{}
	payload *service.RatesPayload
}

func (p *gatedProvider) FetchRates(ctx context.Context, _ string) (*service.RatesPayload, error) {
	p.calls.Add(1)
	select {
	case <-p.release:
		return p.payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// blockingProvider never answers before the context ends
type blockingProvider struct{}

func (blockingProvider) FetchRates(ctx context.Context, _ string) (*service.RatesPayload, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
