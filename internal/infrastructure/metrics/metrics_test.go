package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecording(t *testing.T) {
	m := New()

	m.ObserveCacheLookup(CacheHit)
	m.ObserveCacheLookup(CacheHit)
	m.ObserveCacheLookup(CacheStale)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheStale)))

	m.ObserveUpstreamFetch("USD", nil, 20*time.Millisecond)
	m.ObserveUpstreamFetch("USD", errors.New("boom"), time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamFetches.WithLabelValues("USD", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamFetches.WithLabelValues("USD", "failure")))

	m.ObserveBroadcastTick()
	m.ObserveBroadcast("EUR", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BroadcastTicks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BroadcastResults.WithLabelValues("EUR", "skipped")))

	m.SetSubscribers("USD", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Subscribers.WithLabelValues("USD")))

	m.ObserveHTTPRequest(http.MethodGet, "/api/rates/{base}", http.StatusOK, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/rates/{base}", "200")))
}

func TestBaseLabels(t *testing.T) {
	m := New()

	assert.Equal(t, "USD", m.BaseLabel("USD"))
	assert.Equal(t, OtherBase, m.BaseLabel("usd"))
	assert.Equal(t, OtherBase, m.BaseLabel("PLN"))

	m.RegisterBases("PLN")
	assert.Equal(t, "PLN", m.BaseLabel("PLN"))

	for i := 0; i < 150; i++ {
		base := fmt.Sprintf("Q%03d", i)
		m.ObserveUpstreamFetch(base, nil, time.Millisecond)
		m.ObserveBroadcast(base, true)
		m.ObserveDroppedSnapshot(base)
		m.SetSubscribers(base, 1)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.UpstreamFetches))
	assert.Equal(t, 1, testutil.CollectAndCount(m.UpstreamDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BroadcastResults))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DroppedSnapshots))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Subscribers))
}

func TestSetSubscribersZeroDeletesSeries(t *testing.T) {
	m := New()

	m.SetSubscribers("USD", 2)
	m.SetSubscribers("EUR", 1)
	assert.Equal(t, 2, testutil.CollectAndCount(m.Subscribers))

	m.SetSubscribers("USD", 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.Subscribers))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveCacheLookup(CacheMiss)
		m.ObserveUpstreamFetch("USD", nil, time.Second)
		m.ObserveBroadcastTick()
		m.ObserveBroadcast("USD", true)
		m.SetSubscribers("USD", 1)
		m.RegisterBases("PLN")
		m.ObserveDroppedSnapshot("USD")
		m.ObserveHTTPRequest("GET", "/", 200, time.Second)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveCacheLookup(CacheMiss)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rate_cache_lookups_total{result="miss"} 1`)
}
