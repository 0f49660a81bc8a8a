// Package metrics internal/infrastructure/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results
const (
	CacheHit         = "hit"
	CacheMiss        = "miss"
	CacheStale       = "stale"
	CacheUnavailable = "unavailable"
)

// OtherBase labels every currency outside the known set
const OtherBase = "other"

// Metrics holds every collector exported by the service.
// All recording methods are safe to call on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	mu    sync.RWMutex
	known map[string]struct{}

	CacheLookups     *prometheus.CounterVec
	UpstreamFetches  *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	BroadcastTicks    prometheus.Counter
	BroadcastResults  *prometheus.CounterVec
	Subscribers       *prometheus.GaugeVec
	DroppedSnapshots  *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPRequestLength *prometheus.HistogramVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	known := make(map[string]struct{})
	for _, code := range entity.SupportedCurrencies() {
		known[code] = struct{}{}
	}

	return &Metrics{
		Registry: reg,
		known:    known,

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_cache_lookups_total",
				Help: "Rate cache lookups by result (hit, miss, stale, unavailable)",
			},
			[]string{"result"},
		),

		UpstreamFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_fetches_total",
				Help: "Requests sent to the exchange rate provider by base currency and outcome",
			},
			[]string{"base", "outcome"},
		),

		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_fetch_duration_seconds",
				Help:    "Exchange rate provider request duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 11),
			},
			[]string{"base"},
		),

		BroadcastTicks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "broadcast_ticks_total",
				Help: "Completed broadcaster refresh passes",
			},
		),

		BroadcastResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broadcast_results_total",
				Help: "Per-currency broadcast results (published, skipped)",
			},
			[]string{"base", "result"},
		),

		Subscribers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rate_subscribers",
				Help: "Current live subscribers per topic",
			},
			[]string{"topic"},
		),

		DroppedSnapshots: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_subscriber_dropped_total",
				Help: "Snapshots dropped because a subscriber buffer was full",
			},
			[]string{"topic"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestLength: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RegisterBases adds currencies that are labelled by their own code
func (m *Metrics) RegisterBases(bases ...string) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bases {
		m.known[b] = struct{}{}
	}
}

// BaseLabel returns the label value of a currency code: the code itself when known,
// OtherBase otherwise
func (m *Metrics) BaseLabel(base string) string {
	if m == nil {
		return OtherBase
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.known[base]; ok {
		return base
	}
	return OtherBase
}

func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveUpstreamFetch(base string, err error, duration time.Duration) {
	if m == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	label := m.BaseLabel(base)
	m.UpstreamFetches.WithLabelValues(label, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(label).Observe(duration.Seconds())
}

func (m *Metrics) ObserveBroadcastTick() {
	if m == nil {
		return
	}
	m.BroadcastTicks.Inc()
}

func (m *Metrics) ObserveBroadcast(base string, published bool) {
	if m == nil {
		return
	}

	result := "published"
	if !published {
		result = "skipped"
	}
	m.BroadcastResults.WithLabelValues(m.BaseLabel(base), result).Inc()
}

// SetSubscribers sets the live subscriber total of a topic label. Zero removes the series.
func (m *Metrics) SetSubscribers(label string, n int) {
	if m == nil {
		return
	}

	label = m.BaseLabel(label)
	if n <= 0 {
		m.Subscribers.DeleteLabelValues(label)
		return
	}
	m.Subscribers.WithLabelValues(label).Set(float64(n))
}

func (m *Metrics) ObserveDroppedSnapshot(topic string) {
	if m == nil {
		return
	}
	m.DroppedSnapshots.WithLabelValues(m.BaseLabel(topic)).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestLength.WithLabelValues(method, route).Observe(duration.Seconds())
}
