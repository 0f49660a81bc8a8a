// Package service internal/application/service/broadcaster.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/metrics"
)

// DefaultBroadcastInterval is the pause between two refresh passes
const DefaultBroadcastInterval = 30 * time.Second

// ErrBroadcasterStarted is returned by Start on a broadcaster that is already running
var ErrBroadcasterStarted = errors.New("broadcaster already started")

// RateSource provides the snapshot of a base currency
type RateSource interface {
	GetRates(ctx context.Context, base string) (*entity.ExchangeRateSnapshot, error)
}

// SnapshotPublisher delivers a snapshot to the subscribers of a topic
type SnapshotPublisher interface {
	Publish(ctx context.Context, topic string, snapshot *entity.ExchangeRateSnapshot) error
}

// Broadcaster periodically reads the snapshot of every configured base currency and
// publishes it under the base's topic. A failing base is skipped until the next tick.
type Broadcaster struct {
	source     RateSource
	publishers []SnapshotPublisher
	bases      []string
	interval   time.Duration
	logger     logger.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBroadcaster creates a broadcaster; an empty base list falls back to the major currencies
func NewBroadcaster(source RateSource, publishers []SnapshotPublisher, bases []string, interval time.Duration, log logger.Logger, m *metrics.Metrics) *Broadcaster {
	if len(bases) == 0 {
		bases = entity.MajorCurrencies
	}
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &Broadcaster{
		source:     source,
		publishers: publishers,
		bases:      append([]string(nil), bases...),
		interval:   interval,
		logger:     log,
		metrics:    m,
	}
}

// Start launches the refresh loop. The first pass runs one interval after Start.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrBroadcasterStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	b.started = true
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.run(ctx, b.done)

	b.logger.Info("Broadcaster started", map[string]interface{}{
		"interval": b.interval.String(),
		"bases":    b.bases,
	})

	return nil
}

// Stop cancels the loop and waits for the current pass to finish. It is safe to call
// more than once and before Start.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel = nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	b.logger.Info("Broadcaster stopped", nil)
}

func (b *Broadcaster) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.safeTick(ctx)
		}
	}
}

func (b *Broadcaster) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in broadcast tick", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
		}
	}()

	b.Tick(ctx)
}

// Tick runs one pass over the configured bases in order and returns how many were published
func (b *Broadcaster) Tick(ctx context.Context) int {
	published := 0

	for _, base := range b.bases {
		if ctx.Err() != nil {
			break
		}

		snapshot, err := b.source.GetRates(ctx, base)
		if err != nil {
			b.metrics.ObserveBroadcast(base, false)
			b.logger.Error("Failed to refresh rates for broadcast", map[string]interface{}{
				"base":  base,
				"error": err.Error(),
			})
			continue
		}

		for _, p := range b.publishers {
			if err := p.Publish(ctx, base, snapshot); err != nil {
				b.logger.Warn("Failed to publish rates", map[string]interface{}{
					"base":      base,
					"publisher": fmt.Sprintf("%T", p),
					"error":     err.Error(),
				})
			}
		}

		b.metrics.ObserveBroadcast(base, true)
		published++
	}

	b.metrics.ObserveBroadcastTick()
	b.logger.Info("Real-time currency rates updated", map[string]interface{}{
		"published": published,
		"bases":     len(b.bases),
	})

	return published
}
