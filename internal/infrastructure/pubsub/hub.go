// Package pubsub fans broadcast snapshots out to in-process subscribers
package pubsub

import (
	"context"
	"sync"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/metrics"
	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber channel capacity
const DefaultBufferSize = 8

// Subscription is one consumer of a topic. C is closed on Unsubscribe or Close.
type Subscription struct {
	ID    string
	Topic string
	C     <-chan *entity.ExchangeRateSnapshot

	ch chan *entity.ExchangeRateSnapshot
}

// Hub delivers snapshots at most once to the subscribers present at publish time.
// Publishing never blocks: a subscriber with a full buffer misses the message.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[string]*Subscription
	gauges  map[string]int
	buffer  int
	closed  bool
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewHub creates a hub; a non-positive buffer falls back to DefaultBufferSize
func NewHub(buffer int, log logger.Logger, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &Hub{
		topics:  make(map[string]map[string]*Subscription),
		gauges:  make(map[string]int),
		buffer:  buffer,
		logger:  log,
		metrics: m,
	}
}

// Subscribe registers a new subscriber on a topic. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(topic string) *Subscription {
	ch := make(chan *entity.ExchangeRateSnapshot, h.buffer)
	sub := &Subscription{
		ID:    uuid.New().String(),
		Topic: topic,
		C:     ch,
		ch:    ch,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return sub
	}

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[string]*Subscription)
		h.topics[topic] = subs
	}
	subs[sub.ID] = sub
	h.countSubscribers(topic, 1)

	h.logger.Debug("Subscriber added", map[string]interface{}{
		"topic":           topic,
		"subscription_id": sub.ID,
		"subscribers":     len(subs),
	})

	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Calling it twice is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[sub.Topic]
	if !ok {
		return
	}
	if _, ok := subs[sub.ID]; !ok {
		return
	}

	delete(subs, sub.ID)
	close(sub.ch)
	h.countSubscribers(sub.Topic, -1)

	if len(subs) == 0 {
		delete(h.topics, sub.Topic)
	}

	h.logger.Debug("Subscriber removed", map[string]interface{}{
		"topic":           sub.Topic,
		"subscription_id": sub.ID,
	})
}

// Publish sends an independent copy of the snapshot to every current subscriber of the topic
func (h *Hub) Publish(_ context.Context, topic string, snapshot *entity.ExchangeRateSnapshot) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.topics[topic] {
		select {
		case sub.ch <- snapshot.Clone():
		default:
			h.metrics.ObserveDroppedSnapshot(topic)
			h.logger.Warn("Subscriber buffer full, dropping snapshot", map[string]interface{}{
				"topic":           topic,
				"subscription_id": sub.ID,
			})
		}
	}

	return nil
}

// SubscriberCount returns the number of live subscribers of a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.topics[topic])
}

// Close closes every subscription; later subscriptions are closed immediately
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, subs := range h.topics {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	for label := range h.gauges {
		h.metrics.SetSubscribers(label, 0)
	}
	h.topics = make(map[string]map[string]*Subscription)
	h.gauges = make(map[string]int)
}

// countSubscribers keeps the per-label subscriber totals. Unknown topics share one label,
// so the gauge is fed the label total rather than the topic size. Callers hold mu.
func (h *Hub) countSubscribers(topic string, delta int) {
	label := h.metrics.BaseLabel(topic)

	n := h.gauges[label] + delta
	if n <= 0 {
		delete(h.gauges, label)
		n = 0
	} else {
		h.gauges[label] = n
	}

	h.metrics.SetSubscribers(label, n)
}
