package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/entity"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/segmentio/kafka-go"
)

// DefaultTopicPrefix is prepended to the base currency to form the topic name
const DefaultTopicPrefix = "currency-rates"

// SnapshotEvent is the message value written for every broadcast snapshot
type SnapshotEvent struct {
	Base      string                `json:"base"`
	Date      string                `json:"date"`
	Timestamp int64                 `json:"timestamp"`
	Rates     []entity.CurrencyRate `json:"rates"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SnapshotPublisher mirrors broadcast snapshots to Kafka, one topic per base currency
type SnapshotPublisher struct {
	writer messageWriter
	prefix string
	logger logger.Logger
}

// NewSnapshotPublisher creates a publisher writing to the given brokers
func NewSnapshotPublisher(brokers []string, prefix string, log logger.Logger) *SnapshotPublisher {
	return newSnapshotPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}, prefix, log)
}

func newSnapshotPublisher(writer messageWriter, prefix string, log logger.Logger) *SnapshotPublisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &SnapshotPublisher{
		writer: writer,
		prefix: prefix,
		logger: log,
	}
}

// TopicFor returns the Kafka topic of a base currency
func (p *SnapshotPublisher) TopicFor(base string) string {
	return p.prefix + "." + base
}

func (p *SnapshotPublisher) buildMessage(topic string, snapshot *entity.ExchangeRateSnapshot) (kafka.Message, error) {
	value, err := json.Marshal(SnapshotEvent{
		Base:      snapshot.Base,
		Date:      snapshot.Date,
		Timestamp: snapshot.Timestamp.UnixMilli(),
		Rates:     snapshot.Rates,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return kafka.Message{
		Topic: p.TopicFor(topic),
		Key:   []byte(topic),
		Value: value,
		Time:  snapshot.Timestamp,
	}, nil
}

// Publish writes the snapshot of a base currency to its topic
func (p *SnapshotPublisher) Publish(ctx context.Context, topic string, snapshot *entity.ExchangeRateSnapshot) error {
	msg, err := p.buildMessage(topic, snapshot)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write snapshot to %s: %w", msg.Topic, err)
	}

	p.logger.Debug("Snapshot mirrored to Kafka", map[string]interface{}{
		"topic": msg.Topic,
		"rates": len(snapshot.Rates),
	})

	return nil
}

// Close flushes pending messages and closes the writer
func (p *SnapshotPublisher) Close() error {
	return p.writer.Close()
}
