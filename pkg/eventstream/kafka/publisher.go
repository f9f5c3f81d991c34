// Package kafka publishes chat lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/crosswireco/crosswire/pkg/eventstream"
)

// Config configures the Kafka publisher.
type Config struct {
	// Brokers is the bootstrap broker list, host:port each.
	Brokers []string

	// Topic receives the chat completed events.
	Topic string

	// BatchTimeout bounds how long the writer holds a partial batch.
	// Zero means the kafka-go default.
	BatchTimeout time.Duration
}

// Publisher writes events to Kafka, keyed by provider so one provider's
// events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}, nil
}

// PublishChat implements eventstream.Publisher.
func (p *Publisher) PublishChat(ctx context.Context, event *eventstream.ChatCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilChatEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal chat event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Source.Provider),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("could not publish chat event: %w", err)
	}

	return nil
}

// Close flushes pending batches and releases the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
