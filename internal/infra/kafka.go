package infra

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer wraps a kafka-go writer for publishing relay batches. If
// disabled, writes are no-ops so a cabinet can run without a broker.
type KafkaProducer struct {
	writer  *kafka.Writer
	logger  *slog.Logger
	enabled bool
}

// NewKafkaProducer creates a Kafka producer for the given topic.
func NewKafkaProducer(brokers, topic string, enabled bool, logger *slog.Logger) *KafkaProducer {
	if !enabled || brokers == "" {
		logger.Info("kafka producer disabled")
		return &KafkaProducer{enabled: false, logger: logger}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("kafka producer initialized", "brokers", brokers, "topic", topic)
	return &KafkaProducer{writer: w, logger: logger, enabled: true}
}

// Publish sends one message keyed by partition key. No-op if disabled.
func (p *KafkaProducer) Publish(ctx context.Context, key, value []byte) error {
	if !p.enabled {
		return nil
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

// PublishBatch sends a batch of messages in one write. No-op if disabled.
func (p *KafkaProducer) PublishBatch(ctx context.Context, msgs []kafka.Message) error {
	if !p.enabled || len(msgs) == 0 {
		return nil
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close shuts down the Kafka writer.
func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
