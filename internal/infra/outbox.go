package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"github.com/attaboy/egm-bonus/internal/repository"
)

// OutboxRelay drains the event_outbox table into Kafka. Events are written
// transactionally by the bonus engine and relayed here, so a crash between
// the database commit and the broker publish never loses an event; at-least-once
// delivery is the contract, consumers deduplicate on eventId.
type OutboxRelay struct {
	pool     *pgxpool.Pool
	outbox   repository.OutboxRepository
	producer *KafkaProducer
	log      *slog.Logger

	interval  time.Duration
	batchSize int
}

// NewOutboxRelay builds a relay polling at the given interval.
func NewOutboxRelay(pool *pgxpool.Pool, outbox repository.OutboxRepository, producer *KafkaProducer, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxRelay {
	return &OutboxRelay{
		pool:      pool,
		outbox:    outbox,
		producer:  producer,
		log:       logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled. A failed relay pass is logged and retried
// on the next tick; rows are only deleted after the broker accepts the batch.
func (r *OutboxRelay) Run(ctx context.Context) error {
	r.log.Info("outbox relay started", "interval", r.interval.String(), "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopping")
			return nil
		case <-ticker.C:
			if n, err := r.relayOnce(ctx); err != nil {
				r.log.Error("relay pass failed", "error", err)
			} else if n > 0 {
				r.log.Info("relayed events", "count", n)
			}
		}
	}
}

func (r *OutboxRelay) relayOnce(ctx context.Context) (int, error) {
	rows, err := r.outbox.FetchUnpublished(ctx, r.pool, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(rows))
	seqIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		value, err := json.Marshal(row.Draft)
		if err != nil {
			return 0, fmt.Errorf("marshal event %s: %w", row.Draft.EventID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(row.Draft.PartitionKey),
			Value: value,
			Headers: []kafka.Header{
				{Key: "eventType", Value: []byte(row.Draft.EventType)},
				{Key: "eventId", Value: []byte(row.Draft.EventID.String())},
			},
		})
		seqIDs = append(seqIDs, row.SeqID)
	}

	if err := r.producer.PublishBatch(ctx, msgs); err != nil {
		return 0, fmt.Errorf("publish batch: %w", err)
	}

	if err := r.outbox.MarkPublished(ctx, r.pool, seqIDs); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}

	return len(rows), nil
}
