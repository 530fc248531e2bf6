package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventBonusPending         EventType = "egm.bonus.pending"
	EventBonusStarted         EventType = "egm.bonus.started"
	EventBonusAwarded         EventType = "egm.bonus.awarded"
	EventBonusFailed          EventType = "egm.bonus.failed"
	EventBonusCancelled       EventType = "egm.bonus.cancelled"
	EventPartialBonusPaid     EventType = "egm.bonus.partial_paid"
	EventBonusCommitCompleted EventType = "egm.bonus.commit_completed"
	EventDisplayLimitExceeded EventType = "egm.bonus.display_limit_exceeded"
	EventMJTStarted           EventType = "egm.bonus.mjt_started"
	EventGameDelayStarted     EventType = "egm.gameplay.delay_started"
	EventGameDelayEnded       EventType = "egm.gameplay.delay_ended"
	EventAutoPlayRequested    EventType = "egm.gameplay.autoplay_requested"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateBonus    AggregateType = "bonus"
	AggregateGamePlay AggregateType = "gameplay"
)

// OutboxDraft is the payload written to the event_outbox table and relayed
// to Kafka by the outbox publisher.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
