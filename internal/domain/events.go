package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

func bonusDraft(eventType EventType, tx *BonusTransaction) OutboxDraft {
	payload, _ := json.Marshal(tx)
	id := strconv.FormatInt(tx.TransactionID, 10)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateBonus,
		AggregateID:   id,
		EventType:     eventType,
		PartitionKey:  tx.DeviceID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewBonusPendingEvent fires when a transaction is first persisted.
func NewBonusPendingEvent(tx *BonusTransaction) OutboxDraft {
	return bonusDraft(EventBonusPending, tx)
}

// NewBonusStartedEvent fires when a drain begins paying a transaction.
func NewBonusStartedEvent(tx *BonusTransaction) OutboxDraft {
	return bonusDraft(EventBonusStarted, tx)
}

// NewBonusAwardedEvent fires only for a successful commit.
func NewBonusAwardedEvent(tx *BonusTransaction) OutboxDraft {
	return bonusDraft(EventBonusAwarded, tx)
}

// NewBonusFailedEvent fires when a transaction commits with an exception.
func NewBonusFailedEvent(tx *BonusTransaction) OutboxDraft {
	return bonusDraft(EventBonusFailed, tx)
}

// NewBonusCancelledEvent fires when a pending transaction is withdrawn.
func NewBonusCancelledEvent(tx *BonusTransaction, reason CancelReason) OutboxDraft {
	d := bonusDraft(EventBonusCancelled, tx)
	payload, _ := json.Marshal(map[string]any{
		"transaction": tx,
		"reason":      string(reason),
	})
	d.Payload = payload
	return d
}

// NewPartialBonusPaidEvent fires after an increment that leaves the
// transaction short of its requested total.
func NewPartialBonusPaidEvent(tx *BonusTransaction) OutboxDraft {
	return bonusDraft(EventPartialBonusPaid, tx)
}

// NewBonusCommitCompletedEvent fires when a drain pass finishes.
func NewBonusCommitCompletedEvent(token uuid.UUID, paid int) OutboxDraft {
	payload, _ := json.Marshal(map[string]any{
		"payment_token":     token.String(),
		"transactions_paid": paid,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateBonus,
		AggregateID:   token.String(),
		EventType:     EventBonusCommitCompleted,
		PartitionKey:  token.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewDisplayLimitExceededEvent fires when a request breaches the configured
// display/award limit.
func NewDisplayLimitExceededEvent(tx *BonusTransaction, limit int64) OutboxDraft {
	d := bonusDraft(EventDisplayLimitExceeded, tx)
	payload, _ := json.Marshal(map[string]any{
		"transaction": tx,
		"limit":       limit,
	})
	d.Payload = payload
	return d
}

// NewMJTStartedEvent fires when a multiple-jackpot-time session begins.
func NewMJTStartedEvent(tx *BonusTransaction) OutboxDraft {
	return bonusDraft(EventMJTStarted, tx)
}

func gameplayDraft(eventType EventType, deviceID uuid.UUID, payload any) OutboxDraft {
	body, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateGamePlay,
		AggregateID:   deviceID.String(),
		EventType:     eventType,
		PartitionKey:  deviceID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       body,
		OccurredAt:    time.Now(),
	}
}

// NewGameDelayStartedEvent fires when a game-end delay hold is applied.
func NewGameDelayStartedEvent(deviceID uuid.UUID, delay time.Duration) OutboxDraft {
	return gameplayDraft(EventGameDelayStarted, deviceID, map[string]any{"delay_ms": delay.Milliseconds()})
}

// NewGameDelayEndedEvent fires when the delay hold is cancelled or expires.
func NewGameDelayEndedEvent(deviceID uuid.UUID) OutboxDraft {
	return gameplayDraft(EventGameDelayEnded, deviceID, map[string]any{})
}

// NewAutoPlayRequestedEvent toggles the auto-play request on MJT start/stop.
func NewAutoPlayRequestedEvent(deviceID uuid.UUID, enable bool) OutboxDraft {
	return gameplayDraft(EventAutoPlayRequested, deviceID, map[string]any{"enable": enable})
}
