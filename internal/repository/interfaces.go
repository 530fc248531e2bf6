package repository

import (
	"context"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// BonusTransactionRepository provides access to bonus_transactions, the
// subsystem's append-only award ledger.
type BonusTransactionRepository interface {
	// Insert creates a new row and sets the assigned transaction id on tx.
	Insert(ctx context.Context, db DBTX, tx *domain.BonusTransaction) error

	// Update persists the mutable columns of an existing row.
	Update(ctx context.Context, db DBTX, tx *domain.BonusTransaction) error

	// FindByID returns a transaction by ledger id, or nil when absent.
	FindByID(ctx context.Context, db DBTX, id int64) (*domain.BonusTransaction, error)

	// FindByBonusID returns a transaction by the host-assigned bonus id.
	FindByBonusID(ctx context.Context, db DBTX, bonusID string) (*domain.BonusTransaction, error)

	// ListOpen returns every transaction not yet acknowledged, in insertion
	// order. This is the recall set the payment drain works from.
	ListOpen(ctx context.Context, db DBTX) ([]*domain.BonusTransaction, error)

	// List returns transactions ordered newest first, for the API surface.
	List(ctx context.Context, db DBTX, limit int) ([]*domain.BonusTransaction, error)
}

// MarkerRepository provides access to the singleton payment marker row.
type MarkerRepository interface {
	Get(ctx context.Context, db DBTX) (*domain.PaymentMarker, error)
	Put(ctx context.Context, db DBTX, marker domain.PaymentMarker) error
	Delete(ctx context.Context, db DBTX) error
}

// PayoutRepository provides access to bonus_payouts, the transfer-out
// intent ledger used for crash reconciliation.
type PayoutRepository interface {
	Insert(ctx context.Context, db DBTX, payout *domain.Payout) error
	FindByTraceID(ctx context.Context, db DBTX, traceID uuid.UUID) (*domain.Payout, error)
	ListByTransaction(ctx context.Context, db DBTX, transactionID int64) ([]*domain.Payout, error)
	Void(ctx context.Context, db DBTX, traceID uuid.UUID) error
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]OutboxRow, error)
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}

// OutboxRow is an outbox draft with its table sequence id, needed to mark
// the row published after relay.
type OutboxRow struct {
	SeqID int64
	Draft domain.OutboxDraft
}
