package bonus

import (
	"context"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/google/uuid"
)

// Ledger is the durable, ordered bonus transaction log. Implementations
// must assign a monotonic TransactionID on add and return transactions in
// insertion order on recall.
type Ledger interface {
	AddTransaction(ctx context.Context, tx *domain.BonusTransaction) error
	UpdateTransaction(ctx context.Context, tx *domain.BonusTransaction) error
	RecallTransactions(ctx context.Context) ([]*domain.BonusTransaction, error)
	FindTransaction(ctx context.Context, transactionID int64) (*domain.BonusTransaction, error)
	FindByBonusID(ctx context.Context, bonusID string) (*domain.BonusTransaction, error)

	// MaxTransactions is the capacity bound on pending transactions.
	MaxTransactions() int
}

// MarkerStore persists the singleton payment marker. Load returns nil when
// no marker is recorded.
type MarkerStore interface {
	Load(ctx context.Context) (*domain.PaymentMarker, error)
	Save(ctx context.Context, marker domain.PaymentMarker) error
	Clear(ctx context.Context) error
}

// PayoutStore persists transfer-out intents for crash reconciliation.
type PayoutStore interface {
	Add(ctx context.Context, payout *domain.Payout) error
	FindByTraceID(ctx context.Context, traceID uuid.UUID) (*domain.Payout, error)
	ListByTransaction(ctx context.Context, transactionID int64) ([]*domain.Payout, error)
	Void(ctx context.Context, traceID uuid.UUID) error
}

// Publisher emits domain events. Implementations write to the event outbox;
// publish failures are logged, never fatal to payment.
type Publisher interface {
	Publish(ctx context.Context, draft domain.OutboxDraft) error
}

// Continuation is the opaque per-drain-pass value threaded between
// successive Pay calls on transactions of the same mode. nil means no
// continuation has been established this pass.
type Continuation any

// Strategy holds the mode-specific business rules for one bonus mode.
type Strategy interface {
	Mode() domain.BonusMode

	// CreateTransaction builds and persists the transaction, then runs
	// validation. Business failures commit the transaction with an
	// exception; the returned error is infrastructure-only.
	CreateTransaction(ctx context.Context, req domain.BonusRequest) (*domain.BonusTransaction, error)

	// CanPay is the readiness gate, re-checked at the top of Pay.
	CanPay(tx *domain.BonusTransaction) bool

	// AuditAllowed reports whether the transaction may pay while the
	// operator menu is open.
	AuditAllowed(tx *domain.BonusTransaction) bool

	// Pay performs this round's payment under the given payment token and
	// returns the continuation for the next same-mode transaction.
	Pay(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID, cont Continuation) (Continuation, error)

	// Cancel withdraws a pending transaction if the reason permits.
	Cancel(ctx context.Context, tx *domain.BonusTransaction, reason domain.CancelReason) bool

	// Recover re-derives in-flight payment state after a crash.
	Recover(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID) error
}
