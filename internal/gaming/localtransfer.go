package gaming

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/attaboy/egm-bonus/internal/domain"
)

// PendingTransfer is a transfer-out awaiting external confirmation: an
// attendant keying off a handpay, the printer finishing a voucher, or the
// WAT host acknowledging the wire.
type PendingTransfer struct {
	TraceID uuid.UUID           `json:"trace_id"`
	Token   uuid.UUID           `json:"token"`
	Rail    domain.TransferRail `json:"rail"`

	CashableAmount int64 `json:"cashable_amount"`
	NonCashAmount  int64 `json:"non_cash_amount"`
	PromoAmount    int64 `json:"promo_amount"`

	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// LocalTransferOut is the cabinet's transfer-out subsystem. Submitted
// transfers park here until Confirm delivers the outcome, which is then
// announced through the registry. At most one transfer is in flight per
// payment token.
type LocalTransferOut struct {
	registry *TransferRegistry
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]PendingTransfer // keyed by trace id
}

// NewLocalTransferOut creates the transfer-out subsystem.
func NewLocalTransferOut(registry *TransferRegistry, logger *slog.Logger) *LocalTransferOut {
	return &LocalTransferOut{
		registry: registry,
		logger:   logger,
		pending:  make(map[uuid.UUID]PendingTransfer),
	}
}

// TransferOut accepts the transfer and parks it for confirmation. It refuses
// a second transfer under a token that already has one in flight.
func (t *LocalTransferOut) TransferOut(_ context.Context, token uuid.UUID, rail domain.TransferRail,
	cashable, promo, nonCash int64, _ []int64, reason string, traceID uuid.UUID) bool {

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.pending {
		if p.Token == token {
			t.logger.Warn("transfer refused, token busy", "token", token, "trace_id", traceID)
			return false
		}
	}

	t.pending[traceID] = PendingTransfer{
		TraceID:        traceID,
		Token:          token,
		Rail:           rail,
		CashableAmount: cashable,
		NonCashAmount:  nonCash,
		PromoAmount:    promo,
		Reason:         reason,
		RequestedAt:    time.Now(),
	}
	t.logger.Info("transfer submitted", "trace_id", traceID, "rail", rail,
		"cashable", cashable, "non_cash", nonCash, "promo", promo)
	return true
}

// Confirm resolves a pending transfer. An empty rail means it settled on the
// requested rail. Unknown trace ids report false.
func (t *LocalTransferOut) Confirm(traceID uuid.UUID, completed bool, rail domain.TransferRail, creditHandpay bool) bool {
	t.mu.Lock()
	p, ok := t.pending[traceID]
	if ok {
		delete(t.pending, traceID)
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Warn("confirm for unknown transfer", "trace_id", traceID)
		return false
	}

	if rail == "" {
		rail = p.Rail
	}
	t.registry.Resolve(TransferResult{
		TraceID:       traceID,
		Completed:     completed,
		Rail:          rail,
		CreditHandpay: creditHandpay,
	})
	return true
}

// Pending lists transfers awaiting confirmation, oldest first.
func (t *LocalTransferOut) Pending() []PendingTransfer {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PendingTransfer, 0, len(t.pending))
	for _, p := range t.pending {
		out = append(out, p)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].RequestedAt.Before(out[j-1].RequestedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Recover returns the trace id of the transfer in flight under the token,
// or uuid.Nil when none is.
func (t *LocalTransferOut) Recover(token uuid.UUID) uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.pending {
		if p.Token == token {
			return p.TraceID
		}
	}
	return uuid.Nil
}
