package gaming

import (
	"context"
	"log/slog"
	"sync"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/google/uuid"
)

// TransferOut is the contract of the transfer-out subsystem that performs
// asynchronous money movement (handpay, voucher, wat). Completion or failure
// is announced through the TransferRegistry keyed by trace id.
type TransferOut interface {
	// TransferOut submits a transfer request. It reports whether the rail
	// accepted the request; the result arrives later via the registry.
	TransferOut(ctx context.Context, token uuid.UUID, rail domain.TransferRail,
		cashable, promo, nonCash int64, associated []int64, reason string, traceID uuid.UUID) bool

	// Recover returns the trace id of a transfer still in flight under the
	// given payment token, or uuid.Nil when none is.
	Recover(token uuid.UUID) uuid.UUID
}

// TransferResult is delivered when a transfer completes or fails.
type TransferResult struct {
	TraceID   uuid.UUID
	Completed bool

	// Rail observed on the resulting ledger entry; the transfer subsystem
	// may settle on a different rail than requested (e.g. voucher falls
	// back to handpay when the printer is out of paper).
	Rail domain.TransferRail

	// CreditHandpay marks a handpay the attendant keyed off to the credit
	// meter; such payouts meter as machine-paid, not attendant-paid.
	CreditHandpay bool
}

// TransferRegistry holds one waiter per in-flight transfer, keyed by trace
// id. The waiter channel is buffered so Resolve never blocks the event
// dispatcher, and the entry is removed on resolution.
type TransferRegistry struct {
	mu      sync.Mutex
	waiters map[uuid.UUID]chan TransferResult
	logger  *slog.Logger
}

// NewTransferRegistry creates an empty registry.
func NewTransferRegistry(logger *slog.Logger) *TransferRegistry {
	return &TransferRegistry{
		waiters: make(map[uuid.UUID]chan TransferResult),
		logger:  logger,
	}
}

// Register creates a waiter for the given trace id. The returned channel
// receives exactly one result.
func (r *TransferRegistry) Register(traceID uuid.UUID) <-chan TransferResult {
	ch := make(chan TransferResult, 1)
	r.mu.Lock()
	r.waiters[traceID] = ch
	r.mu.Unlock()
	return ch
}

// Unregister discards the waiter for a transfer that was never submitted.
func (r *TransferRegistry) Unregister(traceID uuid.UUID) {
	r.mu.Lock()
	delete(r.waiters, traceID)
	r.mu.Unlock()
}

// Resolve delivers a completion or failure notification. A result with no
// registered waiter is dropped; recovery re-derives such transfers from the
// payout ledger.
func (r *TransferRegistry) Resolve(res TransferResult) {
	r.mu.Lock()
	ch, ok := r.waiters[res.TraceID]
	if ok {
		delete(r.waiters, res.TraceID)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("transfer result without waiter", "trace_id", res.TraceID, "completed", res.Completed)
		return
	}
	ch <- res
}

// InFlight reports whether a waiter is registered for the trace id.
func (r *TransferRegistry) InFlight(traceID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.waiters[traceID]
	return ok
}
