package bonus

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/google/uuid"
)

const (
	coordinatorOwner = "bonus-handler"

	// defaultTokenTimeout bounds the wait for the EGM payment token when a
	// drain is triggered while another component is moving money.
	defaultTokenTimeout = 5 * time.Second
)

// gameEndDelayBudget limits how long a host-requested game end delay keeps
// being applied to new rounds.
type gameEndDelayBudget struct {
	delay     time.Duration
	deadline  time.Time
	gamesLeft int

	// requireBoth makes the budget persist until the deadline passes and the
	// game count runs out; otherwise either exhausts it.
	requireBoth bool
}

func (b *gameEndDelayBudget) exhausted(now time.Time) bool {
	timeUp := !b.deadline.IsZero() && now.After(b.deadline)
	gamesUp := b.gamesLeft <= 0
	if b.requireBoth {
		return timeUp && gamesUp
	}
	return timeUp || gamesUp
}

// Handler coordinates bonus payment across all modes: one durable payment
// marker, one EGM payment token, one drain at a time.
type Handler struct {
	deps    Deps
	factory *StrategyFactory
	log     *slog.Logger

	tokenTimeout time.Duration
	deviceID     uuid.UUID

	mu         sync.Mutex
	marker     *domain.PaymentMarker
	committing bool
	inAudit    bool
	delay      *gameEndDelayBudget

	// started tracks transactions whose BonusStarted event went out, so
	// repeated drain passes over a not-yet-paying transaction do not
	// duplicate the signal.
	started map[int64]bool
}

// NewHandler wires the coordinator. deviceID identifies the cabinet on
// gameplay-scoped events.
func NewHandler(deps Deps, factory *StrategyFactory, deviceID uuid.UUID) (*Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Handler{
		deps:         deps,
		factory:      factory,
		log:          deps.Logger.With("component", "bonus_handler"),
		tokenTimeout: defaultTokenTimeout,
		deviceID:     deviceID,
		started:      make(map[int64]bool),
	}, nil
}

// Initialize kicks off crash recovery in the background. Call once at boot,
// before the handler is exposed to traffic.
func (h *Handler) Initialize(ctx context.Context) {
	go func() {
		if err := h.Recover(ctx); err != nil {
			h.log.Error("bonus recovery failed", "error", err)
		}
	}()
}

// InAudit reports whether the operator menu is currently open.
func (h *Handler) InAudit() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inAudit
}

// Award validates and records a bonus request. The returned transaction may
// already be committed with an exception when validation failed; business
// failures are never errors. An unsupported mode returns (nil, nil).
func (h *Handler) Award(ctx context.Context, req domain.BonusRequest, audit bool) (*domain.BonusTransaction, error) {
	if req == nil {
		return nil, domain.ErrValidation("nil bonus request")
	}
	strat := h.factory.ForMode(req.Mode())
	if strat == nil {
		h.log.Warn("no strategy for mode, request ignored", "mode", req.Mode().String())
		return nil, nil
	}

	tx, err := strat.CreateTransaction(ctx, req)
	if err != nil {
		return nil, err
	}

	if tx.State == domain.StatePending && strat.CanPay(tx) && (!audit || strat.AuditAllowed(tx)) {
		h.Commit(ctx, uuid.Nil, audit)
	}
	return tx, nil
}

// Commit triggers a payment drain. token may be a payment token already
// granted by the EGM; uuid.Nil makes the handler acquire its own. Reports
// whether a drain started.
func (h *Handler) Commit(ctx context.Context, token uuid.UUID, audit bool) bool {
	payable, err := h.payable(ctx, audit)
	if err != nil {
		h.log.Error("recall for commit failed", "error", err)
		return false
	}
	if len(payable) == 0 {
		return false
	}

	// Reserve the drain slot under the mutex, but acquire the token and
	// persist the marker outside it: RequestTransaction can block up to the
	// token timeout.
	h.mu.Lock()
	if h.marker != nil || h.committing {
		// A drain is already running or being set up.
		h.mu.Unlock()
		return false
	}
	h.committing = true
	h.mu.Unlock()

	owned := token == uuid.Nil
	if owned {
		if h.deps.Coordinator.IsTransactionActive() {
			h.endCommitAttempt()
			return false
		}
		token = h.deps.Coordinator.RequestTransaction(coordinatorOwner, h.tokenTimeout)
		if token == uuid.Nil {
			h.endCommitAttempt()
			return false
		}
	}

	marker := domain.PaymentMarker{TransactionID: token, OwnedTransaction: owned}
	if err := h.deps.Markers.Save(ctx, marker); err != nil {
		if owned {
			h.deps.Coordinator.ReleaseTransaction(token)
		}
		h.endCommitAttempt()
		h.log.Error("save payment marker failed", "error", err)
		return false
	}
	h.mu.Lock()
	h.marker = &marker
	h.committing = false
	h.mu.Unlock()

	go h.drain(context.WithoutCancel(ctx), payable, token, owned, audit)
	return true
}

func (h *Handler) endCommitAttempt() {
	h.mu.Lock()
	h.committing = false
	h.mu.Unlock()
}

// payable snapshots the pending transactions whose strategy is ready to pay,
// in drain order.
func (h *Handler) payable(ctx context.Context, audit bool) ([]*domain.BonusTransaction, error) {
	all, err := h.deps.Ledger.RecallTransactions(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.BonusTransaction
	for _, tx := range all {
		if tx.State != domain.StatePending {
			continue
		}
		strat := h.factory.ForMode(tx.Mode)
		if strat == nil || !strat.CanPay(tx) {
			continue
		}
		if audit && !strat.AuditAllowed(tx) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mode != out[j].Mode {
			return out[i].Mode < out[j].Mode
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out, nil
}

// drain pays the snapshot under the token, threading one continuation per
// mode across successive transactions of that mode.
func (h *Handler) drain(ctx context.Context, payable []*domain.BonusTransaction, token uuid.UUID, owned, audit bool) {
	conts := make(map[domain.BonusMode]Continuation)
	paid := 0
	progress := false
	drained := make(map[int64]bool, len(payable))

	for _, tx := range payable {
		drained[tx.TransactionID] = true
		strat := h.factory.ForMode(tx.Mode)
		if strat == nil {
			continue
		}
		if tx.PaidAmount() == 0 && h.announceStart(tx.TransactionID) {
			h.publish(ctx, domain.NewBonusStartedEvent(tx))
		}
		before := tx.PaidAmount()
		cont, err := strat.Pay(ctx, tx, token, conts[tx.Mode])
		if err != nil {
			h.log.Error("pay failed, continuing drain",
				"transaction_id", tx.TransactionID, "mode", tx.Mode.String(), "error", err)
			continue
		}
		conts[tx.Mode] = cont
		if tx.PaidAmount() > before {
			paid++
			progress = true
		}
		if tx.State != domain.StatePending {
			progress = true
			h.forgetStart(tx.TransactionID)
		}
	}

	h.mu.Lock()
	h.marker = nil
	h.mu.Unlock()
	if err := h.deps.Markers.Clear(ctx); err != nil {
		h.log.Error("clear payment marker failed", "error", err)
	}
	if owned {
		h.deps.Coordinator.ReleaseTransaction(token)
	}
	h.publish(ctx, domain.NewBonusCommitCompletedEvent(token, paid))

	// New work may have become payable mid-drain. Re-drain when this pass
	// moved money or committed something, or when the payable set now holds
	// transactions this pass never saw; a pass where every strategy declined
	// and nothing new arrived must not spin.
	remaining, err := h.payable(ctx, audit)
	if err != nil || len(remaining) == 0 {
		return
	}
	if progress || hasNewWork(drained, remaining) {
		h.Commit(ctx, uuid.Nil, audit)
	}
}

// hasNewWork reports whether any payable transaction was absent from the pass
// just completed.
func hasNewWork(drained map[int64]bool, payable []*domain.BonusTransaction) bool {
	for _, tx := range payable {
		if !drained[tx.TransactionID] {
			return true
		}
	}
	return false
}

// announceStart reports whether the started signal for the transaction still
// has to be published, and records it as sent.
func (h *Handler) announceStart(transactionID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started[transactionID] {
		return false
	}
	h.started[transactionID] = true
	return true
}

func (h *Handler) forgetStart(transactionID int64) {
	h.mu.Lock()
	delete(h.started, transactionID)
	h.mu.Unlock()
}

// Cancel withdraws the pending transaction with the given ledger id. Reports
// whether the transaction's strategy accepted the cancellation.
func (h *Handler) Cancel(ctx context.Context, transactionID int64) (bool, error) {
	tx, err := h.deps.Ledger.FindTransaction(ctx, transactionID)
	if err != nil {
		return false, err
	}
	return h.cancelOne(ctx, tx, domain.CancelAny), nil
}

// CancelBonus withdraws by the host-assigned bonus id.
func (h *Handler) CancelBonus(ctx context.Context, bonusID string) (bool, error) {
	tx, err := h.deps.Ledger.FindByBonusID(ctx, bonusID)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, domain.ErrNotFound("bonus", bonusID)
	}
	return h.cancelOne(ctx, tx, domain.CancelAny), nil
}

func (h *Handler) cancelOne(ctx context.Context, tx *domain.BonusTransaction, reason domain.CancelReason) bool {
	strat := h.factory.ForMode(tx.Mode)
	if strat == nil {
		return false
	}
	if !strat.Cancel(ctx, tx, reason) {
		return false
	}
	h.forgetStart(tx.TransactionID)
	return true
}

// cancelAllPending sweeps every pending transaction with the given reason.
func (h *Handler) cancelAllPending(ctx context.Context, reason domain.CancelReason) {
	all, err := h.deps.Ledger.RecallTransactions(ctx)
	if err != nil {
		h.log.Error("recall for cancel sweep failed", "error", err)
		return
	}
	for _, tx := range all {
		if tx.State != domain.StatePending {
			continue
		}
		h.cancelOne(ctx, tx, reason)
	}
}

// Acknowledge moves a committed transaction to its terminal state. Repeat
// acknowledgements are accepted and report false.
func (h *Handler) Acknowledge(ctx context.Context, transactionID int64) (bool, error) {
	tx, err := h.deps.Ledger.FindTransaction(ctx, transactionID)
	if err != nil {
		return false, err
	}
	return h.acknowledgeTx(ctx, tx)
}

// AcknowledgeBonus acknowledges by the host-assigned bonus id.
func (h *Handler) AcknowledgeBonus(ctx context.Context, bonusID string) (bool, error) {
	tx, err := h.deps.Ledger.FindByBonusID(ctx, bonusID)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, domain.ErrNotFound("bonus", bonusID)
	}
	return h.acknowledgeTx(ctx, tx)
}

func (h *Handler) acknowledgeTx(ctx context.Context, tx *domain.BonusTransaction) (bool, error) {
	if tx.State == domain.StatePending {
		return false, domain.ErrConflict("transaction is still pending")
	}
	if !tx.SetAcknowledged() {
		return false, nil
	}
	return true, h.deps.Ledger.UpdateTransaction(ctx, tx)
}

// Recover replays the durable payment marker after a restart. Safe to call
// when no marker exists.
func (h *Handler) Recover(ctx context.Context) error {
	marker, err := h.deps.Markers.Load(ctx)
	if err != nil {
		return err
	}
	if marker == nil {
		return nil
	}
	if !marker.OwnedTransaction {
		// The token belonged to another EGM component; it recovers itself.
		return h.deps.Markers.Clear(ctx)
	}

	h.log.Info("recovering interrupted payment", "token", marker.TransactionID)
	all, err := h.deps.Ledger.RecallTransactions(ctx)
	if err != nil {
		return err
	}
	for _, tx := range all {
		if tx.State != domain.StatePending {
			continue
		}
		strat := h.factory.ForMode(tx.Mode)
		if strat == nil {
			continue
		}
		if err := strat.Recover(ctx, tx, marker.TransactionID); err != nil {
			h.log.Error("transaction recovery failed",
				"transaction_id", tx.TransactionID, "error", err)
		}
	}
	if err := h.deps.Markers.Clear(ctx); err != nil {
		return err
	}
	h.deps.Coordinator.ReleaseTransaction(marker.TransactionID)

	h.Commit(ctx, uuid.Nil, false)
	return nil
}

// SetGameEndDelay applies a flat end-of-round hold. Zero clears any hold and
// budget immediately.
func (h *Handler) SetGameEndDelay(ctx context.Context, delay time.Duration) {
	h.mu.Lock()
	h.delay = nil
	h.mu.Unlock()

	h.deps.GamePlay.SetGameEndDelay(delay)
	if delay == 0 {
		h.publish(ctx, domain.NewGameDelayEndedEvent(h.deviceID))
		return
	}
	h.publish(ctx, domain.NewGameDelayStartedEvent(h.deviceID, delay))
}

// SetGameEndDelayBudget applies the hold for a bounded window: at most
// duration of wall time and games rounds. With requireBoth the hold stays
// until both run out.
func (h *Handler) SetGameEndDelayBudget(ctx context.Context, delay, duration time.Duration, games int, requireBoth bool) {
	if delay == 0 || (games <= 0 && duration <= 0) {
		h.SetGameEndDelay(ctx, 0)
		return
	}
	budget := &gameEndDelayBudget{
		delay:       delay,
		gamesLeft:   games,
		requireBoth: requireBoth,
	}
	if duration > 0 {
		budget.deadline = time.Now().Add(duration)
	}
	h.mu.Lock()
	h.delay = budget
	h.mu.Unlock()

	h.deps.GamePlay.SetGameEndDelay(delay)
	h.publish(ctx, domain.NewGameDelayStartedEvent(h.deviceID, delay))
}

// SkipGameEndDelay releases the current hold without touching the budget:
// the next round picks the budgeted delay back up.
func (h *Handler) SkipGameEndDelay(ctx context.Context) {
	h.deps.GamePlay.SetGameEndDelay(0)
	h.publish(ctx, domain.NewGameDelayEndedEvent(h.deviceID))
}

// HandleGameStarted consumes one game from the delay budget. While the budget
// survives it re-applies its hold, so a skipped round does not end the window
// early; once it runs out the hold is dropped. Sticky award messages clear
// when play resumes.
func (h *Handler) HandleGameStarted(ctx context.Context) {
	h.deps.Display.RemoveSticky()

	h.mu.Lock()
	budget := h.delay
	if budget != nil {
		budget.gamesLeft--
		if budget.exhausted(time.Now()) {
			h.delay = nil
			h.mu.Unlock()
			h.deps.GamePlay.SetGameEndDelay(0)
			h.publish(ctx, domain.NewGameDelayEndedEvent(h.deviceID))
			return
		}
		delay := budget.delay
		h.mu.Unlock()
		h.deps.GamePlay.SetGameEndDelay(delay)
		return
	}
	h.mu.Unlock()
}

// HandleGameIdle runs the between-rounds housekeeping: expire the delay
// budget, sweep zero-credit cancellations, then try to pay.
func (h *Handler) HandleGameIdle(ctx context.Context) {
	h.mu.Lock()
	if h.delay != nil && h.delay.exhausted(time.Now()) {
		h.delay = nil
		h.mu.Unlock()
		h.deps.GamePlay.SetGameEndDelay(0)
		h.publish(ctx, domain.NewGameDelayEndedEvent(h.deviceID))
	} else {
		h.mu.Unlock()
	}

	if h.deps.Wallet.Balance() == 0 {
		h.cancelAllPending(ctx, domain.CancelZeroCredits)
	}
	h.Commit(ctx, uuid.Nil, h.InAudit())
}

// HandleTransferOutCompleted retries payment after a cashout finished, in
// case a transaction was waiting on the token.
func (h *Handler) HandleTransferOutCompleted(ctx context.Context) {
	h.Commit(ctx, uuid.Nil, h.InAudit())
}

// HandleTransactionCompleted retries payment after another component
// released the EGM payment token.
func (h *Handler) HandleTransactionCompleted(ctx context.Context) {
	h.Commit(ctx, uuid.Nil, h.InAudit())
}

// HandleOperatorMenu tracks audit mode; leaving the menu releases any work
// that was barred while it was open.
func (h *Handler) HandleOperatorMenu(ctx context.Context, entered bool) {
	h.mu.Lock()
	h.inAudit = entered
	h.mu.Unlock()

	if !entered {
		h.Commit(ctx, uuid.Nil, false)
	}
}

// HandleIDInvalidated cancels the transactions that required the now-invalid
// player identity.
func (h *Handler) HandleIDInvalidated(ctx context.Context) {
	h.cancelAllPending(ctx, domain.CancelIDInvalidated)
}

// HandleDisabled is the host-disable sweep: identity-bound work is dropped,
// everything else stays pending for re-enable.
func (h *Handler) HandleDisabled(ctx context.Context) {
	h.cancelAllPending(ctx, domain.CancelIDInvalidated)
}

func (h *Handler) publish(ctx context.Context, draft domain.OutboxDraft) {
	if err := h.deps.Events.Publish(ctx, draft); err != nil {
		h.log.Error("publish event failed", "type", draft.EventType, "error", err)
	}
}
