package bonus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/gaming"
	"github.com/attaboy/egm-bonus/internal/policy"
	"github.com/google/uuid"
)

// Deps bundles the collaborators shared by the handler and every strategy.
type Deps struct {
	Ledger      Ledger
	Markers     MarkerStore
	Payouts     PayoutStore
	Events      Publisher
	Wallet      gaming.Wallet
	Transfers   gaming.TransferOut
	Registry    *gaming.TransferRegistry
	GamePlay    gaming.GamePlay
	Identity    gaming.IdentityProvider
	Display     gaming.MessageDisplay
	Meters      gaming.MeterProvider
	Coordinator gaming.PaymentCoordinator
	PayPolicy   policy.PayMethodPolicy
	Limits      policy.AwardLimitPolicy
	Logger      *slog.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Ledger == nil:
		return fmt.Errorf("bonus: nil Ledger")
	case d.Markers == nil:
		return fmt.Errorf("bonus: nil MarkerStore")
	case d.Payouts == nil:
		return fmt.Errorf("bonus: nil PayoutStore")
	case d.Events == nil:
		return fmt.Errorf("bonus: nil Publisher")
	case d.Wallet == nil:
		return fmt.Errorf("bonus: nil Wallet")
	case d.Transfers == nil:
		return fmt.Errorf("bonus: nil TransferOut")
	case d.Registry == nil:
		return fmt.Errorf("bonus: nil TransferRegistry")
	case d.GamePlay == nil:
		return fmt.Errorf("bonus: nil GamePlay")
	case d.Identity == nil:
		return fmt.Errorf("bonus: nil IdentityProvider")
	case d.Display == nil:
		return fmt.Errorf("bonus: nil MessageDisplay")
	case d.Meters == nil:
		return fmt.Errorf("bonus: nil MeterProvider")
	case d.Coordinator == nil:
		return fmt.Errorf("bonus: nil PaymentCoordinator")
	case d.Logger == nil:
		return fmt.Errorf("bonus: nil Logger")
	}
	return nil
}

// strategyBase carries the payment machinery every concrete strategy shares.
type strategyBase struct {
	Deps
}

// createTransaction persists a new pending transaction for the request and
// runs the common validation. The transaction is always persisted before any
// validation side effect so audit replay sees every request.
func (b *strategyBase) createTransaction(ctx context.Context, req domain.BonusRequest) (*domain.BonusTransaction, error) {
	core := req.Core()

	// BonusID is the caller's idempotency key.
	if core.BonusID != "" {
		existing, err := b.Ledger.FindByBonusID(ctx, core.BonusID)
		if err != nil {
			return nil, fmt.Errorf("bonus id lookup: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	if n, err := b.pendingCount(ctx); err != nil {
		return nil, err
	} else if max := b.Ledger.MaxTransactions(); max > 0 && n >= max {
		return nil, domain.ErrPendingLimit(max)
	}

	blob, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal bonus request: %w", err)
	}

	tx := &domain.BonusTransaction{
		BonusID:        core.BonusID,
		DeviceID:       core.DeviceID,
		Mode:           req.Mode(),
		PayMethod:      core.PayMethod,
		CashableAmount: core.CashableAmount,
		NonCashAmount:  core.NonCashAmount,
		PromoAmount:    core.PromoAmount,
		State:          domain.StatePending,
		Request:        blob,
		CreatedAt:      time.Now(),
	}
	if err := b.Ledger.AddTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("persist bonus transaction: %w", err)
	}
	b.publish(ctx, domain.NewBonusPendingEvent(tx))

	// A host may pre-fail a request; it commits immediately and never
	// enters the payable set.
	if core.Exception != domain.ExceptionNone {
		if err := b.commit(ctx, tx, core.Exception, ""); err != nil {
			return nil, err
		}
		return tx, nil
	}

	if exc, info := b.validate(ctx, tx, core); exc != domain.ExceptionNone {
		if err := b.commit(ctx, tx, exc, info); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func (b *strategyBase) pendingCount(ctx context.Context) (int, error) {
	txs, err := b.Ledger.RecallTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("recall transactions: %w", err)
	}
	n := 0
	for _, tx := range txs {
		if tx.State == domain.StatePending {
			n++
		}
	}
	return n, nil
}

// validate runs the common creation checks. A non-empty exception fails the
// transaction terminally; no payment occurs.
func (b *strategyBase) validate(ctx context.Context, tx *domain.BonusTransaction, core domain.RequestCore) (domain.BonusException, string) {
	if core.IDRequired {
		playerID := b.Identity.CurrentPlayerID()
		if playerID == "" {
			return domain.ExceptionNoPlayerID, ""
		}
		if core.PlayerID != "" && core.PlayerID != playerID {
			return domain.ExceptionInvalidPlayerID, ""
		}
	}

	if !core.OverrideEligibility && !b.Limits.Eligible(b.GamePlay.RoundStartedAt(), time.Now()) {
		return domain.ExceptionFailed, domain.FailureIneligible
	}

	if ev := policy.EvaluateAwardLimit(b.Limits, tx.Mode, tx.TotalAmount()); !ev.Allowed {
		b.showLimitMessage(tx)
		b.publish(ctx, domain.NewDisplayLimitExceededEvent(tx, ev.Limit))
		return domain.ExceptionFailed, ev.FailureInfo
	}

	return domain.ExceptionNone, ""
}

func (b *strategyBase) showLimitMessage(tx *domain.BonusTransaction) {
	text := b.Limits.DisplayLimitText
	if text == "" {
		text = defaultAwardMessage(tx.TotalAmount())
	}
	b.Display.Show(uuid.New(), text, b.Limits.DisplayLimitDuration)
}

func defaultAwardMessage(total int64) string {
	return fmt.Sprintf("Bonus Award: $%d.%02d", total/100, total%100)
}

// pay moves the given amounts under the payment token. Credit pays
// synchronously into the wallet; the other rails issue an asynchronous
// transfer and suspend until its completion event. The payout intent is
// durably recorded before the transfer is awaited.
//
// Returns paid=false when the rail rejected or failed the payment; the
// transaction has then already been committed with an exception.
func (b *strategyBase) pay(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID, cashable, nonCash, promo int64, reason string) (bool, error) {
	total := cashable + nonCash + promo
	if total < 0 {
		if err := b.commit(ctx, tx, domain.ExceptionFailed, domain.FailureInvalidAwardAmount); err != nil {
			return false, err
		}
		return false, nil
	}
	if total == 0 {
		return true, nil
	}

	method := b.PayPolicy.Determine(total, tx.PayMethod)
	if method == domain.PayMethodCredit {
		if err := b.Wallet.Deposit(ctx, cashable, nonCash, promo); err != nil {
			b.Logger.Error("credit deposit failed", "transaction_id", tx.TransactionID, "error", err)
			if cerr := b.commit(ctx, tx, domain.ExceptionPayMethodNotAvailable, err.Error()); cerr != nil {
				return false, cerr
			}
			return false, nil
		}
		tx.PayMethod = domain.PayMethodCredit
		return true, b.completePayment(ctx, tx, cashable, nonCash, promo, domain.PayMethodCredit, false)
	}

	rail, ok := domain.RailForPayMethod(method)
	if !ok {
		if err := b.commit(ctx, tx, domain.ExceptionPayMethodNotAvailable, string(method)); err != nil {
			return false, err
		}
		return false, nil
	}

	traceID := uuid.New()
	wait := b.Registry.Register(traceID)
	payout := &domain.Payout{
		TraceID:        traceID,
		TransactionID:  tx.TransactionID,
		Rail:           rail,
		CashableAmount: cashable,
		NonCashAmount:  nonCash,
		PromoAmount:    promo,
		CreatedAt:      time.Now(),
	}
	// Record intent before the transfer can announce completion, so a crash
	// in between is recoverable from the payout ledger alone.
	if err := b.Payouts.Add(ctx, payout); err != nil {
		b.Registry.Unregister(traceID)
		return false, fmt.Errorf("persist payout intent: %w", err)
	}

	if !b.Transfers.TransferOut(ctx, token, rail, cashable, promo, nonCash, tx.AssociatedTransactions, reason, traceID) {
		b.Registry.Unregister(traceID)
		if err := b.Payouts.Void(ctx, traceID); err != nil {
			b.Logger.Error("void rejected payout", "trace_id", traceID, "error", err)
		}
		if err := b.commit(ctx, tx, domain.ExceptionPayMethodNotAvailable, "transfer rejected"); err != nil {
			return false, err
		}
		return false, nil
	}

	res := <-wait
	return b.settleTransfer(ctx, tx, payout, res)
}

// settleTransfer applies a resolved transfer result to the transaction.
func (b *strategyBase) settleTransfer(ctx context.Context, tx *domain.BonusTransaction, payout *domain.Payout, res gaming.TransferResult) (bool, error) {
	if !res.Completed {
		if err := b.Payouts.Void(ctx, payout.TraceID); err != nil {
			b.Logger.Error("void failed payout", "trace_id", payout.TraceID, "error", err)
		}
		if err := b.commit(ctx, tx, domain.ExceptionPayMethodNotAvailable, "transfer failed"); err != nil {
			return false, err
		}
		return false, nil
	}

	// The actual rail comes from the resulting ledger entry, not the request.
	tx.PayMethod = domain.PayMethodForRail(res.Rail)
	err := b.completePayment(ctx, tx,
		payout.CashableAmount, payout.NonCashAmount, payout.PromoAmount,
		tx.PayMethod, res.CreditHandpay)
	return err == nil, err
}

// completePayment accumulates paid amounts, persists, and updates the EGM
// meters split by pay rail and by attendant-vs-machine paid.
func (b *strategyBase) completePayment(ctx context.Context, tx *domain.BonusTransaction, cashable, nonCash, promo int64, method domain.PayMethod, creditHandpay bool) error {
	if err := tx.ApplyPaid(cashable, nonCash, promo); err != nil {
		return err
	}
	if err := b.Ledger.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("persist payment: %w", err)
	}

	total := cashable + nonCash + promo
	if method == domain.PayMethodHandpay {
		b.Meters.Increment(gaming.MeterBonusHandpayPaid, total)
		if creditHandpay {
			b.Meters.Increment(gaming.MeterBonusMachinePaid, total)
		} else {
			b.Meters.Increment(gaming.MeterBonusAttendantPaid, total)
		}
	} else {
		b.Meters.Increment(gaming.MeterBonusEgmPaid, total)
		b.Meters.Increment(gaming.MeterBonusMachinePaid, total)
	}

	if !tx.IsFullyPaid() {
		b.publish(ctx, domain.NewPartialBonusPaidEvent(tx))
	}
	return nil
}

// commit is the sole Pending→Committed transition.
func (b *strategyBase) commit(ctx context.Context, tx *domain.BonusTransaction, exception domain.BonusException, info string) error {
	if err := tx.SetCommitted(exception, info); err != nil {
		return err
	}
	if err := b.Ledger.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("persist commit: %w", err)
	}

	switch exception {
	case domain.ExceptionNone:
		b.publish(ctx, domain.NewBonusAwardedEvent(tx))
	case domain.ExceptionCancelled:
		// Cancellation publishes its own event with the reason attached.
	default:
		b.publish(ctx, domain.NewBonusFailedEvent(tx))
	}
	return nil
}

// cancel applies the shared cancellation rule: a transaction that has not
// moved money is withdrawn; one that has is converted into a normal commit.
func (b *strategyBase) cancel(ctx context.Context, tx *domain.BonusTransaction, reason domain.CancelReason) bool {
	if tx.State != domain.StatePending {
		return false
	}

	if tx.PaidAmount() > 0 {
		if err := b.commit(ctx, tx, domain.ExceptionNone, ""); err != nil {
			b.Logger.Error("commit on cancel", "transaction_id", tx.TransactionID, "error", err)
			return false
		}
		return true
	}

	if err := b.commit(ctx, tx, domain.ExceptionCancelled, string(reason)); err != nil {
		b.Logger.Error("cancel commit", "transaction_id", tx.TransactionID, "error", err)
		return false
	}
	b.publish(ctx, domain.NewBonusCancelledEvent(tx, reason))
	return true
}

// recoverPayment reconciles a transaction against the transfer-out subsystem
// and the payout ledger after a restart. It reports whether a transfer is
// still in flight (and being awaited on a fresh goroutine).
func (b *strategyBase) recoverPayment(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID) (inFlight bool, err error) {
	if traceID := b.Transfers.Recover(token); traceID != uuid.Nil {
		payout, perr := b.Payouts.FindByTraceID(ctx, traceID)
		if perr != nil {
			return false, fmt.Errorf("find payout %s: %w", traceID, perr)
		}
		if payout != nil && payout.TransactionID == tx.TransactionID && !payout.Voided {
			wait := b.Registry.Register(traceID)
			go func() {
				res := <-wait
				if _, serr := b.settleTransfer(context.Background(), tx, payout, res); serr != nil {
					b.Logger.Error("settle recovered transfer", "trace_id", traceID, "error", serr)
				}
			}()
			return true, nil
		}
	}

	// Nothing in flight: fold already-applied transfers found in the payout
	// ledger into the paid amounts.
	payouts, err := b.Payouts.ListByTransaction(ctx, tx.TransactionID)
	if err != nil {
		return false, fmt.Errorf("list payouts: %w", err)
	}
	var c, n, p int64
	for _, po := range payouts {
		if po.Voided {
			continue
		}
		c += po.CashableAmount
		n += po.NonCashAmount
		p += po.PromoAmount
	}
	dc, dn, dp := c-tx.PaidCashableAmount, n-tx.PaidNonCashAmount, p-tx.PaidPromoAmount
	if dc > 0 || dn > 0 || dp > 0 {
		if err := tx.ApplyPaid(max64(dc, 0), max64(dn, 0), max64(dp, 0)); err != nil {
			return false, err
		}
		if err := b.Ledger.UpdateTransaction(ctx, tx); err != nil {
			return false, fmt.Errorf("persist reconciled payment: %w", err)
		}
	}
	return false, nil
}

func (b *strategyBase) publish(ctx context.Context, draft domain.OutboxDraft) {
	if err := b.Events.Publish(ctx, draft); err != nil {
		b.Logger.Error("publish event", "event_type", draft.EventType, "error", err)
	}
}

// showAwardMessage displays the configured (or default) award message.
func (b *strategyBase) showAwardMessage(core domain.RequestCore, total int64) {
	text := core.MessageText
	if text == "" {
		text = defaultAwardMessage(total)
	}
	duration := core.MessageDuration
	if duration == 0 {
		duration = b.Limits.DisplayLimitDuration
	}
	b.Display.Show(uuid.New(), text, duration)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
