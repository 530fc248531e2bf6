package bonus

import (
	"context"
	"encoding/json"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/gaming"
	"github.com/google/uuid"
)

// gameWinStrategy pays game-triggered wins as bonuses once the triggering
// round has ended, folding the payout into the round's recorded win total so
// the displayed win amount includes it.
type gameWinStrategy struct {
	*strategyBase
}

func newGameWinStrategy(base *strategyBase) *gameWinStrategy {
	return &gameWinStrategy{strategyBase: base}
}

func (s *gameWinStrategy) Mode() domain.BonusMode { return domain.ModeGameWin }

func (s *gameWinStrategy) CreateTransaction(ctx context.Context, req domain.BonusRequest) (*domain.BonusTransaction, error) {
	gwReq, ok := req.(domain.GameWinRequest)
	if !ok {
		return nil, domain.ErrValidation("game win strategy requires a GameWinRequest")
	}
	tx, err := s.createTransaction(ctx, req)
	if err != nil {
		return nil, err
	}
	if tx.State == domain.StatePending && gwReq.GameRoundID != 0 {
		tx.Associate(gwReq.GameRoundID)
		if err := s.Ledger.UpdateTransaction(ctx, tx); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func (s *gameWinStrategy) CanPay(tx *domain.BonusTransaction) bool {
	if tx.State != domain.StatePending {
		return false
	}
	state := s.GamePlay.UncommittedState()
	return state == gaming.StateGameEnded || state == gaming.StatePresentationIdle
}

func (s *gameWinStrategy) AuditAllowed(*domain.BonusTransaction) bool { return true }

func (s *gameWinStrategy) Pay(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID, cont Continuation) (Continuation, error) {
	if !s.CanPay(tx) {
		return cont, nil
	}

	remaining := tx.TotalAmount() - tx.PaidAmount()
	paid, err := s.pay(ctx, tx, token,
		tx.CashableAmount-tx.PaidCashableAmount,
		tx.NonCashAmount-tx.PaidNonCashAmount,
		tx.PromoAmount-tx.PaidPromoAmount,
		"game win bonus")
	if err != nil || !paid {
		return cont, err
	}

	s.GamePlay.AddRoundWin(remaining)
	return cont, s.commit(ctx, tx, domain.ExceptionNone, "")
}

func (s *gameWinStrategy) Cancel(ctx context.Context, tx *domain.BonusTransaction, reason domain.CancelReason) bool {
	if reason == domain.CancelIDInvalidated {
		var req domain.GameWinRequest
		if err := json.Unmarshal(tx.Request, &req); err != nil || !req.IDRequired {
			return false
		}
	}
	return s.cancel(ctx, tx, reason)
}

func (s *gameWinStrategy) Recover(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID) error {
	inFlight, err := s.recoverPayment(ctx, tx, token)
	if err != nil || inFlight {
		return err
	}
	if tx.IsFullyPaid() {
		return s.commit(ctx, tx, domain.ExceptionNone, "")
	}
	paid, err := s.pay(ctx, tx, token,
		tx.CashableAmount-tx.PaidCashableAmount,
		tx.NonCashAmount-tx.PaidNonCashAmount,
		tx.PromoAmount-tx.PaidPromoAmount,
		"game win bonus recovery")
	if err != nil || !paid {
		return err
	}
	return s.commit(ctx, tx, domain.ExceptionNone, "")
}
