package bonus

import (
	"context"
	"encoding/json"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/gaming"
	"github.com/google/uuid"
)

// standardStrategy pays host-initiated discretionary awards in full while
// game play is idle.
type standardStrategy struct {
	*strategyBase
}

func newStandardStrategy(base *strategyBase) *standardStrategy {
	return &standardStrategy{strategyBase: base}
}

func (s *standardStrategy) Mode() domain.BonusMode { return domain.ModeStandard }

func (s *standardStrategy) CreateTransaction(ctx context.Context, req domain.BonusRequest) (*domain.BonusTransaction, error) {
	if _, ok := req.(domain.StandardRequest); !ok {
		return nil, domain.ErrValidation("standard strategy requires a StandardRequest")
	}
	return s.createTransaction(ctx, req)
}

func (s *standardStrategy) CanPay(tx *domain.BonusTransaction) bool {
	return tx.State == domain.StatePending &&
		s.GamePlay.UncommittedState() == gaming.StateIdle &&
		!s.GamePlay.InGameRound()
}

func (s *standardStrategy) AuditAllowed(tx *domain.BonusTransaction) bool {
	req, err := s.decode(tx)
	if err != nil {
		return false
	}
	return req.AllowedInAuditMode
}

func (s *standardStrategy) Pay(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID, cont Continuation) (Continuation, error) {
	if !s.CanPay(tx) {
		return cont, nil
	}
	req, err := s.decode(tx)
	if err != nil {
		return cont, err
	}

	paid, err := s.pay(ctx, tx, token,
		tx.CashableAmount-tx.PaidCashableAmount,
		tx.NonCashAmount-tx.PaidNonCashAmount,
		tx.PromoAmount-tx.PaidPromoAmount,
		"bonus award")
	if err != nil || !paid {
		return cont, err
	}

	if err := s.commit(ctx, tx, domain.ExceptionNone, ""); err != nil {
		return cont, err
	}
	s.showAwardMessage(req.Core(), tx.PaidAmount())
	return cont, nil
}

func (s *standardStrategy) Cancel(ctx context.Context, tx *domain.BonusTransaction, reason domain.CancelReason) bool {
	if reason == domain.CancelIDInvalidated {
		req, err := s.decode(tx)
		if err != nil || !req.IDRequired {
			return false
		}
	}
	return s.cancel(ctx, tx, reason)
}

func (s *standardStrategy) Recover(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID) error {
	inFlight, err := s.recoverPayment(ctx, tx, token)
	if err != nil || inFlight {
		return err
	}

	// Nothing outstanding means the crash happened after the last transfer
	// applied; finalize. Otherwise pay the shortfall under the recovered
	// token and commit.
	if tx.IsFullyPaid() {
		return s.commit(ctx, tx, domain.ExceptionNone, "")
	}
	paid, err := s.pay(ctx, tx, token,
		tx.CashableAmount-tx.PaidCashableAmount,
		tx.NonCashAmount-tx.PaidNonCashAmount,
		tx.PromoAmount-tx.PaidPromoAmount,
		"bonus award recovery")
	if err != nil || !paid {
		return err
	}
	return s.commit(ctx, tx, domain.ExceptionNone, "")
}

func (s *standardStrategy) decode(tx *domain.BonusTransaction) (domain.StandardRequest, error) {
	var req domain.StandardRequest
	if err := json.Unmarshal(tx.Request, &req); err != nil {
		return req, domain.ErrInternal("decode standard request", err)
	}
	return req, nil
}
