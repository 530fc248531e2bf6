package bonus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/gaming"
	"github.com/google/uuid"
)

// wagerMatchState is the wager-match request plus the round guard persisted
// in the transaction's Request blob: a round is matched at most once per
// transaction, no matter how many drains run before the next round starts.
type wagerMatchState struct {
	domain.WagerMatchRequest
	LastMatchedRound int64 `json:"last_matched_round,omitempty"`
}

// wagerMatchCarry is the continuation threaded between consecutive
// wager-match transactions within one drain pass: the round's matchable
// budget not yet consumed by an earlier sibling. Without it a second
// concurrent wager-match transaction would re-match an amount the first one
// already consumed this round.
type wagerMatchCarry struct {
	remaining int64
}

// wagerMatchStrategy matches the player's wagers incrementally at the end of
// each game round, up to the requested award cap.
type wagerMatchStrategy struct {
	*strategyBase
}

func newWagerMatchStrategy(base *strategyBase) *wagerMatchStrategy {
	return &wagerMatchStrategy{strategyBase: base}
}

func (s *wagerMatchStrategy) Mode() domain.BonusMode { return domain.ModeWagerMatch }

func (s *wagerMatchStrategy) CreateTransaction(ctx context.Context, req domain.BonusRequest) (*domain.BonusTransaction, error) {
	if _, ok := req.(domain.WagerMatchRequest); !ok {
		return nil, domain.ErrValidation("wager match strategy requires a WagerMatchRequest")
	}
	return s.createTransaction(ctx, req)
}

func (s *wagerMatchStrategy) CanPay(tx *domain.BonusTransaction) bool {
	if tx.State != domain.StatePending ||
		s.GamePlay.UncommittedState() != gaming.StateGameEnded {
		return false
	}
	st, err := s.decode(tx)
	return err == nil && st.LastMatchedRound != s.GamePlay.GameRoundID()
}

func (s *wagerMatchStrategy) AuditAllowed(*domain.BonusTransaction) bool { return true }

func (s *wagerMatchStrategy) Pay(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID, cont Continuation) (Continuation, error) {
	if !s.CanPay(tx) {
		return cont, nil
	}
	st, err := s.decode(tx)
	if err != nil {
		return cont, err
	}

	// The round's matchable budget: the final wager, less whatever an
	// earlier same-mode transaction consumed this pass.
	budget := s.GamePlay.RoundWager()
	if carry, ok := cont.(wagerMatchCarry); ok {
		budget = min64(budget, carry.remaining)
	}

	remaining := tx.TotalAmount() - tx.PaidAmount()
	authorized := min64(remaining, budget)
	if authorized > 0 {
		cashable, nonCash, promo := splitIncrement(tx, authorized)
		paid, err := s.pay(ctx, tx, token, cashable, nonCash, promo, "wager match")
		if err != nil {
			return cont, err
		}
		if !paid {
			return wagerMatchCarry{remaining: budget}, nil
		}
	}

	next := wagerMatchCarry{remaining: budget - authorized}
	if tx.State == domain.StatePending {
		st.LastMatchedRound = s.GamePlay.GameRoundID()
		if err := s.persistState(ctx, tx, st); err != nil {
			return next, err
		}
	}
	if tx.PaidAmount() >= tx.TotalAmount() {
		if err := s.commit(ctx, tx, domain.ExceptionNone, ""); err != nil {
			return next, err
		}
	}
	return next, nil
}

// Cancel: zero credits never cancels a wager match — money may already be
// owed and the match must be allowed to finish.
func (s *wagerMatchStrategy) Cancel(ctx context.Context, tx *domain.BonusTransaction, reason domain.CancelReason) bool {
	switch reason {
	case domain.CancelZeroCredits:
		return false
	case domain.CancelIDInvalidated:
		st, err := s.decode(tx)
		if err != nil || !st.IDRequired {
			return false
		}
	}
	return s.cancel(ctx, tx, reason)
}

// Recover reconciles applied transfers; a wager match stays pending across
// rounds, so it only finalizes when the cap was already consumed.
func (s *wagerMatchStrategy) Recover(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID) error {
	inFlight, err := s.recoverPayment(ctx, tx, token)
	if err != nil || inFlight {
		return err
	}
	if tx.PaidAmount() >= tx.TotalAmount() {
		return s.commit(ctx, tx, domain.ExceptionNone, "")
	}
	return nil
}

func (s *wagerMatchStrategy) decode(tx *domain.BonusTransaction) (wagerMatchState, error) {
	var st wagerMatchState
	if err := json.Unmarshal(tx.Request, &st); err != nil {
		return st, domain.ErrInternal("decode wager match state", err)
	}
	return st, nil
}

func (s *wagerMatchStrategy) persistState(ctx context.Context, tx *domain.BonusTransaction, st wagerMatchState) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal wager match state: %w", err)
	}
	tx.Request = blob
	return s.Ledger.UpdateTransaction(ctx, tx)
}

// splitIncrement carves an authorized total out of the transaction's unpaid
// categories, cashable first.
func splitIncrement(tx *domain.BonusTransaction, authorized int64) (cashable, nonCash, promo int64) {
	cashable = min64(authorized, tx.CashableAmount-tx.PaidCashableAmount)
	authorized -= cashable
	nonCash = min64(authorized, tx.NonCashAmount-tx.PaidNonCashAmount)
	authorized -= nonCash
	promo = min64(authorized, tx.PromoAmount-tx.PaidPromoAmount)
	return cashable, nonCash, promo
}
