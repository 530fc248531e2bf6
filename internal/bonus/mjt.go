package bonus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/gaming"
	"github.com/google/uuid"
)

// mjtState is the multiple-jackpot-time request plus the session progress the
// strategy accrues round by round. It lives in the transaction's Request blob
// so progress survives restarts.
type mjtState struct {
	domain.MultipleJackpotTimeRequest

	Started       bool      `json:"started"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	GamesPlayed   int       `json:"games_played"`
	LastPaidRound int64     `json:"last_paid_round"`

	// FixedWager pins the bet for the fixed-bet restriction once the first
	// session round establishes it.
	FixedWager int64 `json:"fixed_wager,omitempty"`
}

// mjtRound is the continuation for one drain pass: the game round a sibling
// transaction already paid, so a second session never multiplies the same
// win twice.
type mjtRound struct {
	paidRound int64
}

// mjtStrategy runs timed multiplied-win sessions across game rounds.
type mjtStrategy struct {
	*strategyBase
}

func newMJTStrategy(base *strategyBase) *mjtStrategy {
	return &mjtStrategy{strategyBase: base}
}

func (s *mjtStrategy) Mode() domain.BonusMode { return domain.ModeMultipleJackpotTime }

func (s *mjtStrategy) CreateTransaction(ctx context.Context, req domain.BonusRequest) (*domain.BonusTransaction, error) {
	mjtReq, ok := req.(domain.MultipleJackpotTimeRequest)
	if !ok {
		return nil, domain.ErrValidation("multiple jackpot time strategy requires a MultipleJackpotTimeRequest")
	}
	tx, err := s.createTransaction(ctx, req)
	if err != nil {
		return nil, err
	}
	if tx.State == domain.StatePending && mjtReq.WinMultiplier <= 1 {
		if err := s.commit(ctx, tx, domain.ExceptionFailed, domain.FailureInvalidAwardAmount); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func (s *mjtStrategy) CanPay(tx *domain.BonusTransaction) bool {
	if tx.State != domain.StatePending {
		return false
	}
	st, err := s.decode(tx)
	if err != nil || st.WinMultiplier <= 1 {
		return false
	}
	if st.LastPaidRound == s.GamePlay.GameRoundID() {
		return false
	}
	state := s.GamePlay.UncommittedState()
	return state == gaming.StatePayGameResults || state == gaming.StateGameEnded
}

func (s *mjtStrategy) AuditAllowed(*domain.BonusTransaction) bool { return true }

func (s *mjtStrategy) Pay(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID, cont Continuation) (Continuation, error) {
	if !s.CanPay(tx) {
		return cont, nil
	}
	st, err := s.decode(tx)
	if err != nil {
		return cont, err
	}

	round := s.GamePlay.GameRoundID()
	if prev, ok := cont.(mjtRound); ok && prev.paidRound == round {
		// A sibling session already took this round; mark it so a later
		// drain in the same round skips this session too.
		st.LastPaidRound = round
		return cont, s.persistState(ctx, tx, st)
	}

	if !st.Started {
		proceed, err := s.startSession(ctx, tx, &st)
		if err != nil || !proceed {
			return cont, err
		}
	}

	if ended, err := s.enforceWagerRestriction(ctx, tx, &st); err != nil || ended {
		return cont, err
	}

	award := multipliedWin(s.GamePlay.RoundWin(), st)
	if award > 0 {
		// The requested total accrues as entitlement is earned.
		tx.CashableAmount += award
		paid, err := s.pay(ctx, tx, token, award, 0, 0, "multiple jackpot time")
		if err != nil {
			return cont, err
		}
		if !paid {
			return mjtRound{paidRound: round}, nil
		}
	}

	st.GamesPlayed++
	st.LastPaidRound = round
	if err := s.persistState(ctx, tx, st); err != nil {
		return cont, err
	}

	if s.sessionComplete(st) {
		if err := s.commit(ctx, tx, domain.ExceptionNone, ""); err != nil {
			return cont, err
		}
		if st.AutoPlay {
			s.publish(ctx, domain.NewAutoPlayRequestedEvent(tx.DeviceID, false))
		}
	}
	return mjtRound{paidRound: round}, nil
}

// startSession applies the start-time and timeout gating. It reports whether
// payment may proceed this round.
func (s *mjtStrategy) startSession(ctx context.Context, tx *domain.BonusTransaction, st *mjtState) (bool, error) {
	now := time.Now()

	start := st.Start
	if start.IsZero() {
		// Fallback when the host gave no explicit start time. The intended
		// interaction of Start and Timeout under AutoStart needs domain
		// confirmation; this mirrors the documented behavior.
		start = tx.CreatedAt
	}
	if now.Before(start) {
		return false, nil
	}

	if st.Timeout > 0 && now.After(start.Add(st.Timeout)) {
		switch st.TimeoutRule {
		case domain.TimeoutExitMode:
			return false, s.commit(ctx, tx, domain.ExceptionFailed, domain.FailureIneligible)
		case domain.TimeoutAutoStart:
			// Auto-start re-validates the wager match before entering.
			if st.WagerRestriction == domain.WagerRestrictionFixedBet &&
				st.RequiredWager > 0 && s.GamePlay.RoundWager() != st.RequiredWager {
				if err := s.commit(ctx, tx, domain.ExceptionCancelled, "auto start wager mismatch"); err != nil {
					return false, err
				}
				s.publish(ctx, domain.NewBonusCancelledEvent(tx, domain.CancelAny))
				return false, nil
			}
		case domain.TimeoutIgnore:
			// Start regardless.
		}
	}

	st.Started = true
	st.StartedAt = now
	if err := s.persistState(ctx, tx, *st); err != nil {
		return false, err
	}
	s.publish(ctx, domain.NewMJTStartedEvent(tx))
	if st.AutoPlay {
		s.publish(ctx, domain.NewAutoPlayRequestedEvent(tx.DeviceID, true))
	}
	return true, nil
}

// enforceWagerRestriction checks the round's wager against the session rule;
// a violation mid-stream fails the whole bonus. Reports whether the session
// ended here.
func (s *mjtStrategy) enforceWagerRestriction(ctx context.Context, tx *domain.BonusTransaction, st *mjtState) (bool, error) {
	wager := s.GamePlay.RoundWager()

	switch st.WagerRestriction {
	case domain.WagerRestrictionMaxBet:
		if wager != s.GamePlay.MaxBet() {
			return true, s.failRestriction(ctx, tx, st)
		}
	case domain.WagerRestrictionFixedBet:
		required := st.RequiredWager
		if required == 0 {
			if st.FixedWager == 0 {
				st.FixedWager = wager
				return false, s.persistState(ctx, tx, *st)
			}
			required = st.FixedWager
		}
		if wager != required {
			return true, s.failRestriction(ctx, tx, st)
		}
	}
	return false, nil
}

func (s *mjtStrategy) failRestriction(ctx context.Context, tx *domain.BonusTransaction, st *mjtState) error {
	if err := s.commit(ctx, tx, domain.ExceptionFailed, domain.FailureWagerRestriction); err != nil {
		return err
	}
	if st.AutoPlay {
		s.publish(ctx, domain.NewAutoPlayRequestedEvent(tx.DeviceID, false))
	}
	return nil
}

func (s *mjtStrategy) sessionComplete(st mjtState) bool {
	if st.GameCount > 0 && st.GamesPlayed >= st.GameCount {
		return true
	}
	if !st.End.IsZero() && time.Now().After(st.End) {
		return true
	}
	if st.EndOnZeroCredits && s.Wallet.Balance() == 0 {
		return true
	}
	return false
}

// multipliedWin computes the session award for a base win: win×multiplier −
// win inside the configured band, zero outside it.
func multipliedWin(win int64, st mjtState) int64 {
	if win <= 0 {
		return 0
	}
	if win < st.MinWin {
		return 0
	}
	if st.MaxWin > 0 && win > st.MaxWin {
		return 0
	}
	return win*st.WinMultiplier - win
}

func (s *mjtStrategy) Cancel(ctx context.Context, tx *domain.BonusTransaction, reason domain.CancelReason) bool {
	if reason == domain.CancelIDInvalidated {
		st, err := s.decode(tx)
		if err != nil || !st.IDRequired {
			return false
		}
	}
	if !s.cancel(ctx, tx, reason) {
		return false
	}
	if st, err := s.decode(tx); err == nil && st.Started && st.AutoPlay {
		s.publish(ctx, domain.NewAutoPlayRequestedEvent(tx.DeviceID, false))
	}
	return true
}

// Recover reconciles applied transfers; a session stays pending unless its
// completion condition was already met before the crash.
func (s *mjtStrategy) Recover(ctx context.Context, tx *domain.BonusTransaction, token uuid.UUID) error {
	inFlight, err := s.recoverPayment(ctx, tx, token)
	if err != nil || inFlight {
		return err
	}
	st, err := s.decode(tx)
	if err != nil {
		return err
	}
	if st.Started && s.sessionComplete(st) {
		return s.commit(ctx, tx, domain.ExceptionNone, "")
	}
	return nil
}

func (s *mjtStrategy) decode(tx *domain.BonusTransaction) (mjtState, error) {
	var st mjtState
	if err := json.Unmarshal(tx.Request, &st); err != nil {
		return st, domain.ErrInternal("decode multiple jackpot time state", err)
	}
	return st, nil
}

func (s *mjtStrategy) persistState(ctx context.Context, tx *domain.BonusTransaction, st mjtState) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal multiple jackpot time state: %w", err)
	}
	tx.Request = blob
	return s.Ledger.UpdateTransaction(ctx, tx)
}
