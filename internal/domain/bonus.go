package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BonusMode selects the strategy that owns a bonus transaction.
// The integer value is the primary sort key of the payment drain, so the
// declaration order here is the payment order across modes.
type BonusMode int

const (
	ModeStandard BonusMode = iota
	ModeGameWin
	ModeWagerMatch
	ModeMultipleJackpotTime
)

func (m BonusMode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeGameWin:
		return "game_win"
	case ModeWagerMatch:
		return "wager_match"
	case ModeMultipleJackpotTime:
		return "multiple_jackpot_time"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseBonusMode maps the wire name back to a mode. Unknown names return
// (0, false); the handler treats an unsupported mode as a no-op.
func ParseBonusMode(s string) (BonusMode, bool) {
	switch s {
	case "standard":
		return ModeStandard, true
	case "game_win":
		return ModeGameWin, true
	case "wager_match":
		return ModeWagerMatch, true
	case "multiple_jackpot_time":
		return ModeMultipleJackpotTime, true
	default:
		return 0, false
	}
}

// BonusState tracks the forward-only lifecycle of a bonus transaction.
type BonusState string

const (
	StatePending      BonusState = "pending"
	StateCommitted    BonusState = "committed"
	StateAcknowledged BonusState = "acknowledged"
)

// PayMethod is the payout rail a bonus is settled on.
type PayMethod string

const (
	PayMethodAny     PayMethod = ""
	PayMethodCredit  PayMethod = "credit"
	PayMethodHandpay PayMethod = "handpay"
	PayMethodVoucher PayMethod = "voucher"
	PayMethodWat     PayMethod = "wat"
)

// BonusException is the terminal failure reason recorded when a transaction
// commits with a non-success outcome. Business failures never cross the
// handler's public surface as errors; they live here.
type BonusException string

const (
	ExceptionNone                  BonusException = ""
	ExceptionNoPlayerID            BonusException = "no_player_id"
	ExceptionInvalidPlayerID       BonusException = "invalid_player_id"
	ExceptionFailed                BonusException = "failed"
	ExceptionNotPlayable           BonusException = "not_playable"
	ExceptionPayMethodNotAvailable BonusException = "pay_method_not_available"
	ExceptionCancelled             BonusException = "cancelled"
)

// Sub-reasons carried in ExceptionInformation alongside ExceptionFailed.
const (
	FailureIneligible              = "ineligible"
	FailureLimitExceeded           = "limit_exceeded"
	FailureWagerMatchLimitExceeded = "wager_match_limit_exceeded"
	FailureInvalidAwardAmount      = "invalid_award_amount"
	FailureAutoPlayNotAllowed      = "auto_play_not_allowed"
	FailureInsufficientFunds       = "insufficient_funds"
	FailureWagerRestriction        = "wager_restriction_violated"
)

// CancelReason gates which strategies allow cancellation.
type CancelReason string

const (
	CancelAny           CancelReason = "any"
	CancelZeroCredits   CancelReason = "zero_credits"
	CancelIDInvalidated CancelReason = "id_invalidated"
)

// BonusTransaction is a bonus_transactions row, the central entity of the
// subsystem. Amounts are integer cents (numeric(15,0)). The Request blob is
// opaque here; only the strategy that created the transaction re-hydrates it.
type BonusTransaction struct {
	TransactionID int64     `json:"transaction_id"`
	BonusID       string    `json:"bonus_id"`
	DeviceID      uuid.UUID `json:"device_id"`
	Mode          BonusMode `json:"mode"`
	PayMethod     PayMethod `json:"pay_method"`

	CashableAmount int64 `json:"cashable_amount"`
	NonCashAmount  int64 `json:"non_cash_amount"`
	PromoAmount    int64 `json:"promo_amount"`

	PaidCashableAmount int64 `json:"paid_cashable_amount"`
	PaidNonCashAmount  int64 `json:"paid_non_cash_amount"`
	PaidPromoAmount    int64 `json:"paid_promo_amount"`

	State                BonusState     `json:"state"`
	Exception            BonusException `json:"exception"`
	ExceptionInformation string         `json:"exception_information,omitempty"`

	AssociatedTransactions []int64         `json:"associated_transactions,omitempty"`
	Request                json.RawMessage `json:"request"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalAmount is the requested total across all fund categories.
func (t *BonusTransaction) TotalAmount() int64 {
	return t.CashableAmount + t.NonCashAmount + t.PromoAmount
}

// PaidAmount is the total actually transferred so far.
func (t *BonusTransaction) PaidAmount() int64 {
	return t.PaidCashableAmount + t.PaidNonCashAmount + t.PaidPromoAmount
}

// IsFullyPaid reports whether every requested category has been paid in full.
func (t *BonusTransaction) IsFullyPaid() bool {
	return t.PaidCashableAmount == t.CashableAmount &&
		t.PaidNonCashAmount == t.NonCashAmount &&
		t.PaidPromoAmount == t.PromoAmount
}

// ApplyPaid accumulates a payment increment into the Paid* fields, enforcing
// the per-category bound and the freeze after commit.
func (t *BonusTransaction) ApplyPaid(cashable, nonCash, promo int64) error {
	if t.State != StatePending {
		return fmt.Errorf("transaction %d: paid amounts are frozen in state %s", t.TransactionID, t.State)
	}
	if cashable < 0 || nonCash < 0 || promo < 0 {
		return fmt.Errorf("transaction %d: negative payment increment", t.TransactionID)
	}
	if t.PaidCashableAmount+cashable > t.CashableAmount ||
		t.PaidNonCashAmount+nonCash > t.NonCashAmount ||
		t.PaidPromoAmount+promo > t.PromoAmount {
		return fmt.Errorf("transaction %d: payment increment exceeds requested amount", t.TransactionID)
	}
	t.PaidCashableAmount += cashable
	t.PaidNonCashAmount += nonCash
	t.PaidPromoAmount += promo
	return nil
}

// SetCommitted performs the single Pending→Committed transition.
func (t *BonusTransaction) SetCommitted(exception BonusException, info string) error {
	if t.State != StatePending {
		return fmt.Errorf("transaction %d: cannot commit from state %s", t.TransactionID, t.State)
	}
	t.State = StateCommitted
	t.Exception = exception
	t.ExceptionInformation = info
	return nil
}

// SetAcknowledged moves the transaction into its terminal state. Acknowledging
// an already-acknowledged transaction is a no-op and reports false.
func (t *BonusTransaction) SetAcknowledged() bool {
	if t.State == StateAcknowledged {
		return false
	}
	t.State = StateAcknowledged
	return true
}

// Associate appends a back-reference to a related ledger entry.
func (t *BonusTransaction) Associate(transactionID int64) {
	t.AssociatedTransactions = append(t.AssociatedTransactions, transactionID)
}
