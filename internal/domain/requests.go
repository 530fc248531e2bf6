package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestCore carries the fields every bonus request shares. It is embedded
// in each concrete request and serialized into the transaction's Request blob.
type RequestCore struct {
	BonusID  string    `json:"bonus_id"`
	DeviceID uuid.UUID `json:"device_id"`

	CashableAmount int64 `json:"cashable_amount"`
	NonCashAmount  int64 `json:"non_cash_amount"`
	PromoAmount    int64 `json:"promo_amount"`

	// Identity checks. PlayerID empty means "whoever is carded in".
	IDRequired bool   `json:"id_required"`
	PlayerID   string `json:"player_id,omitempty"`

	// Skip the eligibility-window check when the host explicitly asks.
	OverrideEligibility bool `json:"override_eligibility"`

	// Preferred payout rail; empty lets the pay-method policy decide.
	PayMethod PayMethod `json:"pay_method,omitempty"`

	// A host may pre-fail a request; such a transaction commits immediately
	// with this exception and never enters the payable set.
	Exception BonusException `json:"exception,omitempty"`

	MessageText     string        `json:"message_text,omitempty"`
	MessageDuration time.Duration `json:"message_duration,omitempty"`
}

// Core returns the shared request fields.
func (c RequestCore) Core() RequestCore { return c }

// BonusRequest is a typed award request submitted to the handler.
type BonusRequest interface {
	Core() RequestCore
	Mode() BonusMode
}

// StandardRequest is a host-initiated discretionary award.
type StandardRequest struct {
	RequestCore
	AllowedInAuditMode   bool `json:"allowed_in_audit_mode"`
	AllowedWhileDisabled bool `json:"allowed_while_disabled"`
}

func (StandardRequest) Mode() BonusMode { return ModeStandard }

// GameWinRequest is a game-triggered win paid as a bonus; the payout folds
// into the triggering round's recorded win total.
type GameWinRequest struct {
	RequestCore
	GameRoundID int64 `json:"game_round_id"`
}

func (GameWinRequest) Mode() BonusMode { return ModeGameWin }

// WagerMatchRequest is a promotion matching the player's wagers up to the
// requested total, paid incrementally at the end of each game round.
type WagerMatchRequest struct {
	RequestCore
}

func (WagerMatchRequest) Mode() BonusMode { return ModeWagerMatch }

// WagerRestriction constrains the bet during a multiple-jackpot-time session.
type WagerRestriction string

const (
	WagerRestrictionNone     WagerRestriction = ""
	WagerRestrictionMaxBet   WagerRestriction = "max_bet"
	WagerRestrictionFixedBet WagerRestriction = "fixed_bet"
)

// TimeoutRule governs what happens when a multiple-jackpot-time session has
// not started by Start+Timeout.
type TimeoutRule string

const (
	TimeoutIgnore    TimeoutRule = "ignore"
	TimeoutAutoStart TimeoutRule = "auto_start"
	TimeoutExitMode  TimeoutRule = "exit_mode"
)

// MultipleJackpotTimeRequest runs a timed multiplied-win session across a
// number of game rounds. Requested amounts accrue per round as wins are
// multiplied, so the core amounts start at zero.
type MultipleJackpotTimeRequest struct {
	RequestCore

	GameCount     int   `json:"game_count"`
	WinMultiplier int64 `json:"win_multiplier"`

	WagerRestriction WagerRestriction `json:"wager_restriction"`
	RequiredWager    int64            `json:"required_wager,omitempty"`

	// Multiplication applies only to wins inside [MinWin, MaxWin];
	// MaxWin zero means unbounded above.
	MinWin int64 `json:"min_win"`
	MaxWin int64 `json:"max_win"`

	Start       time.Time     `json:"start,omitempty"`
	End         time.Time     `json:"end,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	TimeoutRule TimeoutRule   `json:"timeout_rule,omitempty"`

	EndOnZeroCredits bool `json:"end_on_zero_credits"`
	AutoPlay         bool `json:"auto_play"`
}

func (MultipleJackpotTimeRequest) Mode() BonusMode { return ModeMultipleJackpotTime }
