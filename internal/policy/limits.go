package policy

import (
	"time"

	"github.com/attaboy/egm-bonus/internal/domain"
)

// AwardLimitPolicy holds the operator-configured award limits and the
// eligibility window applied at transaction creation.
type AwardLimitPolicy struct {
	// DisplayLimit caps the total of a single award; zero disables.
	DisplayLimit int64 `json:"display_limit"`

	// DisplayLimitText is shown when the limit is breached; empty falls back
	// to the default award message.
	DisplayLimitText     string        `json:"display_limit_text"`
	DisplayLimitDuration time.Duration `json:"display_limit_duration"`

	// WagerMatchLimit caps wager-match awards separately; zero disables.
	WagerMatchLimit int64 `json:"wager_match_limit"`

	// EligibilityTimeout is the window after game-round start in which an
	// award may still be created; zero disables the check.
	EligibilityTimeout time.Duration `json:"eligibility_timeout"`
}

// LimitEvaluation is the outcome of an award-limit check.
type LimitEvaluation struct {
	Allowed     bool
	Limit       int64
	FailureInfo string
}

// EvaluateAwardLimit checks an award total against the configured limits.
// Wager-match modes report the wager-match variant of the failure so the
// host can distinguish the breach.
func EvaluateAwardLimit(p AwardLimitPolicy, mode domain.BonusMode, total int64) LimitEvaluation {
	if mode == domain.ModeWagerMatch {
		if p.WagerMatchLimit > 0 && total > p.WagerMatchLimit {
			return LimitEvaluation{Limit: p.WagerMatchLimit, FailureInfo: domain.FailureWagerMatchLimitExceeded}
		}
		if p.DisplayLimit > 0 && total > p.DisplayLimit {
			return LimitEvaluation{Limit: p.DisplayLimit, FailureInfo: domain.FailureWagerMatchLimitExceeded}
		}
		return LimitEvaluation{Allowed: true}
	}

	if p.DisplayLimit > 0 && total > p.DisplayLimit {
		return LimitEvaluation{Limit: p.DisplayLimit, FailureInfo: domain.FailureLimitExceeded}
	}
	return LimitEvaluation{Allowed: true}
}

// Eligible reports whether an award created now is inside the eligibility
// window measured from the game-round start.
func (p AwardLimitPolicy) Eligible(roundStartedAt time.Time, now time.Time) bool {
	if p.EligibilityTimeout <= 0 || roundStartedAt.IsZero() {
		return true
	}
	return now.Sub(roundStartedAt) <= p.EligibilityTimeout
}
