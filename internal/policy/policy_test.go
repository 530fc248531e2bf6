package policy

import (
	"testing"
	"time"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDeterminePayMethod(t *testing.T) {
	p := DefaultPayMethodPolicy()

	t.Run("small amounts pay to credit", func(t *testing.T) {
		assert.Equal(t, domain.PayMethodCredit, p.Determine(500, domain.PayMethodAny))
	})

	t.Run("large win forces handpay", func(t *testing.T) {
		assert.Equal(t, domain.PayMethodHandpay, p.Determine(1_000_000, domain.PayMethodCredit))
	})

	t.Run("above credit meter limit falls to voucher", func(t *testing.T) {
		assert.Equal(t, domain.PayMethodVoucher, p.Determine(200_000, domain.PayMethodAny))
	})

	t.Run("preferred voucher honored", func(t *testing.T) {
		assert.Equal(t, domain.PayMethodVoucher, p.Determine(500, domain.PayMethodVoucher))
	})

	t.Run("preferred wat falls back when disabled", func(t *testing.T) {
		assert.Equal(t, domain.PayMethodCredit, p.Determine(500, domain.PayMethodWat))
	})

	t.Run("voucher disabled escalates to handpay", func(t *testing.T) {
		q := p
		q.VoucherEnabled = false
		assert.Equal(t, domain.PayMethodHandpay, q.Determine(200_000, domain.PayMethodAny))
	})
}

func TestEvaluateAwardLimit(t *testing.T) {
	p := AwardLimitPolicy{DisplayLimit: 100, WagerMatchLimit: 300}

	t.Run("within limit", func(t *testing.T) {
		ev := EvaluateAwardLimit(p, domain.ModeStandard, 100)
		assert.True(t, ev.Allowed)
	})

	t.Run("standard breach", func(t *testing.T) {
		ev := EvaluateAwardLimit(p, domain.ModeStandard, 500)
		assert.False(t, ev.Allowed)
		assert.Equal(t, domain.FailureLimitExceeded, ev.FailureInfo)
		assert.Equal(t, int64(100), ev.Limit)
	})

	t.Run("wager match uses its own limit and failure code", func(t *testing.T) {
		ev := EvaluateAwardLimit(p, domain.ModeWagerMatch, 250)
		assert.True(t, ev.Allowed)

		ev = EvaluateAwardLimit(p, domain.ModeWagerMatch, 500)
		assert.False(t, ev.Allowed)
		assert.Equal(t, domain.FailureWagerMatchLimitExceeded, ev.FailureInfo)
	})

	t.Run("zero limits disable the check", func(t *testing.T) {
		ev := EvaluateAwardLimit(AwardLimitPolicy{}, domain.ModeStandard, 1<<40)
		assert.True(t, ev.Allowed)
	})
}

func TestEligibility(t *testing.T) {
	p := AwardLimitPolicy{EligibilityTimeout: time.Minute}
	now := time.Now()

	assert.True(t, p.Eligible(now.Add(-30*time.Second), now))
	assert.False(t, p.Eligible(now.Add(-2*time.Minute), now))
	assert.True(t, p.Eligible(time.Time{}, now))
	assert.True(t, AwardLimitPolicy{}.Eligible(now.Add(-time.Hour), now))
}
