package bonus

import (
	"context"
	"testing"
	"time"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mjtReq(games int, multiplier int64) domain.MultipleJackpotTimeRequest {
	return domain.MultipleJackpotTimeRequest{
		RequestCore:   domain.RequestCore{BonusID: uuid.NewString()},
		GameCount:     games,
		WinMultiplier: multiplier,
	}
}

func TestMultipliedWin(t *testing.T) {
	st := mjtState{MultipleJackpotTimeRequest: domain.MultipleJackpotTimeRequest{
		WinMultiplier: 3, MinWin: 20, MaxWin: 100,
	}}

	assert.Equal(t, int64(0), multipliedWin(0, st))
	assert.Equal(t, int64(0), multipliedWin(10, st), "below the band")
	assert.Equal(t, int64(40), multipliedWin(20, st), "band edge: win x3 minus the base win")
	assert.Equal(t, int64(200), multipliedWin(100, st))
	assert.Equal(t, int64(0), multipliedWin(101, st), "above the band")

	st.MaxWin = 0
	assert.Equal(t, int64(2_000), multipliedWin(1_000, st), "zero max win is unbounded")
}

func TestMJTSession(t *testing.T) {
	ctx := context.Background()

	t.Run("multiplies wins per round and ends after the game count", func(t *testing.T) {
		e := newEnv()
		tx, err := e.handler.Award(ctx, mjtReq(2, 3), false)
		require.NoError(t, err)
		require.Equal(t, domain.StatePending, tx.State)

		playRound(t, e, 10, 50)
		require.Eventually(t, func() bool { return tx.PaidAmount() == 100 }, waitFor, tick)
		assert.Equal(t, domain.StatePending, tx.State)
		assert.Equal(t, 1, e.events.count(domain.EventMJTStarted))
		assert.Equal(t, int64(100), e.wallet.Balance())

		// A losing round still counts toward the session.
		playRound(t, e, 10, 0)
		require.Eventually(t, committed(e, tx.TransactionID), waitFor, tick)
		assert.Equal(t, domain.ExceptionNone, tx.Exception)
		assert.Equal(t, int64(100), tx.PaidAmount())
		assert.Equal(t, int64(100), tx.TotalAmount(), "requested total accrues with the awards")
	})

	t.Run("one round pays at most once across drains", func(t *testing.T) {
		e := newEnv()
		tx, err := e.handler.Award(ctx, mjtReq(5, 2), false)
		require.NoError(t, err)

		playRound(t, e, 10, 50)
		require.Eventually(t, func() bool { return tx.PaidAmount() == 50 }, waitFor, tick)

		// Extra drains in the same round must not multiply the win again.
		e.handler.Commit(ctx, uuid.Nil, false)
		e.handler.Commit(ctx, uuid.Nil, false)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(50), tx.PaidAmount())
	})

	t.Run("sibling sessions never multiply the same round", func(t *testing.T) {
		e := newEnv()
		first, err := e.handler.Award(ctx, mjtReq(5, 2), false)
		require.NoError(t, err)
		second, err := e.handler.Award(ctx, mjtReq(5, 2), false)
		require.NoError(t, err)

		playRound(t, e, 10, 50)
		require.Eventually(t, func() bool { return first.PaidAmount() == 50 }, waitFor, tick)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(0), second.PaidAmount())
		assert.Equal(t, int64(50), e.wallet.Balance())
	})

	t.Run("win multiplier of one fails at creation", func(t *testing.T) {
		e := newEnv()
		tx, err := e.handler.Award(ctx, mjtReq(5, 1), false)
		require.NoError(t, err)
		assert.Equal(t, domain.StateCommitted, tx.State)
		assert.Equal(t, domain.ExceptionFailed, tx.Exception)
		assert.Equal(t, domain.FailureInvalidAwardAmount, tx.ExceptionInformation)
	})

	t.Run("session end time closes the session", func(t *testing.T) {
		e := newEnv()
		req := mjtReq(100, 2)
		req.End = time.Now().Add(20 * time.Millisecond)
		tx, err := e.handler.Award(ctx, req, false)
		require.NoError(t, err)

		time.Sleep(30 * time.Millisecond)
		playRound(t, e, 10, 50)
		require.Eventually(t, committed(e, tx.TransactionID), waitFor, tick)
		assert.Equal(t, domain.ExceptionNone, tx.Exception)
	})
}

func TestMJTWagerRestriction(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed bet violation fails the session", func(t *testing.T) {
		e := newEnv()
		req := mjtReq(5, 2)
		req.WagerRestriction = domain.WagerRestrictionFixedBet
		req.RequiredWager = 100
		tx, err := e.handler.Award(ctx, req, false)
		require.NoError(t, err)

		playRound(t, e, 50, 20)
		require.Eventually(t, committed(e, tx.TransactionID), waitFor, tick)
		assert.Equal(t, domain.ExceptionFailed, tx.Exception)
		assert.Equal(t, domain.FailureWagerRestriction, tx.ExceptionInformation)
		assert.Equal(t, int64(0), tx.PaidAmount())
	})

	t.Run("first round fixes the bet when none is required", func(t *testing.T) {
		e := newEnv()
		req := mjtReq(5, 2)
		req.WagerRestriction = domain.WagerRestrictionFixedBet
		tx, err := e.handler.Award(ctx, req, false)
		require.NoError(t, err)

		// Round one establishes the fixed wager and pays.
		playRound(t, e, 75, 40)
		require.Eventually(t, func() bool { return tx.PaidAmount() == 40 }, waitFor, tick)

		// The same wager passes and multiplies again.
		playRound(t, e, 75, 40)
		require.Eventually(t, func() bool { return tx.PaidAmount() == 80 }, waitFor, tick)

		// A different wager breaks the session.
		playRound(t, e, 80, 40)
		require.Eventually(t, committed(e, tx.TransactionID), waitFor, tick)
		assert.Equal(t, domain.ExceptionFailed, tx.Exception)
	})

	t.Run("max bet restriction requires the machine max", func(t *testing.T) {
		e := newEnv() // max bet 500
		req := mjtReq(5, 2)
		req.WagerRestriction = domain.WagerRestrictionMaxBet
		tx, err := e.handler.Award(ctx, req, false)
		require.NoError(t, err)

		playRound(t, e, 500, 60)
		require.Eventually(t, func() bool { return tx.PaidAmount() == 60 }, waitFor, tick)

		playRound(t, e, 100, 60)
		require.Eventually(t, committed(e, tx.TransactionID), waitFor, tick)
		assert.Equal(t, domain.FailureWagerRestriction, tx.ExceptionInformation)
	})
}

func TestMJTStartGating(t *testing.T) {
	ctx := context.Background()

	t.Run("does not start before the configured start time", func(t *testing.T) {
		e := newEnv()
		req := mjtReq(5, 2)
		req.Start = time.Now().Add(time.Hour)
		tx, err := e.handler.Award(ctx, req, false)
		require.NoError(t, err)

		playRound(t, e, 10, 50)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(0), tx.PaidAmount())
		assert.Equal(t, domain.StatePending, tx.State)
		assert.Equal(t, 0, e.events.count(domain.EventMJTStarted))
	})

	t.Run("exit mode rule fails an expired session", func(t *testing.T) {
		e := newEnv()
		req := mjtReq(5, 2)
		req.Start = time.Now().Add(-time.Hour)
		req.Timeout = time.Minute
		req.TimeoutRule = domain.TimeoutExitMode
		tx, err := e.handler.Award(ctx, req, false)
		require.NoError(t, err)

		playRound(t, e, 10, 50)
		require.Eventually(t, committed(e, tx.TransactionID), waitFor, tick)
		assert.Equal(t, domain.ExceptionFailed, tx.Exception)
		assert.Equal(t, domain.FailureIneligible, tx.ExceptionInformation)
	})

	t.Run("ignore rule starts an expired session anyway", func(t *testing.T) {
		e := newEnv()
		req := mjtReq(5, 2)
		req.Start = time.Now().Add(-time.Hour)
		req.Timeout = time.Minute
		req.TimeoutRule = domain.TimeoutIgnore
		tx, err := e.handler.Award(ctx, req, false)
		require.NoError(t, err)

		playRound(t, e, 10, 50)
		require.Eventually(t, func() bool { return tx.PaidAmount() == 50 }, waitFor, tick)
	})

	t.Run("auto start cancels on wager mismatch", func(t *testing.T) {
		e := newEnv()
		req := mjtReq(5, 2)
		req.Start = time.Now().Add(-time.Hour)
		req.Timeout = time.Minute
		req.TimeoutRule = domain.TimeoutAutoStart
		req.WagerRestriction = domain.WagerRestrictionFixedBet
		req.RequiredWager = 100
		tx, err := e.handler.Award(ctx, req, false)
		require.NoError(t, err)

		playRound(t, e, 50, 20)
		require.Eventually(t, committed(e, tx.TransactionID), waitFor, tick)
		assert.Equal(t, domain.ExceptionCancelled, tx.Exception)
	})
}

func TestMJTAutoPlay(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	req := mjtReq(1, 2)
	req.AutoPlay = true
	tx, err := e.handler.Award(ctx, req, false)
	require.NoError(t, err)

	playRound(t, e, 10, 50)
	require.Eventually(t, committed(e, tx.TransactionID), waitFor, tick)

	// Enabled at session start, disabled when the session completes.
	assert.Equal(t, 2, e.events.count(domain.EventAutoPlayRequested))
}
