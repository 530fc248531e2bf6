package bonus

import (
	"context"
	"testing"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/policy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wagerMatchReq(cashable int64) domain.WagerMatchRequest {
	return domain.WagerMatchRequest{
		RequestCore: domain.RequestCore{BonusID: uuid.NewString(), CashableAmount: cashable},
	}
}

// playRound drives one full game round and a commit drain.
func playRound(t *testing.T, e *env, wager, win int64) {
	t.Helper()
	e.gameplay.StartRound(wager)
	e.gameplay.EndRound(win)
	e.handler.Commit(context.Background(), uuid.Nil, false)
}

func TestWagerMatchIncrementalPay(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	tx, err := e.handler.Award(ctx, wagerMatchReq(1_000), false)
	require.NoError(t, err)
	require.Equal(t, domain.StatePending, tx.State)

	playRound(t, e, 300, 0)
	require.Eventually(t, func() bool { return tx.PaidAmount() == 300 }, waitFor, tick)
	assert.Equal(t, domain.StatePending, tx.State, "stays pending until the cap is consumed")
	assert.Equal(t, 1, e.events.count(domain.EventPartialBonusPaid))

	playRound(t, e, 500, 0)
	require.Eventually(t, func() bool { return tx.PaidAmount() == 800 }, waitFor, tick)
	assert.Equal(t, domain.StatePending, tx.State)

	// The last round only matches the 200 still owed.
	playRound(t, e, 600, 0)
	require.Eventually(t, committed(e, tx.TransactionID), waitFor, tick)
	assert.Equal(t, int64(1_000), tx.PaidAmount())
	assert.Equal(t, domain.ExceptionNone, tx.Exception)
	assert.Equal(t, int64(1_000), e.wallet.Balance())
}

func TestWagerMatchSharedRoundBudget(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	first, err := e.handler.Award(ctx, wagerMatchReq(200), false)
	require.NoError(t, err)
	second, err := e.handler.Award(ctx, wagerMatchReq(500), false)
	require.NoError(t, err)

	// One 300 wager: the earlier transaction matches 200, leaving 100 of the
	// round's budget for the later one.
	playRound(t, e, 300, 0)
	require.Eventually(t, committed(e, first.TransactionID), waitFor, tick)
	require.Eventually(t, func() bool { return second.PaidAmount() == 100 }, waitFor, tick)

	assert.Equal(t, int64(200), first.PaidAmount())
	assert.Equal(t, domain.StatePending, second.State)
	assert.Equal(t, int64(300), e.wallet.Balance(), "round budget is never matched twice")
}

func TestWagerMatchLimit(t *testing.T) {
	ctx := context.Background()
	e := newEnvWithLimits(policy.AwardLimitPolicy{WagerMatchLimit: 500})

	tx, err := e.handler.Award(ctx, wagerMatchReq(600), false)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCommitted, tx.State)
	assert.Equal(t, domain.ExceptionFailed, tx.Exception)
	assert.Equal(t, domain.FailureWagerMatchLimitExceeded, tx.ExceptionInformation)
}

func TestWagerMatchCancelRules(t *testing.T) {
	ctx := context.Background()

	t.Run("zero credits never cancels", func(t *testing.T) {
		e := newEnv()
		tx, err := e.handler.Award(ctx, wagerMatchReq(100), false)
		require.NoError(t, err)

		strat := e.handler.factory.ForMode(domain.ModeWagerMatch)
		assert.False(t, strat.Cancel(ctx, tx, domain.CancelZeroCredits))
		assert.Equal(t, domain.StatePending, tx.State)
	})

	t.Run("id invalidation only cancels identity-bound matches", func(t *testing.T) {
		e := newEnv()
		unbound, err := e.handler.Award(ctx, wagerMatchReq(100), false)
		require.NoError(t, err)

		e.identity.SetPlayerID("P-1")
		req := wagerMatchReq(100)
		req.IDRequired = true
		bound, err := e.handler.Award(ctx, req, false)
		require.NoError(t, err)

		e.identity.SetPlayerID("")
		e.handler.HandleIDInvalidated(ctx)

		assert.Equal(t, domain.StatePending, unbound.State)
		assert.Equal(t, domain.StateCommitted, bound.State)
		assert.Equal(t, domain.ExceptionCancelled, bound.Exception)
	})
}

func TestWagerMatchRecovery(t *testing.T) {
	ctx := context.Background()

	t.Run("partial match stays pending after a restart", func(t *testing.T) {
		e := newEnv()
		tx, err := e.handler.Award(ctx, wagerMatchReq(1_000), false)
		require.NoError(t, err)

		require.NoError(t, e.payouts.Add(ctx, &domain.Payout{
			TraceID:        uuid.New(),
			TransactionID:  tx.TransactionID,
			Rail:           domain.RailHandpay,
			CashableAmount: 300,
		}))
		require.NoError(t, e.markers.Save(ctx, domain.PaymentMarker{
			TransactionID: uuid.New(), OwnedTransaction: true,
		}))
		require.NoError(t, e.handler.Recover(ctx))

		assert.Equal(t, domain.StatePending, tx.State)
		assert.Equal(t, int64(300), tx.PaidAmount())
	})

	t.Run("fully consumed match commits on recovery", func(t *testing.T) {
		e := newEnv()
		tx, err := e.handler.Award(ctx, wagerMatchReq(400), false)
		require.NoError(t, err)

		require.NoError(t, e.payouts.Add(ctx, &domain.Payout{
			TraceID:        uuid.New(),
			TransactionID:  tx.TransactionID,
			Rail:           domain.RailHandpay,
			CashableAmount: 400,
		}))
		require.NoError(t, e.markers.Save(ctx, domain.PaymentMarker{
			TransactionID: uuid.New(), OwnedTransaction: true,
		}))
		require.NoError(t, e.handler.Recover(ctx))

		assert.Equal(t, domain.StateCommitted, tx.State)
		assert.Equal(t, domain.ExceptionNone, tx.Exception)
	})
}
