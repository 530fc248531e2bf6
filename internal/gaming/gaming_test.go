package gaming

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCoordinator(t *testing.T) {
	t.Run("grants a single token", func(t *testing.T) {
		c := NewLocalCoordinator()
		token := c.RequestTransaction("bonus", 10*time.Millisecond)
		require.NotEqual(t, uuid.Nil, token)
		assert.True(t, c.IsTransactionActive())

		denied := c.RequestTransaction("other", 10*time.Millisecond)
		assert.Equal(t, uuid.Nil, denied)
	})

	t.Run("release frees a blocked requester", func(t *testing.T) {
		c := NewLocalCoordinator()
		token := c.RequestTransaction("bonus", time.Millisecond)
		require.NotEqual(t, uuid.Nil, token)

		var wg sync.WaitGroup
		var second uuid.UUID
		wg.Add(1)
		go func() {
			defer wg.Done()
			second = c.RequestTransaction("other", time.Second)
		}()

		time.Sleep(10 * time.Millisecond)
		c.ReleaseTransaction(token)
		wg.Wait()
		assert.NotEqual(t, uuid.Nil, second)
	})

	t.Run("release of a stale token is ignored", func(t *testing.T) {
		c := NewLocalCoordinator()
		token := c.RequestTransaction("bonus", time.Millisecond)
		require.NotEqual(t, uuid.Nil, token)

		c.ReleaseTransaction(uuid.New())
		assert.True(t, c.IsTransactionActive())
	})
}

func TestTransferRegistry(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("resolve delivers to the registered waiter", func(t *testing.T) {
		r := NewTransferRegistry(logger)
		traceID := uuid.New()
		wait := r.Register(traceID)

		r.Resolve(TransferResult{TraceID: traceID, Completed: true, Rail: domain.RailVoucher})

		res := <-wait
		assert.True(t, res.Completed)
		assert.Equal(t, domain.RailVoucher, res.Rail)
		assert.False(t, r.InFlight(traceID))
	})

	t.Run("resolve without waiter is dropped", func(t *testing.T) {
		r := NewTransferRegistry(logger)
		r.Resolve(TransferResult{TraceID: uuid.New(), Completed: true})
	})

	t.Run("unregister removes the waiter", func(t *testing.T) {
		r := NewTransferRegistry(logger)
		traceID := uuid.New()
		r.Register(traceID)
		r.Unregister(traceID)
		assert.False(t, r.InFlight(traceID))
	})
}

func TestLocalDisplay(t *testing.T) {
	t.Run("timed message expires on its own", func(t *testing.T) {
		d := NewLocalDisplay()
		id := uuid.New()
		d.Show(id, "bonus", 5*time.Millisecond)
		require.True(t, d.Showing(id))

		assert.Eventually(t, func() bool { return !d.Showing(id) },
			time.Second, time.Millisecond)
	})

	t.Run("forever message stays until sticky removal", func(t *testing.T) {
		d := NewLocalDisplay()
		forever := uuid.New()
		timed := uuid.New()
		d.Show(forever, "jackpot", DisplayForever)
		d.Show(timed, "limit", time.Hour)
		require.Equal(t, 2, d.Active())

		d.RemoveSticky()
		assert.False(t, d.Showing(forever))
		assert.True(t, d.Showing(timed))
	})

	t.Run("zero duration counts as sticky", func(t *testing.T) {
		d := NewLocalDisplay()
		id := uuid.New()
		d.Show(id, "notice", 0)
		d.RemoveSticky()
		assert.Equal(t, 0, d.Active())
	})
}

func TestLocalGamePlay(t *testing.T) {
	g := NewLocalGamePlay(500)

	g.StartRound(100)
	assert.True(t, g.InGameRound())
	assert.Equal(t, StateInGamePlay, g.UncommittedState())
	assert.Equal(t, int64(100), g.RoundWager())

	g.EndRound(250)
	assert.Equal(t, StateGameEnded, g.UncommittedState())
	assert.Equal(t, int64(250), g.RoundWin())

	g.AddRoundWin(50)
	assert.Equal(t, int64(300), g.RoundWin())

	round := g.GameRoundID()
	g.SetIdle()
	g.StartRound(200)
	assert.Equal(t, round+1, g.GameRoundID())
}
