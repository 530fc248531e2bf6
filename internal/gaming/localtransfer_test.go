package gaming

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attaboy/egm-bonus/internal/domain"
)

func newTestTransferOut() (*LocalTransferOut, *TransferRegistry) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewTransferRegistry(logger)
	return NewLocalTransferOut(registry, logger), registry
}

func TestLocalTransferOut(t *testing.T) {
	ctx := context.Background()

	t.Run("confirm resolves the registered waiter", func(t *testing.T) {
		transfers, registry := newTestTransferOut()
		token, traceID := uuid.New(), uuid.New()

		ch := registry.Register(traceID)
		require.True(t, transfers.TransferOut(ctx, token, domain.RailHandpay, 2000, 0, 0, nil, "bonus award", traceID))
		require.Len(t, transfers.Pending(), 1)

		require.True(t, transfers.Confirm(traceID, true, "", false))
		res := <-ch
		assert.True(t, res.Completed)
		assert.Equal(t, domain.RailHandpay, res.Rail)
		assert.Empty(t, transfers.Pending())
	})

	t.Run("confirm reports the settled rail", func(t *testing.T) {
		transfers, registry := newTestTransferOut()
		traceID := uuid.New()

		ch := registry.Register(traceID)
		require.True(t, transfers.TransferOut(ctx, uuid.New(), domain.RailVoucher, 500, 0, 0, nil, "bonus award", traceID))

		// Printer out of paper, attendant pays by hand.
		require.True(t, transfers.Confirm(traceID, true, domain.RailHandpay, false))
		res := <-ch
		assert.Equal(t, domain.RailHandpay, res.Rail)
	})

	t.Run("one transfer per token", func(t *testing.T) {
		transfers, _ := newTestTransferOut()
		token := uuid.New()

		require.True(t, transfers.TransferOut(ctx, token, domain.RailHandpay, 100, 0, 0, nil, "bonus award", uuid.New()))
		assert.False(t, transfers.TransferOut(ctx, token, domain.RailHandpay, 100, 0, 0, nil, "bonus award", uuid.New()))
	})

	t.Run("confirm of unknown trace reports false", func(t *testing.T) {
		transfers, _ := newTestTransferOut()
		assert.False(t, transfers.Confirm(uuid.New(), true, "", false))
	})

	t.Run("recover finds the in-flight trace", func(t *testing.T) {
		transfers, _ := newTestTransferOut()
		token, traceID := uuid.New(), uuid.New()

		require.True(t, transfers.TransferOut(ctx, token, domain.RailHandpay, 100, 0, 0, nil, "bonus award", traceID))
		assert.Equal(t, traceID, transfers.Recover(token))
		assert.Equal(t, uuid.Nil, transfers.Recover(uuid.New()))
	})
}
