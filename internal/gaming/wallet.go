package gaming

import (
	"context"
	"sync"
)

// Wallet is the player credit meter. Credit-rail bonuses deposit into it
// synchronously; the other rails never touch it.
type Wallet interface {
	Deposit(ctx context.Context, cashable, nonCash, promo int64) error
	Balance() int64
}

// LocalWallet is the in-process credit meter for a single cabinet.
type LocalWallet struct {
	mu       sync.Mutex
	cashable int64
	nonCash  int64
	promo    int64
}

// NewLocalWallet creates a wallet with the given opening cashable balance.
func NewLocalWallet(cashable int64) *LocalWallet {
	return &LocalWallet{cashable: cashable}
}

func (w *LocalWallet) Deposit(_ context.Context, cashable, nonCash, promo int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cashable += cashable
	w.nonCash += nonCash
	w.promo += promo
	return nil
}

func (w *LocalWallet) Balance() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cashable + w.nonCash + w.promo
}

// Withdraw reduces the cashable balance; used by the game runtime when a
// wager is placed. Clamps at zero rather than going negative.
func (w *LocalWallet) Withdraw(amount int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cashable -= amount
	if w.cashable < 0 {
		w.cashable = 0
	}
}
