package repository

import (
	"context"
	"strconv"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store binds the repositories to a connection pool and presents them as the
// narrow persistence contracts the bonus engine consumes. The engine never
// sees pgx types.
type Store struct {
	pool         *pgxpool.Pool
	transactions BonusTransactionRepository
	markers      MarkerRepository
	payouts      PayoutRepository
	outbox       OutboxRepository
	maxPending   int
}

// NewStore creates a Store over the pool. maxPending bounds the number of
// concurrently pending bonus transactions; zero disables the bound.
func NewStore(pool *pgxpool.Pool, maxPending int) *Store {
	return &Store{
		pool:         pool,
		transactions: NewBonusTransactionRepository(),
		markers:      NewMarkerRepository(),
		payouts:      NewPayoutRepository(),
		outbox:       NewOutboxRepository(),
		maxPending:   maxPending,
	}
}

// Ledger methods.

func (s *Store) AddTransaction(ctx context.Context, tx *domain.BonusTransaction) error {
	return s.transactions.Insert(ctx, s.pool, tx)
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.BonusTransaction) error {
	return s.transactions.Update(ctx, s.pool, tx)
}

func (s *Store) RecallTransactions(ctx context.Context) ([]*domain.BonusTransaction, error) {
	return s.transactions.ListOpen(ctx, s.pool)
}

func (s *Store) FindTransaction(ctx context.Context, id int64) (*domain.BonusTransaction, error) {
	tx, err := s.transactions.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, domain.ErrNotFound("bonus transaction", strconv.FormatInt(id, 10))
	}
	return tx, nil
}

func (s *Store) FindByBonusID(ctx context.Context, bonusID string) (*domain.BonusTransaction, error) {
	return s.transactions.FindByBonusID(ctx, s.pool, bonusID)
}

func (s *Store) MaxTransactions() int { return s.maxPending }

// ListTransactions serves the read API; it is not part of the engine's
// Ledger contract.
func (s *Store) ListTransactions(ctx context.Context, limit int) ([]*domain.BonusTransaction, error) {
	return s.transactions.List(ctx, s.pool, limit)
}

// MarkerStore methods.

func (s *Store) Load(ctx context.Context) (*domain.PaymentMarker, error) {
	return s.markers.Get(ctx, s.pool)
}

func (s *Store) Save(ctx context.Context, marker domain.PaymentMarker) error {
	return s.markers.Put(ctx, s.pool, marker)
}

func (s *Store) Clear(ctx context.Context) error {
	return s.markers.Delete(ctx, s.pool)
}

// PayoutStore methods.

func (s *Store) Add(ctx context.Context, payout *domain.Payout) error {
	return s.payouts.Insert(ctx, s.pool, payout)
}

func (s *Store) FindByTraceID(ctx context.Context, traceID uuid.UUID) (*domain.Payout, error) {
	return s.payouts.FindByTraceID(ctx, s.pool, traceID)
}

func (s *Store) ListByTransaction(ctx context.Context, transactionID int64) ([]*domain.Payout, error) {
	return s.payouts.ListByTransaction(ctx, s.pool, transactionID)
}

func (s *Store) Void(ctx context.Context, traceID uuid.UUID) error {
	return s.payouts.Void(ctx, s.pool, traceID)
}

// Publisher method: events are written to the outbox and relayed to Kafka
// by the outbox publisher process.

func (s *Store) Publish(ctx context.Context, draft domain.OutboxDraft) error {
	return s.outbox.Insert(ctx, s.pool, draft)
}
