package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/pgconv"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type payoutRepo struct{}

// NewPayoutRepository returns a pgx-backed PayoutRepository.
func NewPayoutRepository() PayoutRepository {
	return &payoutRepo{}
}

func (r *payoutRepo) Insert(ctx context.Context, db DBTX, payout *domain.Payout) error {
	row := db.QueryRow(ctx, `
		INSERT INTO bonus_payouts
		  (trace_id, transaction_id, rail, cashable_amount, non_cash_amount, promo_amount, voided)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		payout.TraceID,
		payout.TransactionID,
		string(payout.Rail),
		pgconv.Int64ToNumeric(payout.CashableAmount),
		pgconv.Int64ToNumeric(payout.NonCashAmount),
		pgconv.Int64ToNumeric(payout.PromoAmount),
		payout.Voided,
	)
	if err := row.Scan(&payout.CreatedAt); err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (r *payoutRepo) FindByTraceID(ctx context.Context, db DBTX, traceID uuid.UUID) (*domain.Payout, error) {
	row := db.QueryRow(ctx, `
		SELECT trace_id, transaction_id, rail,
		       cashable_amount, non_cash_amount, promo_amount, voided, created_at
		FROM bonus_payouts WHERE trace_id = $1`, traceID)
	return scanPayout(row)
}

func (r *payoutRepo) ListByTransaction(ctx context.Context, db DBTX, transactionID int64) ([]*domain.Payout, error) {
	rows, err := db.Query(ctx, `
		SELECT trace_id, transaction_id, rail,
		       cashable_amount, non_cash_amount, promo_amount, voided, created_at
		FROM bonus_payouts
		WHERE transaction_id = $1
		ORDER BY created_at ASC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query payouts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *payoutRepo) Void(ctx context.Context, db DBTX, traceID uuid.UUID) error {
	if _, err := db.Exec(ctx,
		`UPDATE bonus_payouts SET voided = TRUE WHERE trace_id = $1`, traceID); err != nil {
		return fmt.Errorf("void payout: %w", err)
	}
	return nil
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var p domain.Payout
	var rail string
	var cashable, nonCash, promo pgtype.Numeric

	err := row.Scan(&p.TraceID, &p.TransactionID, &rail,
		&cashable, &nonCash, &promo, &p.Voided, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payout: %w", err)
	}
	p.Rail = domain.TransferRail(rail)

	for dst, src := range map[*int64]pgtype.Numeric{
		&p.CashableAmount: cashable, &p.NonCashAmount: nonCash, &p.PromoAmount: promo,
	} {
		v, err := pgconv.NumericToInt64(src)
		if err != nil {
			return nil, fmt.Errorf("payout %s amount: %w", p.TraceID, err)
		}
		*dst = v
	}
	return &p, nil
}
