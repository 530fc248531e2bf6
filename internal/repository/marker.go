package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/jackc/pgx/v5"
)

type markerRepo struct{}

// NewMarkerRepository returns a pgx-backed MarkerRepository. The table holds
// at most one row, enforced by its constant primary key.
func NewMarkerRepository() MarkerRepository {
	return &markerRepo{}
}

func (r *markerRepo) Get(ctx context.Context, db DBTX) (*domain.PaymentMarker, error) {
	var m domain.PaymentMarker
	err := db.QueryRow(ctx, `
		SELECT transaction_id, owned_transaction
		FROM bonus_payment_marker
		WHERE singleton`).Scan(&m.TransactionID, &m.OwnedTransaction)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load payment marker: %w", err)
	}
	return &m, nil
}

func (r *markerRepo) Put(ctx context.Context, db DBTX, marker domain.PaymentMarker) error {
	_, err := db.Exec(ctx, `
		INSERT INTO bonus_payment_marker (singleton, transaction_id, owned_transaction)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (singleton) DO UPDATE
		SET transaction_id = EXCLUDED.transaction_id,
		    owned_transaction = EXCLUDED.owned_transaction,
		    updated_at = now()`,
		marker.TransactionID, marker.OwnedTransaction)
	if err != nil {
		return fmt.Errorf("save payment marker: %w", err)
	}
	return nil
}

func (r *markerRepo) Delete(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, `DELETE FROM bonus_payment_marker`); err != nil {
		return fmt.Errorf("clear payment marker: %w", err)
	}
	return nil
}
