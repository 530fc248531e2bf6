package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/egm-bonus/internal/domain"
	"github.com/attaboy/egm-bonus/internal/pgconv"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type bonusTransactionRepo struct{}

// NewBonusTransactionRepository returns a pgx-backed BonusTransactionRepository.
func NewBonusTransactionRepository() BonusTransactionRepository {
	return &bonusTransactionRepo{}
}

const bonusTransactionColumns = `
	id, bonus_id, device_id, mode, pay_method,
	cashable_amount, non_cash_amount, promo_amount,
	paid_cashable_amount, paid_non_cash_amount, paid_promo_amount,
	state, exception, exception_information,
	associated_transactions, request, created_at, updated_at`

func (r *bonusTransactionRepo) Insert(ctx context.Context, db DBTX, tx *domain.BonusTransaction) error {
	row := db.QueryRow(ctx, `
		INSERT INTO bonus_transactions
		  (bonus_id, device_id, mode, pay_method,
		   cashable_amount, non_cash_amount, promo_amount,
		   paid_cashable_amount, paid_non_cash_amount, paid_promo_amount,
		   state, exception, exception_information, associated_transactions, request)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		tx.BonusID,
		tx.DeviceID,
		int(tx.Mode),
		string(tx.PayMethod),
		pgconv.Int64ToNumeric(tx.CashableAmount),
		pgconv.Int64ToNumeric(tx.NonCashAmount),
		pgconv.Int64ToNumeric(tx.PromoAmount),
		pgconv.Int64ToNumeric(tx.PaidCashableAmount),
		pgconv.Int64ToNumeric(tx.PaidNonCashAmount),
		pgconv.Int64ToNumeric(tx.PaidPromoAmount),
		string(tx.State),
		string(tx.Exception),
		tx.ExceptionInformation,
		tx.AssociatedTransactions,
		tx.Request,
	)
	if err := row.Scan(&tx.TransactionID, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
		return fmt.Errorf("insert bonus transaction: %w", err)
	}
	return nil
}

// Update persists the transaction. The state guard keeps a drain working from
// a stale snapshot from writing 'pending' back over a row a concurrent cancel
// or acknowledge already moved on.
func (r *bonusTransactionRepo) Update(ctx context.Context, db DBTX, tx *domain.BonusTransaction) error {
	tag, err := db.Exec(ctx, `
		UPDATE bonus_transactions SET
		  pay_method = $2,
		  cashable_amount = $3, non_cash_amount = $4, promo_amount = $5,
		  paid_cashable_amount = $6, paid_non_cash_amount = $7, paid_promo_amount = $8,
		  state = $9, exception = $10, exception_information = $11,
		  associated_transactions = $12, request = $13,
		  updated_at = now()
		WHERE id = $1
		  AND (state = 'pending' OR (state = 'committed' AND $9 <> 'pending'))`,
		tx.TransactionID,
		string(tx.PayMethod),
		pgconv.Int64ToNumeric(tx.CashableAmount),
		pgconv.Int64ToNumeric(tx.NonCashAmount),
		pgconv.Int64ToNumeric(tx.PromoAmount),
		pgconv.Int64ToNumeric(tx.PaidCashableAmount),
		pgconv.Int64ToNumeric(tx.PaidNonCashAmount),
		pgconv.Int64ToNumeric(tx.PaidPromoAmount),
		string(tx.State),
		string(tx.Exception),
		tx.ExceptionInformation,
		tx.AssociatedTransactions,
		tx.Request,
	)
	if err != nil {
		return fmt.Errorf("update bonus transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict(
			fmt.Sprintf("bonus transaction %d was changed concurrently", tx.TransactionID))
	}
	return nil
}

func (r *bonusTransactionRepo) FindByID(ctx context.Context, db DBTX, id int64) (*domain.BonusTransaction, error) {
	row := db.QueryRow(ctx,
		`SELECT `+bonusTransactionColumns+` FROM bonus_transactions WHERE id = $1`, id)
	return scanBonusTransaction(row)
}

func (r *bonusTransactionRepo) FindByBonusID(ctx context.Context, db DBTX, bonusID string) (*domain.BonusTransaction, error) {
	row := db.QueryRow(ctx, `
		SELECT `+bonusTransactionColumns+`
		FROM bonus_transactions
		WHERE bonus_id = $1
		ORDER BY id DESC
		LIMIT 1`, bonusID)
	return scanBonusTransaction(row)
}

func (r *bonusTransactionRepo) ListOpen(ctx context.Context, db DBTX) ([]*domain.BonusTransaction, error) {
	rows, err := db.Query(ctx, `
		SELECT `+bonusTransactionColumns+`
		FROM bonus_transactions
		WHERE state <> $1
		ORDER BY id ASC`, string(domain.StateAcknowledged))
	if err != nil {
		return nil, fmt.Errorf("query open bonus transactions: %w", err)
	}
	defer rows.Close()
	return collectBonusTransactions(rows)
}

func (r *bonusTransactionRepo) List(ctx context.Context, db DBTX, limit int) ([]*domain.BonusTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := db.Query(ctx, `
		SELECT `+bonusTransactionColumns+`
		FROM bonus_transactions
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query bonus transactions: %w", err)
	}
	defer rows.Close()
	return collectBonusTransactions(rows)
}

func scanBonusTransaction(row pgx.Row) (*domain.BonusTransaction, error) {
	var tx domain.BonusTransaction
	var mode int
	var payMethod, state, exception string
	var cashable, nonCash, promo, paidC, paidN, paidP pgtype.Numeric

	err := row.Scan(
		&tx.TransactionID, &tx.BonusID, &tx.DeviceID, &mode, &payMethod,
		&cashable, &nonCash, &promo,
		&paidC, &paidN, &paidP,
		&state, &exception, &tx.ExceptionInformation,
		&tx.AssociatedTransactions, &tx.Request, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bonus transaction: %w", err)
	}

	tx.Mode = domain.BonusMode(mode)
	tx.PayMethod = domain.PayMethod(payMethod)
	tx.State = domain.BonusState(state)
	tx.Exception = domain.BonusException(exception)

	for dst, src := range map[*int64]pgtype.Numeric{
		&tx.CashableAmount: cashable, &tx.NonCashAmount: nonCash, &tx.PromoAmount: promo,
		&tx.PaidCashableAmount: paidC, &tx.PaidNonCashAmount: paidN, &tx.PaidPromoAmount: paidP,
	} {
		v, err := pgconv.NumericToInt64(src)
		if err != nil {
			return nil, fmt.Errorf("bonus transaction %d amount: %w", tx.TransactionID, err)
		}
		*dst = v
	}
	return &tx, nil
}

func collectBonusTransactions(rows pgx.Rows) ([]*domain.BonusTransaction, error) {
	var out []*domain.BonusTransaction
	for rows.Next() {
		tx, err := scanBonusTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
