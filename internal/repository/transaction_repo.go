package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagewell/sagewell-bookings/internal/domain"
)

// TransactionRepository is the append-only money-movement audit trail.
// Entries are write-once; a redelivered notification that appends the same
// (booking, type, external ref) tuple lands on the unique index and is
// silently dropped.
type TransactionRepository interface {
	Append(ctx context.Context, tx *domain.Transaction) error
	ListForBooking(ctx context.Context, bookingID int64) ([]domain.Transaction, error)
}

type transactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) TransactionRepository {
	return &transactionRepository{pool: pool}
}

func (r *transactionRepository) Append(ctx context.Context, tx *domain.Transaction) error {
	const q = `INSERT INTO transactions (booking_id, type, amount, currency, external_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (booking_id, type, external_ref) DO NOTHING`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, tx.BookingID, tx.Type, tx.Amount, tx.Currency, tx.ExternalRef, tx.Status)
	return err
}

func (r *transactionRepository) ListForBooking(ctx context.Context, bookingID int64) ([]domain.Transaction, error) {
	const q = `SELECT id, booking_id, type, amount, currency, external_ref, status, created_at
		FROM transactions WHERE booking_id = $1 ORDER BY created_at ASC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.BookingID, &t.Type, &t.Amount, &t.Currency, &t.ExternalRef, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
