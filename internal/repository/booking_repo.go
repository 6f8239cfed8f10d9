package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagewell/sagewell-bookings/internal/domain"
)

const codeGenAttempts = 5

// BookingRepository is the booking ledger's storage. Status transitions are
// compare-and-set updates guarded on the current status; callers learn from
// the boolean return whether their transition actually happened, which is the
// only ordering mechanism the settlement reconciler relies on.
type BookingRepository interface {
	Create(ctx context.Context, draft *domain.BookingDraft) (*domain.Booking, error)
	Delete(ctx context.Context, id int64) error

	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByChargeRef(ctx context.Context, chargeRef string) (*domain.Booking, error)
	GetDetailByConfirmation(ctx context.Context, code, email string) (*domain.BookingDetail, error)
	ListForOwner(ctx context.Context, practitionerID int64, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error)

	SetCheckoutSession(ctx context.Context, id int64, sessionRef string) error
	ConfirmPayment(ctx context.Context, id int64, chargeRef string) (bool, error)
	CancelIf(ctx context.Context, id int64, from domain.BookingStatus, reason, by string) (bool, error)
	UpdateStatusFrom(ctx context.Context, id int64, from, to domain.BookingStatus, notes string) (bool, error)
	MarkRefunded(ctx context.Context, id int64, amount int64) (bool, error)
	SetRefundAmount(ctx context.Context, id int64, amount int64) error
	SetTransferRef(ctx context.Context, id int64, transferRef string) error
}

type bookingRepository struct {
	pool *pgxpool.Pool

	// insert is the single-attempt booking insert; Create's retry loop calls
	// it with a fresh code per attempt.
	insert func(ctx context.Context, draft *domain.BookingDraft, code string) (*domain.Booking, error)
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	r := &bookingRepository{pool: pool}
	r.insert = r.insertBooking
	return r
}

const bookingCols = `b.id, b.offering_id, o.practitioner_id, b.slot_id, b.event_date_id, b.spots,
b.status, b.confirmation_code,
b.customer_name, b.customer_email, b.customer_phone, b.customer_notes,
b.gross_amount, b.platform_fee, b.practitioner_net, b.currency,
COALESCE(b.checkout_session_ref, ''), COALESCE(b.charge_ref, ''), COALESCE(b.transfer_ref, ''),
COALESCE(b.refund_amount, 0),
COALESCE(b.cancel_reason, ''), COALESCE(b.cancelled_by, ''), b.cancelled_at,
COALESCE(b.practitioner_notes, ''),
b.created_at, b.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.OfferingID, &b.PractitionerID, &b.SlotID, &b.EventDateID, &b.Spots,
		&b.Status, &b.ConfirmationCode,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.CustomerNotes,
		&b.GrossAmount, &b.PlatformFee, &b.PractitionerNet, &b.Currency,
		&b.CheckoutSessionRef, &b.ChargeRef, &b.TransferRef,
		&b.RefundAmount,
		&b.CancelReason, &b.CancelledBy, &b.CancelledAt,
		&b.PractitionerNotes,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a pending booking with a freshly generated confirmation
// code, retrying on code collision up to codeGenAttempts times before failing
// loudly. Any other error aborts immediately.
func (r *bookingRepository) Create(ctx context.Context, draft *domain.BookingDraft) (*domain.Booking, error) {
	for attempt := 0; attempt < codeGenAttempts; attempt++ {
		code, err := domain.NewConfirmationCode()
		if err != nil {
			return nil, fmt.Errorf("generate confirmation code: %w", err)
		}

		b, err := r.insert(ctx, draft, code)
		if err == nil {
			return b, nil
		}
		if isCodeCollision(err) {
			continue
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return nil, domain.ErrCodeCollision
}

// isCodeCollision reports whether the insert failed on the confirmation
// code's unique index, the one error worth retrying with a fresh code.
func isCodeCollision(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "confirmation_code")
}

func (r *bookingRepository) insertBooking(ctx context.Context, draft *domain.BookingDraft, code string) (*domain.Booking, error) {
	q := `WITH b AS (
		INSERT INTO bookings (
			offering_id, slot_id, event_date_id, spots, status, confirmation_code,
			customer_name, customer_email, customer_phone, customer_notes,
			gross_amount, platform_fee, practitioner_net, currency
		) VALUES ($1,$2,$3,$4,'pending',$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING *
	)
	SELECT ` + bookingCols + `
	FROM b JOIN offerings o ON o.id = b.offering_id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanBooking(r.pool.QueryRow(ctx, q,
		draft.OfferingID, draft.SlotID, draft.EventDateID, draft.Spots, code,
		draft.CustomerName, draft.CustomerEmail, draft.CustomerPhone, draft.CustomerNotes,
		draft.GrossAmount, draft.PlatformFee, draft.PractitionerNet, draft.Currency,
	))
}

// Delete removes a booking outright. Only the checkout initiator's
// compensation path uses this; deleting an already-absent booking is a no-op.
func (r *bookingRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM bookings WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings b
		JOIN offerings o ON o.id = b.offering_id
		WHERE b.id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

func (r *bookingRepository) GetByChargeRef(ctx context.Context, chargeRef string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings b
		JOIN offerings o ON o.id = b.offering_id
		WHERE b.charge_ref = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, chargeRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

// GetDetailByConfirmation matches the normalized code AND email in a single
// combined predicate. A wrong email on a right code is indistinguishable from
// a wrong code, so the lookup cannot be used to probe for codes.
func (r *bookingRepository) GetDetailByConfirmation(ctx context.Context, code, email string) (*domain.BookingDetail, error) {
	const q = `SELECT ` + bookingCols + `,
		o.title, o.kind, p.name,
		COALESCE(s.starts_at, d.starts_at), COALESCE(s.ends_at, d.ends_at)
	FROM bookings b
	JOIN offerings o ON o.id = b.offering_id
	JOIN practitioners p ON p.id = o.practitioner_id
	LEFT JOIN availability_slots s ON s.id = b.slot_id
	LEFT JOIN event_dates d ON d.id = b.event_date_id
	WHERE b.confirmation_code = upper($1) AND lower(b.customer_email) = lower($2)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var det domain.BookingDetail
	b := &det.Booking
	err := r.pool.QueryRow(ctx, q, code, email).Scan(
		&b.ID, &b.OfferingID, &b.PractitionerID, &b.SlotID, &b.EventDateID, &b.Spots,
		&b.Status, &b.ConfirmationCode,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.CustomerNotes,
		&b.GrossAmount, &b.PlatformFee, &b.PractitionerNet, &b.Currency,
		&b.CheckoutSessionRef, &b.ChargeRef, &b.TransferRef,
		&b.RefundAmount,
		&b.CancelReason, &b.CancelledBy, &b.CancelledAt,
		&b.PractitionerNotes,
		&b.CreatedAt, &b.UpdatedAt,
		&det.OfferingTitle, &det.OfferingKind, &det.PractitionerName,
		&det.StartsAt, &det.EndsAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &det, nil
}

// ListForOwner only ever returns bookings for offerings the practitioner
// owns; the authorization is part of the query, not the caller's problem.
func (r *bookingRepository) ListForOwner(ctx context.Context, practitionerID int64, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + bookingCols + ` FROM bookings b
		JOIN offerings o ON o.id = b.offering_id
		WHERE o.practitioner_id = $1`
	args := []any{practitionerID}
	if status != nil {
		q += ` AND b.status = $2 ORDER BY b.created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, *status, limit, offset)
	} else {
		q += ` ORDER BY b.created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *bookingRepository) SetCheckoutSession(ctx context.Context, id int64, sessionRef string) error {
	const q = `UPDATE bookings SET checkout_session_ref = $2, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, sessionRef)
	return err
}

// ConfirmPayment transitions pending->confirmed and records the charge
// reference in one compare-and-set. Returns false when the booking was not
// pending, which a redelivered success notification treats as already done.
func (r *bookingRepository) ConfirmPayment(ctx context.Context, id int64, chargeRef string) (bool, error) {
	const q = `UPDATE bookings
		SET status = 'confirmed', charge_ref = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, chargeRef)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CancelIf cancels only when the booking is still in the expected status.
// The false return tells the caller its precondition no longer held and, in
// particular, that capacity must not be released again.
func (r *bookingRepository) CancelIf(ctx context.Context, id int64, from domain.BookingStatus, reason, by string) (bool, error) {
	const q = `UPDATE bookings
		SET status = 'cancelled', cancel_reason = $3, cancelled_by = $4, cancelled_at = now(), updated_at = now()
		WHERE id = $1 AND status = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, from, reason, by)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *bookingRepository) UpdateStatusFrom(ctx context.Context, id int64, from, to domain.BookingStatus, notes string) (bool, error) {
	const q = `UPDATE bookings
		SET status = $3, practitioner_notes = COALESCE(NULLIF($4, ''), practitioner_notes), updated_at = now()
		WHERE id = $1 AND status = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, from, to, notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRefunded applies a full refund: confirmed or completed -> refunded.
func (r *bookingRepository) MarkRefunded(ctx context.Context, id int64, amount int64) (bool, error) {
	const q = `UPDATE bookings
		SET status = 'refunded', refund_amount = $2, updated_at = now()
		WHERE id = $1 AND status IN ('confirmed', 'completed')`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetRefundAmount records a partial refund without touching the status.
func (r *bookingRepository) SetRefundAmount(ctx context.Context, id int64, amount int64) error {
	const q = `UPDATE bookings SET refund_amount = $2, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, amount)
	return err
}

func (r *bookingRepository) SetTransferRef(ctx context.Context, id int64, transferRef string) error {
	const q = `UPDATE bookings SET transfer_ref = $2, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, transferRef)
	return err
}
