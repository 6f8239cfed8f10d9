package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagewell/sagewell-bookings/internal/domain"
)

// AvailabilityRepository is the authoritative capacity store. Every mutation
// is a single conditional UPDATE so that two concurrent checkouts race on the
// row itself, never on application-level reads. Read-then-check-then-write is
// deliberately not offered for reserve/release; the List* reads are for
// display only and are not authoritative.
type AvailabilityRepository interface {
	ReserveSlot(ctx context.Context, slotID, offeringID int64) error
	AttachSlotBooking(ctx context.Context, slotID, bookingID int64) error
	ReleaseSlot(ctx context.Context, slotID int64) error
	ReserveEventSpots(ctx context.Context, eventDateID, offeringID int64, count int) error
	ReleaseEventSpots(ctx context.Context, eventDateID int64, count int) error

	GetSlot(ctx context.Context, slotID int64) (*domain.AvailabilitySlot, error)
	GetEventDate(ctx context.Context, eventDateID int64) (*domain.EventDate, error)
	ListOpenSlots(ctx context.Context, offeringID int64) ([]domain.AvailabilitySlot, error)
	ListUpcomingEventDates(ctx context.Context, offeringID int64) ([]domain.EventDate, error)
}

type availabilityRepository struct {
	pool *pgxpool.Pool
}

func NewAvailabilityRepository(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepository{pool: pool}
}

// ReserveSlot flips booked false->true in one compare-and-set statement.
// Zero rows affected means the slot is gone (already booked, missing, or not
// under this offering); both surface as a capacity conflict so a lost race
// and a stale slot id look the same to the caller.
func (r *availabilityRepository) ReserveSlot(ctx context.Context, slotID, offeringID int64) error {
	const q = `UPDATE availability_slots
		SET booked = true, updated_at = now()
		WHERE id = $1 AND offering_id = $2 AND booked = false`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, slotID, offeringID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCapacityConflict
	}
	return nil
}

// AttachSlotBooking sets the back-reference once the booking row exists. The
// slot is already held at this point, so this is a plain update.
func (r *availabilityRepository) AttachSlotBooking(ctx context.Context, slotID, bookingID int64) error {
	const q = `UPDATE availability_slots SET booking_id = $2, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, slotID, bookingID)
	return err
}

// ReleaseSlot frees a slot. Releasing an already-free or missing slot is a
// no-op, which lets compensation and duplicate notifications call it safely.
func (r *availabilityRepository) ReleaseSlot(ctx context.Context, slotID int64) error {
	const q = `UPDATE availability_slots
		SET booked = false, booking_id = NULL, updated_at = now()
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, slotID)
	return err
}

// ReserveEventSpots decrements spots_remaining only when the result stays
// non-negative. The WHERE clause is the whole concurrency story: of N racing
// checkouts for the last K spots, exactly K succeed.
func (r *availabilityRepository) ReserveEventSpots(ctx context.Context, eventDateID, offeringID int64, count int) error {
	const q = `UPDATE event_dates
		SET spots_remaining = spots_remaining - $3, updated_at = now()
		WHERE id = $1 AND offering_id = $2 AND spots_remaining >= $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, eventDateID, offeringID, count)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCapacityConflict
	}
	return nil
}

// ReleaseEventSpots restores spots, clamped at the effective capacity so a
// double-release from a redelivered notification can never oversupply.
func (r *availabilityRepository) ReleaseEventSpots(ctx context.Context, eventDateID int64, count int) error {
	const q = `UPDATE event_dates d
		SET spots_remaining = LEAST(
			d.spots_remaining + $2,
			COALESCE(d.capacity_override, (SELECT o.capacity FROM offerings o WHERE o.id = d.offering_id))
		),
		updated_at = now()
		WHERE d.id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, eventDateID, count)
	return err
}

const slotCols = `id, offering_id, starts_at, ends_at, booked, booking_id`

func (r *availabilityRepository) GetSlot(ctx context.Context, slotID int64) (*domain.AvailabilitySlot, error) {
	const q = `SELECT ` + slotCols + ` FROM availability_slots WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.AvailabilitySlot
	err := r.pool.QueryRow(ctx, q, slotID).Scan(
		&s.ID, &s.OfferingID, &s.StartsAt, &s.EndsAt, &s.Booked, &s.BookingID,
	)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const eventDateCols = `id, offering_id, starts_at, ends_at, capacity_override, spots_remaining`

func (r *availabilityRepository) GetEventDate(ctx context.Context, eventDateID int64) (*domain.EventDate, error) {
	const q = `SELECT ` + eventDateCols + ` FROM event_dates WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var d domain.EventDate
	err := r.pool.QueryRow(ctx, q, eventDateID).Scan(
		&d.ID, &d.OfferingID, &d.StartsAt, &d.EndsAt, &d.CapacityOverride, &d.SpotsRemaining,
	)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *availabilityRepository) ListOpenSlots(ctx context.Context, offeringID int64) ([]domain.AvailabilitySlot, error) {
	const q = `SELECT ` + slotCols + ` FROM availability_slots
		WHERE offering_id = $1 AND booked = false AND starts_at > now()
		ORDER BY starts_at ASC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.AvailabilitySlot
	for rows.Next() {
		var s domain.AvailabilitySlot
		if err := rows.Scan(&s.ID, &s.OfferingID, &s.StartsAt, &s.EndsAt, &s.Booked, &s.BookingID); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *availabilityRepository) ListUpcomingEventDates(ctx context.Context, offeringID int64) ([]domain.EventDate, error) {
	const q = `SELECT ` + eventDateCols + ` FROM event_dates
		WHERE offering_id = $1 AND starts_at > now()
		ORDER BY starts_at ASC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, offeringID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []domain.EventDate
	for rows.Next() {
		var d domain.EventDate
		if err := rows.Scan(&d.ID, &d.OfferingID, &d.StartsAt, &d.EndsAt, &d.CapacityOverride, &d.SpotsRemaining); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
