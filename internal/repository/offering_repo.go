package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagewell/sagewell-bookings/internal/domain"
)

type OfferingRepository interface {
	// GetCheckoutView loads the offering, its practitioner, and the city fee
	// configuration in one query. Inactive or missing offerings return
	// domain.ErrNotFound.
	GetCheckoutView(ctx context.Context, offeringID int64) (*domain.OfferingCheckoutView, error)
}

type offeringRepository struct {
	pool *pgxpool.Pool
}

func NewOfferingRepository(pool *pgxpool.Pool) OfferingRepository {
	return &offeringRepository{pool: pool}
}

func (r *offeringRepository) GetCheckoutView(ctx context.Context, offeringID int64) (*domain.OfferingCheckoutView, error) {
	const q = `SELECT
		o.id, o.practitioner_id, o.kind, o.title, o.price, o.currency,
		COALESCE(o.capacity, 0), COALESCE(o.duration_min, 0), o.active,
		p.id, p.name, p.email, p.city_id, COALESCE(p.stripe_account_id, ''),
		p.charges_enabled, p.payouts_enabled, p.details_submitted,
		c.fee_percent
	FROM offerings o
	JOIN practitioners p ON p.id = o.practitioner_id
	JOIN cities c ON c.id = p.city_id
	WHERE o.id = $1 AND o.active = true`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var v domain.OfferingCheckoutView
	err := r.pool.QueryRow(ctx, q, offeringID).Scan(
		&v.Offering.ID, &v.Offering.PractitionerID, &v.Offering.Kind, &v.Offering.Title,
		&v.Offering.Price, &v.Offering.Currency, &v.Offering.Capacity, &v.Offering.DurationMin,
		&v.Offering.Active,
		&v.Practitioner.ID, &v.Practitioner.Name, &v.Practitioner.Email, &v.Practitioner.CityID,
		&v.Practitioner.StripeAccountID, &v.Practitioner.ChargesEnabled,
		&v.Practitioner.PayoutsEnabled, &v.Practitioner.DetailsSubmitted,
		&v.CityFee,
	)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
