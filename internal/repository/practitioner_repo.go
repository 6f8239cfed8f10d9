package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PractitionerRepository maintains the local mirror of connected-account
// capability flags. Practitioner records themselves are owned by the catalog;
// checkout reads them through the joined offering view.
type PractitionerRepository interface {
	// UpdatePaymentFlags mirrors the connected account's capability state.
	// Unknown accounts are ignored; the notification may predate onboarding.
	UpdatePaymentFlags(ctx context.Context, stripeAccountID string, chargesEnabled, payoutsEnabled, detailsSubmitted bool) error
}

type practitionerRepository struct {
	pool *pgxpool.Pool
}

func NewPractitionerRepository(pool *pgxpool.Pool) PractitionerRepository {
	return &practitionerRepository{pool: pool}
}

func (r *practitionerRepository) UpdatePaymentFlags(ctx context.Context, stripeAccountID string, chargesEnabled, payoutsEnabled, detailsSubmitted bool) error {
	const q = `UPDATE practitioners
		SET charges_enabled = $2, payouts_enabled = $3, details_submitted = $4, updated_at = now()
		WHERE stripe_account_id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, stripeAccountID, chargesEnabled, payoutsEnabled, detailsSubmitted)
	return err
}
