package domain

import "time"

type OfferingKind string

const (
	OfferingSession OfferingKind = "session"
	OfferingEvent   OfferingKind = "event"
)

// City carries the marketplace fee configuration. Cities are managed outside
// this service; the checkout path only reads them.
type City struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	FeePercent *float64 `json:"fee_percent,omitempty"`
}

// Practitioner owns offerings and receives the net amount of each booking.
// Payment capability flags mirror the connected payment account and are only
// mutated by account-capability notifications.
type Practitioner struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	CityID           int64  `json:"city_id"`
	StripeAccountID  string `json:"stripe_account_id"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

// CanAcceptPayments reports whether checkout may proceed against this
// practitioner's account.
func (p *Practitioner) CanAcceptPayments() bool {
	return p.StripeAccountID != "" && p.ChargesEnabled && p.DetailsSubmitted
}

// Offering is a sellable unit: a 1:1 session or a capacity-limited event.
// Price and currency are snapshotted onto bookings at creation time, so later
// edits never alter historical bookings.
type Offering struct {
	ID             int64        `json:"id"`
	PractitionerID int64        `json:"practitioner_id"`
	Kind           OfferingKind `json:"kind"`
	Title          string       `json:"title"`
	Price          int64        `json:"price"` // minor currency units
	Currency       string       `json:"currency"`
	Capacity       int          `json:"capacity,omitempty"` // events only
	DurationMin    int          `json:"duration_min,omitempty"`
	Active         bool         `json:"active"`
}

// OfferingCheckoutView is the joined row the checkout initiator loads in one
// query: offering, its owner, and the owner's city fee configuration.
type OfferingCheckoutView struct {
	Offering     Offering
	Practitioner Practitioner
	CityFee      *float64
}

// AvailabilitySlot is one bookable interval of a session offering. The booked
// flag is the mutex: at most one non-cancelled booking holds a slot.
type AvailabilitySlot struct {
	ID         int64     `json:"id"`
	OfferingID int64     `json:"offering_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Booked     bool      `json:"booked"`
	BookingID  *int64    `json:"booking_id,omitempty"`
}

// EventDate is one dated occurrence of an event offering. SpotsRemaining is
// only mutated through the availability store's conditional updates and stays
// within [0, effective capacity].
type EventDate struct {
	ID               int64     `json:"id"`
	OfferingID       int64     `json:"offering_id"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	CapacityOverride *int      `json:"capacity_override,omitempty"`
	SpotsRemaining   int       `json:"spots_remaining"`
}

// EffectiveCapacity resolves the date-level override against the offering
// capacity.
func (d *EventDate) EffectiveCapacity(offeringCapacity int) int {
	if d.CapacityOverride != nil {
		return *d.CapacityOverride
	}
	return offeringCapacity
}
