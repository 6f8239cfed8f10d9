package payments

import "context"

// SessionParams describes the hosted checkout session the initiator requests.
// The booking id travels in session metadata; settlement depends on it coming
// back on the processor's notifications.
type SessionParams struct {
	BookingID          int64
	Description        string
	Amount             int64 // minor currency units, gross
	Currency           string
	ApplicationFee     int64
	DestinationAccount string
	CustomerEmail      string
	SuccessURL         string
	CancelURL          string
}

type Session struct {
	ID  string
	URL string
}

type AccountStatus struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// Provider is the external payment collaborator. Implementations own funds
// movement entirely; this service only creates sessions and reads account
// capability.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
	AccountStatus(ctx context.Context, accountID string) (*AccountStatus, error)
}
