package domain

// Provider-neutral settlement notifications. The webhook handler verifies the
// payment processor's signature, translates its event types into these, and
// hands them to the settlement reconciler. Every handler must tolerate
// redelivery and out-of-order arrival.

type PaymentSucceededNote struct {
	BookingID  int64
	SessionRef string
	ChargeRef  string
	Amount     int64
	Currency   string
}

type SessionExpiredNote struct {
	BookingID  int64
	SessionRef string
}

type PaymentFailedNote struct {
	BookingID int64
	ChargeRef string
	Amount    int64
	Currency  string
	Reason    string
}

type AccountUpdatedNote struct {
	AccountID        string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

type ChargeRefundedNote struct {
	ChargeRef      string
	RefundRef      string
	AmountRefunded int64
	Currency       string
	FullyRefunded  bool
}

type TransferCreatedNote struct {
	BookingID   int64
	TransferRef string
	Amount      int64
	Currency    string
}
