package domain

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingNoShow    BookingStatus = "no_show"
	BookingRefunded  BookingStatus = "refunded"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted, BookingNoShow, BookingRefunded:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

// HoldsCapacity reports whether a booking in this status still occupies its
// slot or event spots. Cancellation from one of these states must release
// capacity exactly once.
func (s BookingStatus) HoldsCapacity() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Cancellation reasons recorded on the booking.
const (
	CancelReasonExpired       = "expired"
	CancelReasonPaymentFailed = "payment failed"
	CancelReasonPractitioner  = "practitioner cancelled"
)

// Booking is a single reservation attempt and its monetary breakdown.
// Exactly one of SlotID / EventDateID is set, matching the offering kind.
// PlatformFee + PractitionerNet == GrossAmount always.
type Booking struct {
	ID               int64         `json:"id"`
	OfferingID       int64         `json:"offering_id"`
	PractitionerID   int64         `json:"practitioner_id"`
	SlotID           *int64        `json:"slot_id,omitempty"`
	EventDateID      *int64        `json:"event_date_id,omitempty"`
	Spots            int           `json:"spots"`
	Status           BookingStatus `json:"status"`
	ConfirmationCode string        `json:"confirmation_code"`

	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	CustomerNotes string `json:"customer_notes"`

	GrossAmount     int64  `json:"gross_amount"`
	PlatformFee     int64  `json:"platform_fee"`
	PractitionerNet int64  `json:"practitioner_net"`
	Currency        string `json:"currency"`

	CheckoutSessionRef string `json:"checkout_session_ref,omitempty"`
	ChargeRef          string `json:"charge_ref,omitempty"`
	TransferRef        string `json:"transfer_ref,omitempty"`
	RefundAmount       int64  `json:"refund_amount,omitempty"`

	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelledBy  string     `json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	PractitionerNotes string `json:"practitioner_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BookingDraft is what the checkout initiator hands to the ledger. The
// confirmation code is generated at insert time.
type BookingDraft struct {
	OfferingID      int64
	SlotID          *int64
	EventDateID     *int64
	Spots           int
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerNotes   string
	GrossAmount     int64
	PlatformFee     int64
	PractitionerNet int64
	Currency        string
}

// CheckoutRequest is the produced-interface payload for initiateCheckout.
type CheckoutRequest struct {
	OfferingID    int64  `json:"offering_id"`
	SlotID        *int64 `json:"slot_id,omitempty"`
	EventDateID   *int64 `json:"event_date_id,omitempty"`
	Spots         int    `json:"spots"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	CustomerNotes string `json:"customer_notes,omitempty"`
}

type CheckoutResult struct {
	CheckoutURL      string `json:"checkout_url"`
	ConfirmationCode string `json:"confirmation_code"`
	BookingID        int64  `json:"booking_id"`
}

// BookingDetail is the denormalized confirmation-lookup view: the booking plus
// the offering, practitioner, and schedule the customer needs to see.
type BookingDetail struct {
	Booking          Booking    `json:"booking"`
	OfferingTitle    string     `json:"offering_title"`
	OfferingKind     string     `json:"offering_kind"`
	PractitionerName string     `json:"practitioner_name"`
	StartsAt         *time.Time `json:"starts_at,omitempty"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
}

// SplitFee computes the platform fee and practitioner net for a gross amount.
// Rounding is applied once, on the fee, so fee+net reconstructs gross exactly.
func SplitFee(gross int64, feePercent float64) (fee, net int64) {
	fee = int64(math.Round(float64(gross) * feePercent / 100))
	return fee, gross - fee
}

// ConfirmationCodePrefix is the fixed literal in every confirmation code.
const ConfirmationCodePrefix = "SGW"

// confirmationAlphabet excludes visually ambiguous I/O/0/1.
const confirmationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const confirmationCodeLen = 6

// NewConfirmationCode returns a code like SGW-K7M2QX. Uniqueness is enforced
// by the ledger at insert time.
func NewConfirmationCode() (string, error) {
	buf := make([]byte, confirmationCodeLen)
	max := big.NewInt(int64(len(confirmationAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = confirmationAlphabet[n.Int64()]
	}
	return ConfirmationCodePrefix + "-" + string(buf), nil
}
