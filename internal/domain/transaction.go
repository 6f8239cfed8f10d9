package domain

import "time"

type TransactionType string

const (
	TransactionCharge   TransactionType = "charge"
	TransactionRefund   TransactionType = "refund"
	TransactionTransfer TransactionType = "transfer"
)

type TransactionStatus string

const (
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is an append-only audit record of a money movement event.
// Rows are written once per (booking, type, external ref) and never mutated.
type Transaction struct {
	ID          int64             `json:"id"`
	BookingID   int64             `json:"booking_id"`
	Type        TransactionType   `json:"type"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	ExternalRef string            `json:"external_ref"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}
