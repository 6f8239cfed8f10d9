package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sagewell/sagewell-bookings/pkg/logger"
)

// Publisher is the producing side of the bus. This service only emits;
// consumers (notify, analytics) subscribe from their own processes.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Booking lifecycle events
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
	BookingRefunded  = "booking.refunded"

	// Settlement events
	TransferRecorded = "settlement.transfer.recorded"

	// Notification hand-off; delivery is owned by an external consumer.
	NotifySend = "notify.send"
)

// Event payloads
type BookingCreatedEvent struct {
	BookingID        int64     `json:"booking_id"`
	OfferingID       int64     `json:"offering_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	CustomerEmail    string    `json:"customer_email"`
	GrossAmount      int64     `json:"gross_amount"`
	Currency         string    `json:"currency"`
	CreatedAt        time.Time `json:"created_at"`
}

type BookingConfirmedEvent struct {
	BookingID        int64     `json:"booking_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	CustomerEmail    string    `json:"customer_email"`
	ChargeRef        string    `json:"charge_ref"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

type BookingCancelledEvent struct {
	BookingID     int64     `json:"booking_id"`
	CustomerEmail string    `json:"customer_email"`
	Reason        string    `json:"reason"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

type BookingRefundedEvent struct {
	BookingID     int64     `json:"booking_id"`
	CustomerEmail string    `json:"customer_email"`
	RefundAmount  int64     `json:"refund_amount"`
	RefundedAt    time.Time `json:"refunded_at"`
}

type TransferRecordedEvent struct {
	BookingID   int64  `json:"booking_id"`
	TransferRef string `json:"transfer_ref"`
	Amount      int64  `json:"amount"`
}

type NotificationEvent struct {
	Type      string                 `json:"type"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template"`
	Data      map[string]interface{} `json:"data"`
}
