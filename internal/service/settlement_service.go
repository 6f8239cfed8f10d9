package service

import (
	"context"
	"errors"
	"time"

	"github.com/sagewell/sagewell-bookings/internal/domain"
	"github.com/sagewell/sagewell-bookings/internal/repository"
	"github.com/sagewell/sagewell-bookings/pkg/events"
	"github.com/sagewell/sagewell-bookings/pkg/logger"
)

// SettlementService applies the payment processor's outcome notifications to
// booking and availability state. Notifications may be redelivered or arrive
// out of order; every handler is precondition-guarded on the booking's
// current status and safe to invoke more than once. There are no locks: each
// transition is a single-writer-wins race settled by the store's
// compare-and-set updates.
type SettlementService interface {
	PaymentSucceeded(ctx context.Context, note domain.PaymentSucceededNote) error
	SessionExpired(ctx context.Context, note domain.SessionExpiredNote) error
	PaymentFailed(ctx context.Context, note domain.PaymentFailedNote) error
	AccountUpdated(ctx context.Context, note domain.AccountUpdatedNote) error
	ChargeRefunded(ctx context.Context, note domain.ChargeRefundedNote) error
	TransferCreated(ctx context.Context, note domain.TransferCreatedNote) error
}

type settlementService struct {
	bookingRepo      repository.BookingRepository
	availabilityRepo repository.AvailabilityRepository
	transactionRepo  repository.TransactionRepository
	practitionerRepo repository.PractitionerRepository
	eventBus         events.Publisher
}

func NewSettlementService(
	bookingRepo repository.BookingRepository,
	availabilityRepo repository.AvailabilityRepository,
	transactionRepo repository.TransactionRepository,
	practitionerRepo repository.PractitionerRepository,
	eventBus events.Publisher,
) SettlementService {
	return &settlementService{
		bookingRepo:      bookingRepo,
		availabilityRepo: availabilityRepo,
		transactionRepo:  transactionRepo,
		practitionerRepo: practitionerRepo,
		eventBus:         eventBus,
	}
}

// PaymentSucceeded confirms the booking and records the charge. Capacity was
// already reserved at checkout time for both kinds, so no availability write
// happens here. A redelivery finds the booking already confirmed and only
// the audit append runs, deduplicated by the ledger's unique index.
func (s *settlementService) PaymentSucceeded(ctx context.Context, note domain.PaymentSucceededNote) error {
	booking, err := s.bookingRepo.GetByID(ctx, note.BookingID)
	if err != nil {
		return err
	}

	transitioned, err := s.bookingRepo.ConfirmPayment(ctx, booking.ID, note.ChargeRef)
	if err != nil {
		return err
	}

	if !transitioned && booking.Status == domain.BookingCancelled {
		// Payment landed after the booking was already cancelled (expiry or
		// practitioner action won the race). Keep the audit trail; the
		// operational follow-up is a refund, which arrives as its own
		// notification.
		logger.WarnContext(ctx, "Payment succeeded for a cancelled booking",
			"booking_id", booking.ID, "charge_ref", note.ChargeRef)
	}

	if err := s.transactionRepo.Append(ctx, &domain.Transaction{
		BookingID:   booking.ID,
		Type:        domain.TransactionCharge,
		Amount:      note.Amount,
		Currency:    note.Currency,
		ExternalRef: note.ChargeRef,
		Status:      domain.TransactionSucceeded,
	}); err != nil {
		return err
	}

	if transitioned {
		s.publish(ctx, events.BookingConfirmed, events.BookingConfirmedEvent{
			BookingID:        booking.ID,
			ConfirmationCode: booking.ConfirmationCode,
			CustomerEmail:    booking.CustomerEmail,
			ChargeRef:        note.ChargeRef,
			ConfirmedAt:      time.Now(),
		})
		// Delivery is owned by the notify consumer; this is a hand-off only.
		s.publish(ctx, events.NotifySend, events.NotificationEvent{
			Type:      "booking_confirmed",
			Recipient: booking.CustomerEmail,
			Subject:   "Your booking is confirmed",
			Template:  "booking-confirmed",
			Data: map[string]interface{}{
				"confirmation_code": booking.ConfirmationCode,
			},
		})
	}
	return nil
}

// SessionExpired cancels a still-pending booking and frees its capacity. The
// pending->cancelled compare-and-set succeeding is what licenses the release,
// so a duplicate delivery can never release twice.
func (s *settlementService) SessionExpired(ctx context.Context, note domain.SessionExpiredNote) error {
	return s.cancelPending(ctx, note.BookingID, domain.CancelReasonExpired, nil)
}

// PaymentFailed behaves like expiry, plus a failed charge audit entry.
func (s *settlementService) PaymentFailed(ctx context.Context, note domain.PaymentFailedNote) error {
	tx := &domain.Transaction{
		BookingID:   note.BookingID,
		Type:        domain.TransactionCharge,
		Amount:      note.Amount,
		Currency:    note.Currency,
		ExternalRef: note.ChargeRef,
		Status:      domain.TransactionFailed,
	}
	return s.cancelPending(ctx, note.BookingID, domain.CancelReasonPaymentFailed, tx)
}

func (s *settlementService) cancelPending(ctx context.Context, bookingID int64, reason string, audit *domain.Transaction) error {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		// Compensation already removed it; nothing to reconcile.
		logger.InfoContext(ctx, "Notification for an unknown booking ignored", "booking_id", bookingID, "reason", reason)
		return nil
	}
	if err != nil {
		return err
	}

	transitioned, err := s.bookingRepo.CancelIf(ctx, booking.ID, domain.BookingPending, reason, "system")
	if err != nil {
		return err
	}

	if audit != nil {
		if err := s.transactionRepo.Append(ctx, audit); err != nil {
			return err
		}
	}

	if !transitioned {
		return nil
	}

	if err := s.releaseCapacity(ctx, booking); err != nil {
		return err
	}

	s.publish(ctx, events.BookingCancelled, events.BookingCancelledEvent{
		BookingID:     booking.ID,
		CustomerEmail: booking.CustomerEmail,
		Reason:        reason,
		CancelledAt:   time.Now(),
	})
	return nil
}

// AccountUpdated mirrors the connected account's capability flags onto the
// practitioner. Practitioner-level, not booking-level.
func (s *settlementService) AccountUpdated(ctx context.Context, note domain.AccountUpdatedNote) error {
	return s.practitionerRepo.UpdatePaymentFlags(ctx, note.AccountID,
		note.ChargesEnabled, note.PayoutsEnabled, note.DetailsSubmitted)
}

// ChargeRefunded locates the booking through the charge reference. A full
// refund moves confirmed/completed to refunded; a partial refund only records
// the amount. Capacity is not restored on refund.
func (s *settlementService) ChargeRefunded(ctx context.Context, note domain.ChargeRefundedNote) error {
	booking, err := s.bookingRepo.GetByChargeRef(ctx, note.ChargeRef)
	if errors.Is(err, domain.ErrNotFound) {
		logger.WarnContext(ctx, "Refund for an unknown charge ignored", "charge_ref", note.ChargeRef)
		return nil
	}
	if err != nil {
		return err
	}

	transitioned := false
	if note.FullyRefunded {
		transitioned, err = s.bookingRepo.MarkRefunded(ctx, booking.ID, note.AmountRefunded)
	} else {
		err = s.bookingRepo.SetRefundAmount(ctx, booking.ID, note.AmountRefunded)
	}
	if err != nil {
		return err
	}

	if err := s.transactionRepo.Append(ctx, &domain.Transaction{
		BookingID:   booking.ID,
		Type:        domain.TransactionRefund,
		Amount:      note.AmountRefunded,
		Currency:    note.Currency,
		ExternalRef: note.RefundRef,
		Status:      domain.TransactionSucceeded,
	}); err != nil {
		return err
	}

	if transitioned {
		s.publish(ctx, events.BookingRefunded, events.BookingRefundedEvent{
			BookingID:     booking.ID,
			CustomerEmail: booking.CustomerEmail,
			RefundAmount:  note.AmountRefunded,
			RefundedAt:    time.Now(),
		})
	}
	return nil
}

// TransferCreated stores the payout transfer reference and audits it.
func (s *settlementService) TransferCreated(ctx context.Context, note domain.TransferCreatedNote) error {
	booking, err := s.bookingRepo.GetByID(ctx, note.BookingID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.WarnContext(ctx, "Transfer for an unknown booking ignored", "booking_id", note.BookingID, "transfer_ref", note.TransferRef)
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.bookingRepo.SetTransferRef(ctx, booking.ID, note.TransferRef); err != nil {
		return err
	}

	if err := s.transactionRepo.Append(ctx, &domain.Transaction{
		BookingID:   booking.ID,
		Type:        domain.TransactionTransfer,
		Amount:      note.Amount,
		Currency:    note.Currency,
		ExternalRef: note.TransferRef,
		Status:      domain.TransactionSucceeded,
	}); err != nil {
		return err
	}

	s.publish(ctx, events.TransferRecorded, events.TransferRecordedEvent{
		BookingID:   booking.ID,
		TransferRef: note.TransferRef,
		Amount:      note.Amount,
	})
	return nil
}

func (s *settlementService) releaseCapacity(ctx context.Context, b *domain.Booking) error {
	if b.SlotID != nil {
		return s.availabilityRepo.ReleaseSlot(ctx, *b.SlotID)
	}
	if b.EventDateID != nil {
		return s.availabilityRepo.ReleaseEventSpots(ctx, *b.EventDateID, b.Spots)
	}
	return nil
}

func (s *settlementService) publish(ctx context.Context, subject string, event any) {
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish settlement event", "error", err, "subject", subject)
	}
}
