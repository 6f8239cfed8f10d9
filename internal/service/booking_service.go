package service

import (
	"context"
	"strings"
	"time"

	"github.com/sagewell/sagewell-bookings/internal/domain"
	"github.com/sagewell/sagewell-bookings/internal/repository"
	"github.com/sagewell/sagewell-bookings/pkg/events"
	"github.com/sagewell/sagewell-bookings/pkg/logger"
)

// BookingService is the read side plus the practitioner-facing mutations:
// confirmation lookup, status checks, owner listings, completion/no-show
// marking, and practitioner cancellation.
type BookingService interface {
	GetByConfirmation(ctx context.Context, code, email string) (*domain.BookingDetail, error)
	CheckStatus(ctx context.Context, bookingID int64) (*domain.Booking, error)
	ListForOwner(ctx context.Context, practitionerID int64, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error)
	ListTransactions(ctx context.Context, practitionerID, bookingID int64) ([]domain.Transaction, error)
	UpdateStatus(ctx context.Context, practitionerID, bookingID int64, newStatus domain.BookingStatus, notes string) error
	Cancel(ctx context.Context, practitionerID, bookingID int64, reason string) error
}

type bookingService struct {
	bookingRepo      repository.BookingRepository
	availabilityRepo repository.AvailabilityRepository
	transactionRepo  repository.TransactionRepository
	eventBus         events.Publisher
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	availabilityRepo repository.AvailabilityRepository,
	transactionRepo repository.TransactionRepository,
	eventBus events.Publisher,
) BookingService {
	return &bookingService{
		bookingRepo:      bookingRepo,
		availabilityRepo: availabilityRepo,
		transactionRepo:  transactionRepo,
		eventBus:         eventBus,
	}
}

// GetByConfirmation requires the exact (code, email) pair. Both halves go
// into one lookup so the response never reveals which one was wrong.
func (s *bookingService) GetByConfirmation(ctx context.Context, code, email string) (*domain.BookingDetail, error) {
	code = strings.TrimSpace(code)
	email = strings.TrimSpace(email)
	if code == "" || email == "" {
		return nil, domain.ErrNotFound
	}
	return s.bookingRepo.GetDetailByConfirmation(ctx, code, email)
}

func (s *bookingService) CheckStatus(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	return s.bookingRepo.GetByID(ctx, bookingID)
}

func (s *bookingService) ListForOwner(ctx context.Context, practitionerID int64, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	return s.bookingRepo.ListForOwner(ctx, practitionerID, status, limit, offset)
}

// ListTransactions returns a booking's money-movement audit trail to the
// offering's owner.
func (s *bookingService) ListTransactions(ctx context.Context, practitionerID, bookingID int64) ([]domain.Transaction, error) {
	booking, err := s.ownedBooking(ctx, practitionerID, bookingID)
	if err != nil {
		return nil, err
	}
	return s.transactionRepo.ListForBooking(ctx, booking.ID)
}

// UpdateStatus marks a confirmed booking completed or no_show. Terminal;
// only the offering's owner may do it, and only from confirmed.
func (s *bookingService) UpdateStatus(ctx context.Context, practitionerID, bookingID int64, newStatus domain.BookingStatus, notes string) error {
	if newStatus != domain.BookingCompleted && newStatus != domain.BookingNoShow {
		return domain.Validationf("status must be %s or %s", domain.BookingCompleted, domain.BookingNoShow)
	}

	booking, err := s.ownedBooking(ctx, practitionerID, bookingID)
	if err != nil {
		return err
	}

	transitioned, err := s.bookingRepo.UpdateStatusFrom(ctx, booking.ID, domain.BookingConfirmed, newStatus, notes)
	if err != nil {
		return err
	}
	if !transitioned {
		return domain.ErrInvalidState
	}
	return nil
}

// Cancel is the practitioner-initiated cancellation, allowed from pending or
// confirmed. The status compare-and-set actually transitioning is what
// licenses the capacity release, exactly as in settlement.
func (s *bookingService) Cancel(ctx context.Context, practitionerID, bookingID int64, reason string) error {
	booking, err := s.ownedBooking(ctx, practitionerID, bookingID)
	if err != nil {
		return err
	}

	if !booking.Status.HoldsCapacity() {
		return domain.ErrInvalidState
	}

	if strings.TrimSpace(reason) == "" {
		reason = domain.CancelReasonPractitioner
	}

	transitioned, err := s.bookingRepo.CancelIf(ctx, booking.ID, booking.Status, reason, "practitioner")
	if err != nil {
		return err
	}
	if !transitioned {
		return domain.ErrInvalidState
	}

	if err := s.releaseCapacity(ctx, booking); err != nil {
		return err
	}

	event := events.BookingCancelledEvent{
		BookingID:     booking.ID,
		CustomerEmail: booking.CustomerEmail,
		Reason:        reason,
		CancelledAt:   time.Now(),
	}
	if err := s.eventBus.Publish(ctx, events.BookingCancelled, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking cancelled event", "error", err, "booking_id", booking.ID)
	}
	return nil
}

// ownedBooking loads a booking and enforces ownership at this boundary. A
// booking owned by someone else reads as not found.
func (s *bookingService) ownedBooking(ctx context.Context, practitionerID, bookingID int64) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PractitionerID != practitionerID {
		return nil, domain.ErrNotFound
	}
	return booking, nil
}

func (s *bookingService) releaseCapacity(ctx context.Context, b *domain.Booking) error {
	if b.SlotID != nil {
		return s.availabilityRepo.ReleaseSlot(ctx, *b.SlotID)
	}
	if b.EventDateID != nil {
		return s.availabilityRepo.ReleaseEventSpots(ctx, *b.EventDateID, b.Spots)
	}
	return nil
}
