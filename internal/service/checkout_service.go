package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sagewell/sagewell-bookings/internal/domain"
	"github.com/sagewell/sagewell-bookings/internal/platform/payments"
	"github.com/sagewell/sagewell-bookings/internal/repository"
	"github.com/sagewell/sagewell-bookings/pkg/config"
	"github.com/sagewell/sagewell-bookings/pkg/events"
	"github.com/sagewell/sagewell-bookings/pkg/logger"
)

type CheckoutService interface {
	InitiateCheckout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResult, error)
}

type checkoutService struct {
	offeringRepo     repository.OfferingRepository
	availabilityRepo repository.AvailabilityRepository
	bookingRepo      repository.BookingRepository
	practitionerRepo repository.PractitionerRepository
	provider         payments.Provider
	eventBus         events.Publisher
	cfg              *config.Config
}

func NewCheckoutService(
	offeringRepo repository.OfferingRepository,
	availabilityRepo repository.AvailabilityRepository,
	bookingRepo repository.BookingRepository,
	practitionerRepo repository.PractitionerRepository,
	provider payments.Provider,
	eventBus events.Publisher,
	cfg *config.Config,
) CheckoutService {
	return &checkoutService{
		offeringRepo:     offeringRepo,
		availabilityRepo: availabilityRepo,
		bookingRepo:      bookingRepo,
		practitionerRepo: practitionerRepo,
		provider:         provider,
		eventBus:         eventBus,
		cfg:              cfg,
	}
}

// InitiateCheckout runs the reservation saga: validate, reserve capacity,
// create the pending booking, then request the hosted payment session. The
// first four steps mutate nothing; once capacity is reserved, a failure in
// any later step deletes the booking and releases the reservation before the
// error surfaces. No partial state survives the call.
func (s *checkoutService) InitiateCheckout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	view, err := s.offeringRepo.GetCheckoutView(ctx, req.OfferingID)
	if err != nil {
		return nil, err
	}

	// Checked before any reservation so no capacity is ever tied up behind a
	// payment attempt that cannot succeed. Stale flags get one live re-read
	// before the checkout is refused.
	if !view.Practitioner.CanAcceptPayments() && !s.refreshPaymentCapability(ctx, &view.Practitioner) {
		return nil, domain.ErrPaymentNotConfigured
	}

	if err := s.validateReservationKind(ctx, req, view); err != nil {
		return nil, err
	}

	if err := s.reserve(ctx, req, view); err != nil {
		return nil, err
	}

	gross := view.Offering.Price * int64(req.Spots)
	feePercent := s.cfg.Booking.DefaultFeePercent
	if view.CityFee != nil {
		feePercent = *view.CityFee
	}
	fee, net := domain.SplitFee(gross, feePercent)

	booking, err := s.bookingRepo.Create(ctx, &domain.BookingDraft{
		OfferingID:      view.Offering.ID,
		SlotID:          req.SlotID,
		EventDateID:     req.EventDateID,
		Spots:           req.Spots,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		CustomerNotes:   req.CustomerNotes,
		GrossAmount:     gross,
		PlatformFee:     fee,
		PractitionerNet: net,
		Currency:        view.Offering.Currency,
	})
	if err != nil {
		s.release(ctx, req)
		return nil, fmt.Errorf("create booking: %w", err)
	}

	if req.SlotID != nil {
		if err := s.availabilityRepo.AttachSlotBooking(ctx, *req.SlotID, booking.ID); err != nil {
			logger.WarnContext(ctx, "Failed to attach booking to slot", "error", err, "booking_id", booking.ID)
		}
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, payments.SessionParams{
		BookingID:          booking.ID,
		Description:        view.Offering.Title,
		Amount:             gross,
		Currency:           booking.Currency,
		ApplicationFee:     fee,
		DestinationAccount: view.Practitioner.StripeAccountID,
		CustomerEmail:      booking.CustomerEmail,
		SuccessURL:         s.cfg.Booking.CheckoutSuccessURL + "?code=" + booking.ConfirmationCode,
		CancelURL:          s.cfg.Booking.CheckoutCancelURL + "?code=" + booking.ConfirmationCode,
	})
	if err != nil {
		s.compensate(ctx, req, booking.ID)
		return nil, &domain.DependencyError{Op: "create payment session", Err: err}
	}

	if err := s.bookingRepo.SetCheckoutSession(ctx, booking.ID, sess.ID); err != nil {
		// The session exists and carries the booking id in its metadata, so
		// settlement still reconciles; don't throw the booking away over a
		// bookkeeping write.
		logger.ErrorContext(ctx, "Failed to persist checkout session ref", "error", err, "booking_id", booking.ID)
	}

	s.publishCreated(ctx, booking)

	return &domain.CheckoutResult{
		CheckoutURL:      sess.URL,
		ConfirmationCode: booking.ConfirmationCode,
		BookingID:        booking.ID,
	}, nil
}

// refreshPaymentCapability re-reads the connected account when the mirrored
// capability flags say payments are off. The mirror lags whenever an
// account.updated notification is missed, so a live read settles it before a
// bookable offering is refused.
func (s *checkoutService) refreshPaymentCapability(ctx context.Context, p *domain.Practitioner) bool {
	if p.StripeAccountID == "" {
		return false
	}

	status, err := s.provider.AccountStatus(ctx, p.StripeAccountID)
	if err != nil {
		logger.WarnContext(ctx, "Failed to refresh account capability", "error", err, "account_id", p.StripeAccountID)
		return false
	}

	p.ChargesEnabled = status.ChargesEnabled
	p.PayoutsEnabled = status.PayoutsEnabled
	p.DetailsSubmitted = status.DetailsSubmitted

	if err := s.practitionerRepo.UpdatePaymentFlags(ctx, p.StripeAccountID,
		status.ChargesEnabled, status.PayoutsEnabled, status.DetailsSubmitted); err != nil {
		logger.WarnContext(ctx, "Failed to persist refreshed capability flags", "error", err, "account_id", p.StripeAccountID)
	}

	return p.CanAcceptPayments()
}

func (s *checkoutService) validateRequest(req *domain.CheckoutRequest) error {
	if req.OfferingID <= 0 {
		return domain.Validationf("offering_id is required")
	}
	email := strings.TrimSpace(req.CustomerEmail)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Validationf("a valid customer_email is required")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return domain.Validationf("customer_name is required")
	}
	if req.Spots < 1 {
		return domain.Validationf("spots must be at least 1")
	}
	return nil
}

// validateReservationKind checks the request references the reservation kind
// matching the offering, and that the referenced row belongs to it. Reads
// only; the authoritative availability decision happens in reserve.
func (s *checkoutService) validateReservationKind(ctx context.Context, req *domain.CheckoutRequest, view *domain.OfferingCheckoutView) error {
	switch view.Offering.Kind {
	case domain.OfferingSession:
		if req.SlotID == nil || req.EventDateID != nil {
			return domain.Validationf("a session booking requires slot_id")
		}
		if req.Spots != 1 {
			return domain.Validationf("a session booking is for exactly 1 spot")
		}
		slot, err := s.availabilityRepo.GetSlot(ctx, *req.SlotID)
		if err != nil {
			return err
		}
		if slot.OfferingID != view.Offering.ID {
			return domain.ErrNotFound
		}
	case domain.OfferingEvent:
		if req.EventDateID == nil || req.SlotID != nil {
			return domain.Validationf("an event booking requires event_date_id")
		}
		date, err := s.availabilityRepo.GetEventDate(ctx, *req.EventDateID)
		if err != nil {
			return err
		}
		if date.OfferingID != view.Offering.ID {
			return domain.ErrNotFound
		}
		if req.Spots > date.SpotsRemaining {
			return domain.Validationf("only %d spots remaining", date.SpotsRemaining)
		}
	default:
		return domain.Validationf("unknown offering kind %q", view.Offering.Kind)
	}
	return nil
}

func (s *checkoutService) reserve(ctx context.Context, req *domain.CheckoutRequest, view *domain.OfferingCheckoutView) error {
	if req.SlotID != nil {
		return s.availabilityRepo.ReserveSlot(ctx, *req.SlotID, view.Offering.ID)
	}
	return s.availabilityRepo.ReserveEventSpots(ctx, *req.EventDateID, view.Offering.ID, req.Spots)
}

// release undoes a reservation. Errors are logged, not returned: the release
// targets already-tolerant operations and the caller is itself unwinding.
func (s *checkoutService) release(ctx context.Context, req *domain.CheckoutRequest) {
	var err error
	if req.SlotID != nil {
		err = s.availabilityRepo.ReleaseSlot(ctx, *req.SlotID)
	} else if req.EventDateID != nil {
		err = s.availabilityRepo.ReleaseEventSpots(ctx, *req.EventDateID, req.Spots)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to release reserved capacity during rollback", "error", err)
	}
}

// compensate restores the pre-request state after a payment-session failure:
// the pending booking is deleted (not cancelled) and capacity released. Both
// calls tolerate already-absent state.
func (s *checkoutService) compensate(ctx context.Context, req *domain.CheckoutRequest, bookingID int64) {
	if err := s.bookingRepo.Delete(ctx, bookingID); err != nil {
		logger.ErrorContext(ctx, "Failed to delete booking during rollback", "error", err, "booking_id", bookingID)
	}
	s.release(ctx, req)
}

func (s *checkoutService) publishCreated(ctx context.Context, b *domain.Booking) {
	event := events.BookingCreatedEvent{
		BookingID:        b.ID,
		OfferingID:       b.OfferingID,
		ConfirmationCode: b.ConfirmationCode,
		CustomerEmail:    b.CustomerEmail,
		GrossAmount:      b.GrossAmount,
		Currency:         b.Currency,
		CreatedAt:        time.Now(),
	}
	if err := s.eventBus.Publish(ctx, events.BookingCreated, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "booking_id", b.ID)
	}
}
