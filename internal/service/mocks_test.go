package service

import (
	"context"

	"github.com/sagewell/sagewell-bookings/internal/domain"
	"github.com/sagewell/sagewell-bookings/internal/platform/payments"
)

// Hand-written mocks. Boolean transition results are queues consumed per call
// so a test can script a race: the first delivery transitions, the second
// finds the precondition gone.

func popBool(q *[]bool, def bool) bool {
	if len(*q) == 0 {
		return def
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v
}

type mockOfferingRepo struct {
	view *domain.OfferingCheckoutView
	err  error
}

func (m *mockOfferingRepo) GetCheckoutView(ctx context.Context, offeringID int64) (*domain.OfferingCheckoutView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

type mockAvailabilityRepo struct {
	slot    *domain.AvailabilitySlot
	slotErr error
	date    *domain.EventDate
	dateErr error

	reserveSlotErr    error
	reserveSlotCalls  int
	attachErr         error
	attachCalls       int
	releaseSlotCalls  int
	reserveEventErr   error
	reserveEventCalls int
	lastReserveCount  int
	releaseEventCalls int
	lastReleaseCount  int
}

func (m *mockAvailabilityRepo) ReserveSlot(ctx context.Context, slotID, offeringID int64) error {
	m.reserveSlotCalls++
	return m.reserveSlotErr
}

func (m *mockAvailabilityRepo) AttachSlotBooking(ctx context.Context, slotID, bookingID int64) error {
	m.attachCalls++
	return m.attachErr
}

func (m *mockAvailabilityRepo) ReleaseSlot(ctx context.Context, slotID int64) error {
	m.releaseSlotCalls++
	return nil
}

func (m *mockAvailabilityRepo) ReserveEventSpots(ctx context.Context, eventDateID, offeringID int64, count int) error {
	m.reserveEventCalls++
	m.lastReserveCount = count
	return m.reserveEventErr
}

func (m *mockAvailabilityRepo) ReleaseEventSpots(ctx context.Context, eventDateID int64, count int) error {
	m.releaseEventCalls++
	m.lastReleaseCount = count
	return nil
}

func (m *mockAvailabilityRepo) GetSlot(ctx context.Context, slotID int64) (*domain.AvailabilitySlot, error) {
	if m.slotErr != nil {
		return nil, m.slotErr
	}
	return m.slot, nil
}

func (m *mockAvailabilityRepo) GetEventDate(ctx context.Context, eventDateID int64) (*domain.EventDate, error) {
	if m.dateErr != nil {
		return nil, m.dateErr
	}
	return m.date, nil
}

func (m *mockAvailabilityRepo) ListOpenSlots(ctx context.Context, offeringID int64) ([]domain.AvailabilitySlot, error) {
	return nil, nil
}

func (m *mockAvailabilityRepo) ListUpcomingEventDates(ctx context.Context, offeringID int64) ([]domain.EventDate, error) {
	return nil, nil
}

type mockBookingRepo struct {
	booking   *domain.Booking
	getErr    error
	byCharge  *domain.Booking
	chargeErr error
	detail    *domain.BookingDetail
	detailErr error
	list      []domain.Booking

	createFn    func(*domain.BookingDraft) (*domain.Booking, error)
	createCalls int
	lastDraft   *domain.BookingDraft
	deleteCalls int

	sessionRefs []string

	confirmResults []bool
	confirmErr     error
	confirmCalls   int
	lastChargeRef  string

	cancelResults    []bool
	cancelCalls      int
	lastCancelFrom   domain.BookingStatus
	lastCancelReason string
	lastCancelledBy  string

	updateResults []bool
	updateCalls   int
	lastUpdateTo  domain.BookingStatus

	markResults      []bool
	markCalls        int
	setRefundCalls   int
	lastRefundAmount int64
	transferRefs     []string
}

func (m *mockBookingRepo) Create(ctx context.Context, draft *domain.BookingDraft) (*domain.Booking, error) {
	m.createCalls++
	m.lastDraft = draft
	if m.createFn != nil {
		return m.createFn(draft)
	}
	b := &domain.Booking{
		ID:               101,
		OfferingID:       draft.OfferingID,
		SlotID:           draft.SlotID,
		EventDateID:      draft.EventDateID,
		Spots:            draft.Spots,
		Status:           domain.BookingPending,
		ConfirmationCode: "SGW-K7M2QX",
		CustomerName:     draft.CustomerName,
		CustomerEmail:    draft.CustomerEmail,
		GrossAmount:      draft.GrossAmount,
		PlatformFee:      draft.PlatformFee,
		PractitionerNet:  draft.PractitionerNet,
		Currency:         draft.Currency,
	}
	return b, nil
}

func (m *mockBookingRepo) Delete(ctx context.Context, id int64) error {
	m.deleteCalls++
	return nil
}

func (m *mockBookingRepo) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.booking, nil
}

func (m *mockBookingRepo) GetByChargeRef(ctx context.Context, chargeRef string) (*domain.Booking, error) {
	if m.chargeErr != nil {
		return nil, m.chargeErr
	}
	return m.byCharge, nil
}

func (m *mockBookingRepo) GetDetailByConfirmation(ctx context.Context, code, email string) (*domain.BookingDetail, error) {
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	return m.detail, nil
}

func (m *mockBookingRepo) ListForOwner(ctx context.Context, practitionerID int64, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	return m.list, nil
}

func (m *mockBookingRepo) SetCheckoutSession(ctx context.Context, id int64, sessionRef string) error {
	m.sessionRefs = append(m.sessionRefs, sessionRef)
	return nil
}

func (m *mockBookingRepo) ConfirmPayment(ctx context.Context, id int64, chargeRef string) (bool, error) {
	m.confirmCalls++
	m.lastChargeRef = chargeRef
	if m.confirmErr != nil {
		return false, m.confirmErr
	}
	return popBool(&m.confirmResults, true), nil
}

func (m *mockBookingRepo) CancelIf(ctx context.Context, id int64, from domain.BookingStatus, reason, by string) (bool, error) {
	m.cancelCalls++
	m.lastCancelFrom = from
	m.lastCancelReason = reason
	m.lastCancelledBy = by
	return popBool(&m.cancelResults, true), nil
}

func (m *mockBookingRepo) UpdateStatusFrom(ctx context.Context, id int64, from, to domain.BookingStatus, notes string) (bool, error) {
	m.updateCalls++
	m.lastUpdateTo = to
	return popBool(&m.updateResults, true), nil
}

func (m *mockBookingRepo) MarkRefunded(ctx context.Context, id int64, amount int64) (bool, error) {
	m.markCalls++
	m.lastRefundAmount = amount
	return popBool(&m.markResults, true), nil
}

func (m *mockBookingRepo) SetRefundAmount(ctx context.Context, id int64, amount int64) error {
	m.setRefundCalls++
	m.lastRefundAmount = amount
	return nil
}

func (m *mockBookingRepo) SetTransferRef(ctx context.Context, id int64, transferRef string) error {
	m.transferRefs = append(m.transferRefs, transferRef)
	return nil
}

type mockTransactionRepo struct {
	appended  []domain.Transaction
	appendErr error
}

func (m *mockTransactionRepo) Append(ctx context.Context, tx *domain.Transaction) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, *tx)
	return nil
}

func (m *mockTransactionRepo) ListForBooking(ctx context.Context, bookingID int64) ([]domain.Transaction, error) {
	return m.appended, nil
}

type mockPractitionerRepo struct {
	updateCalls int
	lastAccount string
	lastCharges bool
	lastPayouts bool
	lastDetails bool
}

func (m *mockPractitionerRepo) UpdatePaymentFlags(ctx context.Context, stripeAccountID string, chargesEnabled, payoutsEnabled, detailsSubmitted bool) error {
	m.updateCalls++
	m.lastAccount = stripeAccountID
	m.lastCharges = chargesEnabled
	m.lastPayouts = payoutsEnabled
	m.lastDetails = detailsSubmitted
	return nil
}

type mockPaymentProvider struct {
	session    *payments.Session
	err        error
	calls      int
	lastParams payments.SessionParams

	accountStatus *payments.AccountStatus
	accountErr    error
	accountCalls  int
	lastAccountID string
}

func (m *mockPaymentProvider) CreateCheckoutSession(ctx context.Context, params payments.SessionParams) (*payments.Session, error) {
	m.calls++
	m.lastParams = params
	if m.err != nil {
		return nil, m.err
	}
	if m.session != nil {
		return m.session, nil
	}
	return &payments.Session{ID: "cs_test_123", URL: "https://checkout.example.com/cs_test_123"}, nil
}

func (m *mockPaymentProvider) AccountStatus(ctx context.Context, accountID string) (*payments.AccountStatus, error) {
	m.accountCalls++
	m.lastAccountID = accountID
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	if m.accountStatus != nil {
		return m.accountStatus, nil
	}
	return &payments.AccountStatus{}, nil
}

type publishedEvent struct {
	subject string
	data    any
}

type mockPublisher struct {
	published []publishedEvent
	err       error
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, publishedEvent{subject: subject, data: data})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) subjects() []string {
	var out []string
	for _, e := range m.published {
		out = append(out, e.subject)
	}
	return out
}
