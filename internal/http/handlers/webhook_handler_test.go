package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/sagewell/sagewell-bookings/internal/domain"
)

const testWebhookSecret = "whsec_test_secret"

type stubSettlementService struct {
	succeeded []domain.PaymentSucceededNote
	expired   []domain.SessionExpiredNote
	failed    []domain.PaymentFailedNote
	accounts  []domain.AccountUpdatedNote
	refunded  []domain.ChargeRefundedNote
	transfers []domain.TransferCreatedNote
	err       error
}

func (s *stubSettlementService) PaymentSucceeded(ctx context.Context, note domain.PaymentSucceededNote) error {
	s.succeeded = append(s.succeeded, note)
	return s.err
}

func (s *stubSettlementService) SessionExpired(ctx context.Context, note domain.SessionExpiredNote) error {
	s.expired = append(s.expired, note)
	return s.err
}

func (s *stubSettlementService) PaymentFailed(ctx context.Context, note domain.PaymentFailedNote) error {
	s.failed = append(s.failed, note)
	return s.err
}

func (s *stubSettlementService) AccountUpdated(ctx context.Context, note domain.AccountUpdatedNote) error {
	s.accounts = append(s.accounts, note)
	return s.err
}

func (s *stubSettlementService) ChargeRefunded(ctx context.Context, note domain.ChargeRefundedNote) error {
	s.refunded = append(s.refunded, note)
	return s.err
}

func (s *stubSettlementService) TransferCreated(ctx context.Context, note domain.TransferCreatedNote) error {
	s.transfers = append(s.transfers, note)
	return s.err
}

func (s *stubSettlementService) calls() int {
	return len(s.succeeded) + len(s.expired) + len(s.failed) +
		len(s.accounts) + len(s.refunded) + len(s.transfers)
}

// signedWebhookRequest wraps the object in a Stripe event envelope and signs
// the payload the way Stripe does: an HMAC-SHA256 over "<timestamp>.<body>"
// carried in the Stripe-Signature header.
func signedWebhookRequest(t *testing.T, eventType string, object map[string]any) *http.Request {
	t.Helper()

	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"type":        eventType,
		"data":        map[string]any{"object": json.RawMessage(raw)},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func newWebhookFixture() (*stubSettlementService, *Handlers) {
	settlement := &stubSettlementService{}
	return settlement, New(nil, nil, settlement, nil, testWebhookSecret, nil)
}

func paidSession() map[string]any {
	return map[string]any{
		"id":             "cs_1",
		"object":         "checkout.session",
		"payment_status": "paid",
		"payment_intent": "pi_1",
		"amount_total":   10000,
		"currency":       "usd",
		"metadata":       map[string]string{"booking_id": "101"},
	}
}

func TestStripeWebhookInvalidSignature(t *testing.T) {
	settlement, h := newWebhookFixture()

	req := signedWebhookRequest(t, "checkout.session.completed", paidSession())
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	h.StripeWebhook(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if settlement.calls() != 0 {
		t.Error("settlement reached despite a bad signature")
	}
}

func TestStripeWebhookPaymentSucceeded(t *testing.T) {
	settlement, h := newWebhookFixture()

	w := httptest.NewRecorder()
	h.StripeWebhook(w, signedWebhookRequest(t, "checkout.session.completed", paidSession()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(settlement.succeeded) != 1 {
		t.Fatalf("succeeded notes = %d, want 1", len(settlement.succeeded))
	}
	note := settlement.succeeded[0]
	if note.BookingID != 101 || note.SessionRef != "cs_1" || note.ChargeRef != "pi_1" {
		t.Errorf("note = %+v", note)
	}
	if note.Amount != 10000 || note.Currency != "usd" {
		t.Errorf("note money = %d %q", note.Amount, note.Currency)
	}
}

func TestStripeWebhookUnpaidSessionDeferred(t *testing.T) {
	settlement, h := newWebhookFixture()

	sess := paidSession()
	sess["payment_status"] = "unpaid"
	w := httptest.NewRecorder()
	h.StripeWebhook(w, signedWebhookRequest(t, "checkout.session.completed", sess))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if settlement.calls() != 0 {
		t.Error("unpaid session reached settlement; the async_payment event settles it")
	}
}

func TestStripeWebhookMissingBookingMetadata(t *testing.T) {
	settlement, h := newWebhookFixture()

	sess := paidSession()
	delete(sess, "metadata")
	w := httptest.NewRecorder()
	h.StripeWebhook(w, signedWebhookRequest(t, "checkout.session.completed", sess))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; foreign events are acknowledged and dropped", w.Code)
	}
	if settlement.calls() != 0 {
		t.Error("settlement reached without a booking reference")
	}
}

func TestStripeWebhookMalformedBookingMetadata(t *testing.T) {
	settlement, h := newWebhookFixture()

	sess := paidSession()
	sess["metadata"] = map[string]string{"booking_id": "not-a-number"}
	w := httptest.NewRecorder()
	h.StripeWebhook(w, signedWebhookRequest(t, "checkout.session.completed", sess))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if settlement.calls() != 0 {
		t.Error("settlement reached with a malformed booking reference")
	}
}

func TestStripeWebhookUnknownTypeAcked(t *testing.T) {
	settlement, h := newWebhookFixture()

	w := httptest.NewRecorder()
	h.StripeWebhook(w, signedWebhookRequest(t, "customer.created", map[string]any{"id": "cus_1"}))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 so Stripe stops redelivering", w.Code)
	}
	if settlement.calls() != 0 {
		t.Error("settlement reached for an unhandled event type")
	}
}

func TestStripeWebhookSessionExpired(t *testing.T) {
	settlement, h := newWebhookFixture()

	sess := map[string]any{
		"id":       "cs_1",
		"object":   "checkout.session",
		"metadata": map[string]string{"booking_id": "101"},
	}
	w := httptest.NewRecorder()
	h.StripeWebhook(w, signedWebhookRequest(t, "checkout.session.expired", sess))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(settlement.expired) != 1 || settlement.expired[0].BookingID != 101 {
		t.Errorf("expired notes = %+v, want one for booking 101", settlement.expired)
	}
}

func TestStripeWebhookHandlerErrorRetriable(t *testing.T) {
	settlement, h := newWebhookFixture()
	settlement.err = errors.New("database unavailable")

	w := httptest.NewRecorder()
	h.StripeWebhook(w, signedWebhookRequest(t, "checkout.session.completed", paidSession()))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so Stripe retries the delivery", w.Code)
	}
}
