package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/sagewell/sagewell-bookings/internal/domain"
)

type stubBookingService struct {
	detail    *domain.BookingDetail
	detailErr error
	booking   *domain.Booking
	getErr    error
}

func (s *stubBookingService) GetByConfirmation(ctx context.Context, code, email string) (*domain.BookingDetail, error) {
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return s.detail, nil
}

func (s *stubBookingService) CheckStatus(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.booking, nil
}

func (s *stubBookingService) ListForOwner(ctx context.Context, practitionerID int64, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, error) {
	return nil, nil
}

func (s *stubBookingService) ListTransactions(ctx context.Context, practitionerID, bookingID int64) ([]domain.Transaction, error) {
	return nil, nil
}

func (s *stubBookingService) UpdateStatus(ctx context.Context, practitionerID, bookingID int64, newStatus domain.BookingStatus, notes string) error {
	return nil
}

func (s *stubBookingService) Cancel(ctx context.Context, practitionerID, bookingID int64, reason string) error {
	return nil
}

func newTestRouter(svc *stubBookingService) *chi.Mux {
	h := New(nil, svc, nil, nil, "", nil)
	r := chi.NewRouter()
	r.Get("/v1/bookings/confirmation", h.GetByConfirmation)
	r.Get("/v1/bookings/{id}/status", h.CheckStatus)
	return r
}

func TestGetByConfirmationHandler(t *testing.T) {
	svc := &stubBookingService{
		detail: &domain.BookingDetail{
			Booking: domain.Booking{
				ID:               101,
				Status:           domain.BookingConfirmed,
				ConfirmationCode: "SGW-K7M2QX",
			},
			OfferingTitle:    "Deep Tissue Massage",
			PractitionerName: "Maya Chen",
		},
	}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/confirmation?code=SGW-K7M2QX&email=guest@example.com", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got domain.BookingDetail
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Booking.ConfirmationCode != "SGW-K7M2QX" || got.OfferingTitle != "Deep Tissue Massage" {
		t.Errorf("body = %+v", got)
	}
}

func TestGetByConfirmationHandlerMissingParams(t *testing.T) {
	r := newTestRouter(&stubBookingService{})

	for _, path := range []string{
		"/v1/bookings/confirmation",
		"/v1/bookings/confirmation?code=SGW-K7M2QX",
		"/v1/bookings/confirmation?email=guest@example.com",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, w.Code)
		}
	}
}

func TestGetByConfirmationHandlerNotFound(t *testing.T) {
	r := newTestRouter(&stubBookingService{detailErr: domain.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/confirmation?code=SGW-WRONG1&email=guest@example.com", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCheckStatusHandler(t *testing.T) {
	svc := &stubBookingService{
		booking: &domain.Booking{ID: 101, Status: domain.BookingPending, ConfirmationCode: "SGW-K7M2QX"},
	}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/101/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["status"] != "pending" || got["confirmation_code"] != "SGW-K7M2QX" {
		t.Errorf("body = %v", got)
	}
}

func TestCheckStatusHandlerBadID(t *testing.T) {
	r := newTestRouter(&stubBookingService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings/abc/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
