package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sagewell/sagewell-bookings/internal/domain"
	httpmw "github.com/sagewell/sagewell-bookings/internal/http/middleware"
	"github.com/sagewell/sagewell-bookings/internal/http/response"
)

// ListOwnerBookings returns the authenticated practitioner's bookings,
// newest first, optionally filtered by status.
func (h *Handlers) ListOwnerBookings(w http.ResponseWriter, r *http.Request) {
	claims := httpmw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var status *domain.BookingStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := domain.ParseBookingStatus(raw)
		if !ok {
			response.BadRequest(w, "Invalid status filter")
			return
		}
		status = &parsed
	}

	limit, offset := parsePagination(r)

	bookings, err := h.bookingService.ListForOwner(r.Context(), claims.Sub, status, limit, offset)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bookings": bookings,
		"limit":    limit,
		"offset":   offset,
	})
}

// ListBookingTransactions returns the booking's money-movement audit trail.
func (h *Handlers) ListBookingTransactions(w http.ResponseWriter, r *http.Request) {
	claims := httpmw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	transactions, err := h.bookingService.ListTransactions(r.Context(), claims.Sub, id)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// UpdateBookingStatus marks a confirmed booking completed or no_show.
func (h *Handlers) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	claims := httpmw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	status, ok := domain.ParseBookingStatus(req.Status)
	if !ok {
		response.BadRequest(w, "Invalid status")
		return
	}

	if err := h.bookingService.UpdateStatus(r.Context(), claims.Sub, id, status, req.Notes); err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// CancelBooking is the practitioner-initiated cancellation. It frees the
// held capacity; refunding the customer is a separate settlement concern.
func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	claims := httpmw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON format")
			return
		}
	}

	if err := h.bookingService.Cancel(r.Context(), claims.Sub, id, req.Reason); err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.BookingCancelled)})
}
