package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sagewell/sagewell-bookings/internal/http/response"
)

// GetByConfirmation is the customer's confirmation lookup. Code and email
// must both match; a miss on either half is the same "not found".
func (h *Handlers) GetByConfirmation(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	email := r.URL.Query().Get("email")
	if code == "" || email == "" {
		response.BadRequest(w, "code and email are required")
		return
	}

	detail, err := h.bookingService.GetByConfirmation(r.Context(), code, email)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// CheckStatus returns just the lifecycle status and confirmation code.
func (h *Handlers) CheckStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	booking, err := h.bookingService.CheckStatus(r.Context(), id)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":            string(booking.Status),
		"confirmation_code": booking.ConfirmationCode,
	})
}

// ListOpenSlots is the display-only availability read for a session
// offering. It is not authoritative; the reserve operation is.
func (h *Handlers) ListOpenSlots(w http.ResponseWriter, r *http.Request) {
	offeringID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid offering ID")
		return
	}

	slots, err := h.availabilityRepo.ListOpenSlots(r.Context(), offeringID)
	if err != nil {
		response.InternalError(w, "Failed to retrieve availability")
		return
	}

	writeJSON(w, http.StatusOK, slots)
}

// ListEventDates is the display-only availability read for an event offering.
func (h *Handlers) ListEventDates(w http.ResponseWriter, r *http.Request) {
	offeringID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid offering ID")
		return
	}

	dates, err := h.availabilityRepo.ListUpcomingEventDates(r.Context(), offeringID)
	if err != nil {
		response.InternalError(w, "Failed to retrieve availability")
		return
	}

	writeJSON(w, http.StatusOK, dates)
}
