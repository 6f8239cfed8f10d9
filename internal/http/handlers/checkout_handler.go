package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sagewell/sagewell-bookings/internal/domain"
	"github.com/sagewell/sagewell-bookings/internal/http/response"
)

// InitiateCheckout starts the reservation saga and returns the hosted
// payment URL alongside the confirmation code.
func (h *Handlers) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if req.Spots == 0 {
		req.Spots = 1
	}

	result, err := h.checkoutService.InitiateCheckout(r.Context(), &req)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
