package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sagewell/sagewell-bookings/internal/platform/idempotency"
	"github.com/sagewell/sagewell-bookings/internal/repository"
	"github.com/sagewell/sagewell-bookings/internal/service"
	"github.com/sagewell/sagewell-bookings/pkg/logger"
)

type Handlers struct {
	checkoutService   service.CheckoutService
	bookingService    service.BookingService
	settlementService service.SettlementService
	availabilityRepo  repository.AvailabilityRepository
	webhookSecret     string
	eventDedup        *idempotency.Store
}

func New(
	checkoutService service.CheckoutService,
	bookingService service.BookingService,
	settlementService service.SettlementService,
	availabilityRepo repository.AvailabilityRepository,
	webhookSecret string,
	eventDedup *idempotency.Store,
) *Handlers {
	return &Handlers{
		checkoutService:   checkoutService,
		bookingService:    bookingService,
		settlementService: settlementService,
		availabilityRepo:  availabilityRepo,
		webhookSecret:     webhookSecret,
		eventDedup:        eventDedup,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
