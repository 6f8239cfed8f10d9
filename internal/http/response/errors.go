package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sagewell/sagewell-bookings/internal/domain"
	"github.com/sagewell/sagewell-bookings/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResp := ErrorResponse{
		Error: message,
		Code:  code,
	}

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		logger.Error("failed to encode error response", "error", err)
	}
}

// Common error codes
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeNotFound             = "NOT_FOUND"
	CodeCapacityConflict     = "CAPACITY_CONFLICT"
	CodePaymentNotConfigured = "PAYMENT_NOT_CONFIGURED"
	CodeInvalidState         = "INVALID_STATE"
	CodeDependencyFailure    = "DEPENDENCY_FAILURE"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

// DomainError maps the booking workflow's error taxonomy onto HTTP. Raw
// store or payment-collaborator errors never reach the caller uninterpreted.
func DomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var dependencyErr *domain.DependencyError

	switch {
	case errors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, validationErr.Msg, CodeInvalidInput)
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Not found", CodeNotFound)
	case errors.Is(err, domain.ErrCapacityConflict):
		// Expected outcome, not a failure: someone else booked first.
		WriteError(w, http.StatusConflict, "This time is no longer available, please pick another", CodeCapacityConflict)
	case errors.Is(err, domain.ErrPaymentNotConfigured):
		WriteError(w, http.StatusConflict, "This practitioner cannot accept payments yet, please check back later", CodePaymentNotConfigured)
	case errors.Is(err, domain.ErrInvalidState):
		WriteError(w, http.StatusConflict, "The booking is not in a valid state for this operation", CodeInvalidState)
	case errors.As(err, &dependencyErr):
		WriteError(w, http.StatusBadGateway, "Payment could not be started, please try again", CodeDependencyFailure)
	default:
		WriteError(w, http.StatusInternalServerError, "Something went wrong", CodeInternalError)
	}
}
