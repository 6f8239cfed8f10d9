package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced offering, slot, event date, or
// booking does not exist or does not belong to the stated parent.
var ErrNotFound = errors.New("not found")

// ErrCapacityConflict is returned when the authoritative reserve operation
// loses the race for a slot or for event spots. This is a normal, user-facing
// outcome, not a system error.
var ErrCapacityConflict = errors.New("capacity no longer available")

// ErrPaymentNotConfigured is returned when the offering's practitioner cannot
// accept payments yet.
var ErrPaymentNotConfigured = errors.New("practitioner cannot accept payments yet")

// ErrInvalidState is returned when a status transition violates the booking
// lifecycle preconditions.
var ErrInvalidState = errors.New("booking is not in a valid state for this operation")

// ErrCodeCollision is returned when confirmation code generation exhausts its
// retry budget without finding a unique code.
var ErrCodeCollision = errors.New("could not generate a unique confirmation code")

// ValidationError reports a malformed or logically inconsistent request.
// The message is safe to surface to the caller verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// DependencyError wraps a failure of the external payment collaborator. The
// checkout initiator compensates before surfacing it; handlers turn it into a
// generic "try again" response.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *DependencyError) Unwrap() error { return e.Err }
