// Package service implements the booking engine and lease lifecycle rules
// on top of the storage layer.  Handlers translate the errors defined here
// into HTTP responses; nothing in this package knows about Echo.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation wraps client-correctable input problems (bad phone, bad
// date, unknown slots).  The wrapped message names the offending field.
var ErrValidation = errors.New("validation failed")

// ErrBadPassword is returned when the shared member password does not match
// any configured value.  The caller has already been delayed by the
// configured throttle when this error surfaces.
var ErrBadPassword = errors.New("invalid member password")

// ErrNotFound is returned when a return or update request references a
// lease that does not exist in the expected state.
var ErrNotFound = errors.New("no matching lease")

// ErrFrozen is returned when an update targets a lease already in the
// terminal RETURNED state.
var ErrFrozen = errors.New("lease already returned")

// ErrBadTransition is returned when the requested status change is not
// permitted by the lifecycle transition table.
var ErrBadTransition = errors.New("illegal status transition")

// ConflictError reports a slot collision on a rent request.  Slots holds
// the overlapping slot names in schedule order so the member can adjust
// the request.
type ConflictError struct {
	KeyID string
	Slots []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slots already booked on %s: %s", e.KeyID, strings.Join(e.Slots, ", "))
}

// validationf builds an ErrValidation with field detail.
func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
