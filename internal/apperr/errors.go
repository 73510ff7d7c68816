package apperr

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a uniqueness or optimistic concurrency conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidStatusTransition is returned when an order status change is not in the transition table.
var ErrInvalidStatusTransition = errors.New("invalid status transition")

// ErrInvalidRejectReason is returned when a reject reason is shorter than the required minimum.
var ErrInvalidRejectReason = fmt.Errorf("%w: reject reason", ErrInvalid)

// ErrOutsideWorkingHours is returned when a courier tries to go available outside its shift.
var ErrOutsideWorkingHours = fmt.Errorf("%w: outside working hours", ErrInvalid)

// ErrHasActiveOrders is returned when a courier with active orders tries to go offline.
var ErrHasActiveOrders = fmt.Errorf("%w: courier has active orders", ErrInvalid)
