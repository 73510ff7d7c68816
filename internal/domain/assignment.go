package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"courier-dispatch/internal/apperr"
)

// Assignment binds one courier to one order at a point in time (an offer and its outcome).
type Assignment struct {
	ID               int64
	OrderID          uuid.UUID
	CourierID        int64
	Status           AssignmentStatus
	DeliveryFee      decimal.Decimal
	Tip              decimal.Decimal
	RejectReason     string
	Active           bool
	OfferedAt        time.Time
	AcceptedAt       *time.Time
	RejectedAt       *time.Time
	PickedUpAt       *time.Time
	OutForDeliveryAt *time.Time
	DeliveredAt      *time.Time
	CancelledAt      *time.Time
	Version          int64
}

// MoveTo applies next through the assignment transition table and stamps the transition time.
// Rejected and cancelled assignments stop being active.
func (a *Assignment) MoveTo(next AssignmentStatus, at time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: assignment %s -> %s", apperr.ErrInvalidStatusTransition, a.Status, next)
	}
	a.Status = next
	switch next {
	case AssignmentAccepted:
		a.AcceptedAt = &at
	case AssignmentRejected:
		a.RejectedAt = &at
		a.Active = false
	case AssignmentPickedUp:
		a.PickedUpAt = &at
	case AssignmentOutForDelivery:
		a.OutForDeliveryAt = &at
	case AssignmentDelivered:
		a.DeliveredAt = &at
	case AssignmentCancelled:
		a.CancelledAt = &at
		a.Active = false
	}
	return nil
}

// Earning is the immutable payout record of one delivered assignment.
type Earning struct {
	ID           int64
	CourierID    int64
	OrderID      uuid.UUID
	AssignmentID int64
	DeliveryFee  decimal.Decimal
	Tip          decimal.Decimal
	Total        decimal.Decimal
	EarnedAt     time.Time
}

// DispatchResult describes the outcome of offering an order.
type DispatchResult struct {
	OrderID         uuid.UUID
	CourierID       int64
	AssignmentID    int64
	DeliveryFee     decimal.Decimal
	Offered         bool
	AlreadyAssigned bool
	NoCandidate     bool
	// NotDispatchable is set when the order is past the stage where couriers can be offered it.
	NotDispatchable bool
}

// RejectResult describes a rejection and the re-dispatch it triggered.
type RejectResult struct {
	OrderID       uuid.UUID
	Rejected      bool
	Reassigned    bool
	NextCourierID int64
	NoCandidate   bool
}
