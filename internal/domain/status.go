package domain

import (
	"fmt"
	"regexp"
	"strings"

	"courier-dispatch/internal/apperr"
)

// List of possible courier statuses
const (
	CourierOffline   CourierStatus = "offline"
	CourierAvailable CourierStatus = "available"
	CourierBusy      CourierStatus = "busy"
)

// List of possible courier vehicle types
const (
	VehicleFoot       VehicleType = "on_foot"
	VehicleBicycle    VehicleType = "bicycle"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleCar        VehicleType = "car"
)

var allowedCourierStatuses = [...]CourierStatus{
	CourierOffline, CourierAvailable, CourierBusy,
}

var allowedVehicles = [...]VehicleType{
	VehicleFoot, VehicleBicycle, VehicleMotorcycle, VehicleCar,
}

// Valid checks if the CourierStatus is valid
func (s CourierStatus) Valid() bool {
	for _, v := range allowedCourierStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Valid checks if the VehicleType is valid
func (t VehicleType) Valid() bool {
	for _, v := range allowedVehicles {
		if t == v {
			return true
		}
	}
	return false
}

// OrderStatus is the delivery lifecycle state of an order.
type OrderStatus string

// List of order statuses
const (
	OrderPending        OrderStatus = "pending"
	OrderPreparing      OrderStatus = "preparing"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
)

// orderTransitions is the only source of allowed order status changes.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:        {OrderPreparing, OrderCancelled},
	OrderPreparing:      {OrderOutForDelivery, OrderCancelled},
	OrderOutForDelivery: {OrderDelivered},
	OrderDelivered:      nil,
	OrderCancelled:      nil,
}

// Valid checks if the OrderStatus is known.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransitionTo reports whether s -> next is in the transition table.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates s -> next and returns ErrInvalidStatusTransition when it is not allowed.
func (s OrderStatus) Transition(next OrderStatus) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidStatusTransition, s, next)
	}
	return nil
}

// Dispatchable reports whether a courier may still be offered or assigned the order.
func (s OrderStatus) Dispatchable() bool {
	return s == OrderPending || s == OrderPreparing
}

// ParseOrderStatus parses a status name, accepting "OutForDelivery" style spellings.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "outfordelivery", "out-for-delivery":
		s = string(OrderOutForDelivery)
	case "canceled":
		s = string(OrderCancelled)
	}
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown order status %q", apperr.ErrInvalid, raw)
	}
	return st, nil
}

// AssignmentStatus is the state of a single courier offer.
type AssignmentStatus string

// List of assignment statuses
const (
	AssignmentOffered        AssignmentStatus = "offered"
	AssignmentAccepted       AssignmentStatus = "accepted"
	AssignmentRejected       AssignmentStatus = "rejected"
	AssignmentPickedUp       AssignmentStatus = "picked_up"
	AssignmentOutForDelivery AssignmentStatus = "out_for_delivery"
	AssignmentDelivered      AssignmentStatus = "delivered"
	AssignmentCancelled      AssignmentStatus = "cancelled"
)

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentOffered:        {AssignmentAccepted, AssignmentRejected, AssignmentCancelled},
	AssignmentAccepted:       {AssignmentPickedUp, AssignmentDelivered, AssignmentCancelled},
	AssignmentPickedUp:       {AssignmentOutForDelivery, AssignmentDelivered},
	AssignmentOutForDelivery: {AssignmentDelivered},
	AssignmentRejected:       nil,
	AssignmentDelivered:      nil,
	AssignmentCancelled:      nil,
}

// Valid checks if the AssignmentStatus is known.
func (s AssignmentStatus) Valid() bool {
	_, ok := assignmentTransitions[s]
	return ok
}

// CanTransitionTo reports whether s -> next is allowed for an assignment.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Counted reports whether the assignment occupies a slot of the courier's capacity.
func (s AssignmentStatus) Counted() bool {
	return s == AssignmentAccepted || s == AssignmentPickedUp || s == AssignmentOutForDelivery
}

// rePhone is a regex to validate phone numbers
var rePhone = regexp.MustCompile(`^\+[0-9]{11}$`)

// ValidatePhone validates the phone number format
func ValidatePhone(s string) bool {
	return rePhone.MatchString(s)
}
