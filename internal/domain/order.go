package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"courier-dispatch/internal/geo"
)

// Order is the part of a marketplace order the dispatch engine works with.
type Order struct {
	ID           uuid.UUID
	Number       string
	VendorID     int64
	CustomerID   string
	Total        decimal.Decimal
	Tip          decimal.Decimal
	Pickup       geo.Point
	Dropoff      geo.Point
	Status       OrderStatus
	CancelReason string
	CreatedAt    time.Time
	CancelledAt  *time.Time
	DeliveredAt  *time.Time
	Version      int64
}

// StatusHistory is an append-only audit row of an order status change.
type StatusHistory struct {
	OrderID   uuid.UUID
	Status    OrderStatus
	Actor     string
	Note      string
	CreatedAt time.Time
}

// Actors recorded in the status history.
const (
	ActorSystem  = "system"
	ActorCourier = "courier"
	ActorVendor  = "vendor"
	ActorAdmin   = "admin"
)
