package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

// Event is a single order event
type Event struct {
	OrderID    uuid.UUID
	Status     string
	Number     string
	VendorID   int64
	CustomerID string
	Total      decimal.Decimal
	Tip        decimal.Decimal
	Pickup     geo.Point
	Dropoff    geo.Point
	Reason     string
	CreatedAt  time.Time
}

// Order builds the pending order described by a created event.
func (e Event) Order() domain.Order {
	return domain.Order{
		ID:         e.OrderID,
		Number:     e.Number,
		VendorID:   e.VendorID,
		CustomerID: e.CustomerID,
		Total:      e.Total,
		Tip:        e.Tip,
		Pickup:     e.Pickup,
		Dropoff:    e.Dropoff,
		CreatedAt:  e.CreatedAt,
	}
}
