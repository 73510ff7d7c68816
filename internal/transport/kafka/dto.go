package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/service/orders"
)

// PointDTO is a coordinate pair on the wire.
type PointDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EventDTO is a data transfer object for orders.Event
type EventDTO struct {
	OrderID    string          `json:"order_id"`
	Status     string          `json:"status"`
	Number     string          `json:"number,omitempty"`
	VendorID   int64           `json:"vendor_id,omitempty"`
	CustomerID string          `json:"customer_id,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Tip        decimal.Decimal `json:"tip"`
	Pickup     PointDTO        `json:"pickup"`
	Dropoff    PointDTO        `json:"dropoff"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToDomain converts EventDTO to orders.Event. A malformed order id is a permanent error.
func ToDomain(dto EventDTO) (orders.Event, error) {
	id, err := uuid.Parse(strings.TrimSpace(dto.OrderID))
	if err != nil {
		return orders.Event{}, Permanent(fmt.Errorf("order_id %q: %w", dto.OrderID, err))
	}
	return orders.Event{
		OrderID:    id,
		Status:     strings.TrimSpace(dto.Status),
		Number:     strings.TrimSpace(dto.Number),
		VendorID:   dto.VendorID,
		CustomerID: strings.TrimSpace(dto.CustomerID),
		Total:      dto.Total,
		Tip:        dto.Tip,
		Pickup:     geo.Point{Lat: dto.Pickup.Lat, Lon: dto.Pickup.Lon},
		Dropoff:    geo.Point{Lat: dto.Dropoff.Lat, Lon: dto.Dropoff.Lon},
		Reason:     strings.TrimSpace(dto.Reason),
		CreatedAt:  dto.CreatedAt,
	}, nil
}
