//go:generate mockgen -source=contracts.go -destination=mocks/sink_mock.go -package=mocks

package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

// Sink delivers dispatch events to couriers, customers and vendors.
type Sink interface {
	NotifyCourierOffer(ctx context.Context, courierID int64, orderID uuid.UUID) error
	NotifyOrderStatusChanged(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error
	NotifyCourierLocationBroadcast(ctx context.Context, b LocationBroadcast) error
}

// LocationBroadcast is a courier position pushed to watchers of an order.
type LocationBroadcast struct {
	OrderID   uuid.UUID
	CourierID int64
	Location  geo.Point
	At        time.Time
}

// Message kinds.
const (
	KindOffer           = "offer"
	KindOrderStatus     = "order_status"
	KindCourierLocation = "courier_location"
)

// Message is the JSON payload every publisher writes.
type Message struct {
	Kind      string     `json:"kind"`
	OrderID   string     `json:"order_id"`
	CourierID int64      `json:"courier_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	Location  *geo.Point `json:"location,omitempty"`
	At        time.Time  `json:"at"`
}

func offerMessage(courierID int64, orderID uuid.UUID, at time.Time) Message {
	return Message{Kind: KindOffer, OrderID: orderID.String(), CourierID: courierID, At: at}
}

func statusMessage(orderID uuid.UUID, status domain.OrderStatus, at time.Time) Message {
	return Message{Kind: KindOrderStatus, OrderID: orderID.String(), Status: string(status), At: at}
}

func locationMessage(b LocationBroadcast) Message {
	loc := b.Location
	return Message{
		Kind: KindCourierLocation, OrderID: b.OrderID.String(), CourierID: b.CourierID,
		Location: &loc, At: b.At,
	}
}
