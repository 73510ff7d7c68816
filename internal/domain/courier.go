package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"courier-dispatch/internal/geo"
)

type (
	// CourierStatus represents the status of a courier.
	CourierStatus string
	// VehicleType represents the vehicle a courier delivers with.
	VehicleType string
)

// Courier represents a delivery courier.
type Courier struct {
	ID                  int64
	Name                string
	Phone               string
	Active              bool
	Status              CourierStatus
	Vehicle             VehicleType
	Location            *geo.Point
	LocationUpdatedAt   *time.Time
	CurrentActiveOrders int
	MaxActiveOrders     int
	WorkingHours        WorkingHours
	TotalDeliveries     int
	TotalEarnings       decimal.Decimal
	CurrentDayEarnings  decimal.Decimal
	AverageRating       float64
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasCapacity reports whether the courier can take one more order.
func (c *Courier) HasCapacity() bool {
	return c.CurrentActiveOrders < c.MaxActiveOrders
}

// TakeOrder occupies one capacity slot and marks the courier busy when full.
func (c *Courier) TakeOrder() {
	c.CurrentActiveOrders++
	if c.CurrentActiveOrders >= c.MaxActiveOrders && c.Status == CourierAvailable {
		c.Status = CourierBusy
	}
}

// ReleaseOrder frees one capacity slot and makes a busy courier available again.
func (c *Courier) ReleaseOrder() {
	if c.CurrentActiveOrders > 0 {
		c.CurrentActiveOrders--
	}
	if c.Status == CourierBusy && c.HasCapacity() {
		c.Status = CourierAvailable
	}
}

// CandidateFilter narrows the couriers considered for an order.
type CandidateFilter struct {
	ExcludeIDs []int64
	// OnlyIDs restricts the result when non-nil, e.g. to couriers found by the location index.
	OnlyIDs []int64
}

// Availability explains whether a courier can receive offers right now.
type Availability struct {
	CourierID int64    `json:"courier_id"`
	Eligible  bool     `json:"eligible"`
	Reasons   []string `json:"reasons,omitempty"`
}
