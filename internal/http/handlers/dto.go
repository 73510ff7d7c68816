package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

type workingHoursDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type courierDTO struct {
	ID                  int64                `json:"id"`
	Name                string               `json:"name"`
	Phone               string               `json:"phone"`
	Active              bool                 `json:"active"`
	Status              domain.CourierStatus `json:"status"`
	Vehicle             domain.VehicleType   `json:"vehicle"`
	Location            *geo.Point           `json:"location,omitempty"`
	LocationUpdatedAt   *time.Time           `json:"location_updated_at,omitempty"`
	CurrentActiveOrders int                  `json:"current_active_orders"`
	MaxActiveOrders     int                  `json:"max_active_orders"`
	WorkingHours        *workingHoursDTO     `json:"working_hours,omitempty"`
	TotalDeliveries     int                  `json:"total_deliveries"`
	TotalEarnings       decimal.Decimal      `json:"total_earnings"`
	CurrentDayEarnings  decimal.Decimal      `json:"current_day_earnings"`
	AverageRating       float64              `json:"average_rating"`
}

type createCourierRequest struct {
	Name            string               `json:"name"`
	Phone           string               `json:"phone"`
	Status          domain.CourierStatus `json:"status"`
	Vehicle         domain.VehicleType   `json:"vehicle"`
	MaxActiveOrders int                  `json:"max_active_orders"`
	Location        *geo.Point           `json:"location,omitempty"`
	WorkingHours    *workingHoursDTO     `json:"working_hours,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateLocationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type orderDTO struct {
	ID           string             `json:"id"`
	Number       string             `json:"number"`
	VendorID     int64              `json:"vendor_id"`
	CustomerID   string             `json:"customer_id,omitempty"`
	Total        decimal.Decimal    `json:"total"`
	Tip          decimal.Decimal    `json:"tip"`
	Pickup       geo.Point          `json:"pickup"`
	Dropoff      geo.Point          `json:"dropoff"`
	Status       domain.OrderStatus `json:"status"`
	CancelReason string             `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	DeliveredAt  *time.Time         `json:"delivered_at,omitempty"`
}

type createOrderRequest struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	VendorID   int64           `json:"vendor_id"`
	CustomerID string          `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
	Tip        decimal.Decimal `json:"tip"`
	Pickup     geo.Point       `json:"pickup"`
	Dropoff    geo.Point       `json:"dropoff"`
}

type createOrderResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

type orderStatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor,omitempty"`
	Note   string `json:"note,omitempty"`
}

type courierActionRequest struct {
	CourierID int64  `json:"courier_id"`
	Reason    string `json:"reason,omitempty"`
}

type resultResponse struct {
	OrderID string `json:"order_id"`
	OK      bool   `json:"ok"`
}

type dispatchResponse struct {
	OrderID         string          `json:"order_id"`
	Offered         bool            `json:"offered"`
	AlreadyAssigned bool            `json:"already_assigned"`
	NoCandidate     bool            `json:"no_candidate"`
	CourierID       int64           `json:"courier_id,omitempty"`
	AssignmentID    int64           `json:"assignment_id,omitempty"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
}

type rejectResponse struct {
	OrderID       string `json:"order_id"`
	Rejected      bool   `json:"rejected"`
	Reassigned    bool   `json:"reassigned"`
	NextCourierID int64  `json:"next_courier_id,omitempty"`
	NoCandidate   bool   `json:"no_candidate"`
}

type assignmentDTO struct {
	ID               int64                   `json:"id"`
	CourierID        int64                   `json:"courier_id"`
	Status           domain.AssignmentStatus `json:"status"`
	DeliveryFee      decimal.Decimal         `json:"delivery_fee"`
	Tip              decimal.Decimal         `json:"tip"`
	RejectReason     string                  `json:"reject_reason,omitempty"`
	Active           bool                    `json:"active"`
	OfferedAt        time.Time               `json:"offered_at"`
	AcceptedAt       *time.Time              `json:"accepted_at,omitempty"`
	RejectedAt       *time.Time              `json:"rejected_at,omitempty"`
	PickedUpAt       *time.Time              `json:"picked_up_at,omitempty"`
	OutForDeliveryAt *time.Time              `json:"out_for_delivery_at,omitempty"`
	DeliveredAt      *time.Time              `json:"delivered_at,omitempty"`
	CancelledAt      *time.Time              `json:"cancelled_at,omitempty"`
}
