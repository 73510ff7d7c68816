package repository

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

const courierColumns = `id, name, phone, is_active, status, vehicle, lat, lon, location_updated_at,
	current_active_orders, max_active_orders, work_start, work_end, enforce_working_hours,
	total_deliveries, total_earnings, current_day_earnings, average_rating, version, created_at, updated_at`

const orderColumns = `id, number, vendor_id, customer_id, total, tip, pickup_lat, pickup_lon,
	dropoff_lat, dropoff_lon, status, cancel_reason, created_at, cancelled_at, delivered_at, version`

const assignmentColumns = `id, order_id, courier_id, status, delivery_fee, tip, reject_reason, is_active,
	offered_at, accepted_at, rejected_at, picked_up_at, out_for_delivery_at, delivered_at, cancelled_at, version`

const earningColumns = `id, courier_id, order_id, assignment_id, delivery_fee, tip, total, earned_at`

func scanCourier(row pgx.Row) (*domain.Courier, error) {
	var (
		c        domain.Courier
		lat, lon *float64
		locAt    *time.Time
	)
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Active, &c.Status, &c.Vehicle, &lat, &lon, &locAt,
		&c.CurrentActiveOrders, &c.MaxActiveOrders, &c.WorkingHours.Start, &c.WorkingHours.End,
		&c.WorkingHours.Enforce, &c.TotalDeliveries, &c.TotalEarnings, &c.CurrentDayEarnings,
		&c.AverageRating, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		c.Location = &geo.Point{Lat: *lat, Lon: *lon}
	}
	c.LocationUpdatedAt = locAt
	return &c, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Number, &o.VendorID, &o.CustomerID, &o.Total, &o.Tip,
		&o.Pickup.Lat, &o.Pickup.Lon, &o.Dropoff.Lat, &o.Dropoff.Lon,
		&o.Status, &o.CancelReason, &o.CreatedAt, &o.CancelledAt, &o.DeliveredAt, &o.Version)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(&a.ID, &a.OrderID, &a.CourierID, &a.Status, &a.DeliveryFee, &a.Tip, &a.RejectReason,
		&a.Active, &a.OfferedAt, &a.AcceptedAt, &a.RejectedAt, &a.PickedUpAt, &a.OutForDeliveryAt,
		&a.DeliveredAt, &a.CancelledAt, &a.Version)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanEarning(row pgx.Row) (*domain.Earning, error) {
	var e domain.Earning
	err := row.Scan(&e.ID, &e.CourierID, &e.OrderID, &e.AssignmentID, &e.DeliveryFee, &e.Tip, &e.Total, &e.EarnedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func locationArgs(p *geo.Point) (lat, lon *float64) {
	if p == nil {
		return nil, nil
	}
	return &p.Lat, &p.Lon
}

// prefixed qualifies a column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
