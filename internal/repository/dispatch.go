package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

// DispatchRepo represents dispatch repository.
type DispatchRepo struct {
	db *pgxpool.Pool
}

// NewDispatchRepo creates a new DispatchRepo.
func NewDispatchRepo(db *pgxpool.Pool) *DispatchRepo {
	return &DispatchRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *DispatchRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// отменяем в случае паники
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				panic(rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(&TxRepo{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsSerialization(err) || IsDuplicate(err) || IsCheckViolation(err) {
			return fmt.Errorf("commit tx: %w", apperr.ErrConflict)
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxRepo represents transaction repository.
type TxRepo struct {
	q querier
}

var _ dispatchtx.Repository = (*TxRepo)(nil)

func mapWriteErr(op string, err error) error {
	if IsDuplicate(err) || IsCheckViolation(err) || IsSerialization(err) {
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectOne(op string, tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	}
	return nil
}

// GetOrder - returns order by id.
func (r *TxRepo) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// InsertOrder - stores a new order with version 0.
func (r *TxRepo) InsertOrder(ctx context.Context, o *domain.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO orders(id, number, vendor_id, customer_id, total, tip, pickup_lat, pickup_lon,
			dropoff_lat, dropoff_lon, status, cancel_reason, created_at, cancelled_at, delivered_at, version)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,0)`,
		o.ID, o.Number, o.VendorID, o.CustomerID, o.Total, o.Tip, o.Pickup.Lat, o.Pickup.Lon,
		o.Dropoff.Lat, o.Dropoff.Lon, o.Status, o.CancelReason, o.CreatedAt, o.CancelledAt, o.DeliveredAt)
	if err != nil {
		return mapWriteErr("insert order", err)
	}
	o.Version = 0
	return nil
}

// SaveOrder - compare-and-set update of the mutable order fields.
func (r *TxRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE orders SET status=$3, cancel_reason=$4, cancelled_at=$5, delivered_at=$6, tip=$7, version=version+1
		WHERE id=$1 AND version=$2`,
		o.ID, o.Version, o.Status, o.CancelReason, o.CancelledAt, o.DeliveredAt, o.Tip)
	if err != nil {
		return mapWriteErr("save order", err)
	}
	if err := expectOne("save order", tag); err != nil {
		return err
	}
	o.Version++
	return nil
}

// ListActiveOrdersForCourier - non-terminal orders whose active assignment belongs to the courier.
func (r *TxRepo) ListActiveOrdersForCourier(ctx context.Context, courierID int64) ([]domain.Order, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+prefixed("o", orderColumns)+`
		FROM orders o
		JOIN order_assignments a ON a.order_id = o.id AND a.is_active
		WHERE a.courier_id = $1 AND o.status NOT IN ('delivered', 'cancelled')
		ORDER BY o.created_at DESC`, courierID)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ListUndispatchedOrders - pending or preparing orders without an active assignment, oldest first.
func (r *TxRepo) ListUndispatchedOrders(ctx context.Context, createdBefore time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `
		SELECT o.id FROM orders o
		WHERE o.status IN ('pending', 'preparing') AND o.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM order_assignments a WHERE a.order_id = o.id AND a.is_active)
		ORDER BY o.created_at
		LIMIT NULLIF($2, 0)`, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list undispatched orders: %w", err)
	}
	defer rows.Close()

	out := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AppendStatusHistory - appends an audit row.
func (r *TxRepo) AppendStatusHistory(ctx context.Context, h domain.StatusHistory) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO order_status_history(order_id, status, actor, note, created_at) VALUES($1,$2,$3,$4,$5)`,
		h.OrderID, h.Status, h.Actor, h.Note, h.CreatedAt)
	if err != nil {
		return mapWriteErr("append status history", err)
	}
	return nil
}

// GetCourier - returns courier by id.
func (r *TxRepo) GetCourier(ctx context.Context, id int64) (*domain.Courier, error) {
	c, err := scanCourier(r.q.QueryRow(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id=$1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %d: %w", id, err)
	}
	return c, nil
}

// SaveCourier - compare-and-set update of the mutable courier fields.
func (r *TxRepo) SaveCourier(ctx context.Context, c *domain.Courier) error {
	lat, lon := locationArgs(c.Location)
	tag, err := r.q.Exec(ctx, `
		UPDATE couriers SET
			name=$3, is_active=$4, status=$5, vehicle=$6, lat=$7, lon=$8, location_updated_at=$9,
			current_active_orders=$10, max_active_orders=$11, work_start=$12, work_end=$13,
			enforce_working_hours=$14, total_deliveries=$15, total_earnings=$16,
			current_day_earnings=$17, average_rating=$18, version=version+1, updated_at=now()
		WHERE id=$1 AND version=$2`,
		c.ID, c.Version, c.Name, c.Active, c.Status, c.Vehicle, lat, lon, c.LocationUpdatedAt,
		c.CurrentActiveOrders, c.MaxActiveOrders, c.WorkingHours.Start, c.WorkingHours.End,
		c.WorkingHours.Enforce, c.TotalDeliveries, c.TotalEarnings, c.CurrentDayEarnings, c.AverageRating)
	if err != nil {
		return mapWriteErr("save courier", err)
	}
	if err := expectOne("save courier", tag); err != nil {
		return err
	}
	c.Version++
	return nil
}

// ListEligibleCouriers - active, available couriers with spare capacity and a known location.
func (r *TxRepo) ListEligibleCouriers(ctx context.Context, f domain.CandidateFilter) ([]domain.Courier, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+courierColumns+` FROM couriers
		WHERE is_active AND status = 'available'
		  AND current_active_orders < max_active_orders
		  AND lat IS NOT NULL AND lon IS NOT NULL
		  AND ($1::bigint[] IS NULL OR NOT (id = ANY($1)))
		  AND ($2::bigint[] IS NULL OR id = ANY($2))
		ORDER BY id`, f.ExcludeIDs, f.OnlyIDs)
	if err != nil {
		return nil, fmt.Errorf("list eligible couriers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Courier, 0)
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetActiveAssignment - the single active assignment of an order, if any.
func (r *TxRepo) GetActiveAssignment(ctx context.Context, orderID uuid.UUID) (*domain.Assignment, error) {
	a, err := scanAssignment(r.q.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM order_assignments WHERE order_id=$1 AND is_active`, orderID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active assignment %s: %w", orderID, err)
	}
	return a, nil
}

// InsertAssignment - stores a new assignment, a second active row for the order is a conflict.
func (r *TxRepo) InsertAssignment(ctx context.Context, a *domain.Assignment) error {
	if a.OfferedAt.IsZero() {
		a.OfferedAt = time.Now().UTC()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO order_assignments(order_id, courier_id, status, delivery_fee, tip, reject_reason, is_active,
			offered_at, accepted_at, rejected_at, picked_up_at, out_for_delivery_at, delivered_at, cancelled_at, version)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,0) RETURNING id`,
		a.OrderID, a.CourierID, a.Status, a.DeliveryFee, a.Tip, a.RejectReason, a.Active,
		a.OfferedAt, a.AcceptedAt, a.RejectedAt, a.PickedUpAt, a.OutForDeliveryAt, a.DeliveredAt, a.CancelledAt,
	).Scan(&a.ID)
	if err != nil {
		return mapWriteErr("insert assignment", err)
	}
	a.Version = 0
	return nil
}

// SaveAssignment - compare-and-set update of the assignment lifecycle fields.
func (r *TxRepo) SaveAssignment(ctx context.Context, a *domain.Assignment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE order_assignments SET
			status=$3, delivery_fee=$4, tip=$5, reject_reason=$6, is_active=$7, accepted_at=$8, rejected_at=$9,
			picked_up_at=$10, out_for_delivery_at=$11, delivered_at=$12, cancelled_at=$13, version=version+1
		WHERE id=$1 AND version=$2`,
		a.ID, a.Version, a.Status, a.DeliveryFee, a.Tip, a.RejectReason, a.Active, a.AcceptedAt, a.RejectedAt,
		a.PickedUpAt, a.OutForDeliveryAt, a.DeliveredAt, a.CancelledAt)
	if err != nil {
		return mapWriteErr("save assignment", err)
	}
	if err := expectOne("save assignment", tag); err != nil {
		return err
	}
	a.Version++
	return nil
}

// ListAssignments - assignment history of an order, newest first.
func (r *TxRepo) ListAssignments(ctx context.Context, orderID uuid.UUID) ([]domain.Assignment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+assignmentColumns+` FROM order_assignments WHERE order_id=$1 ORDER BY id DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// RejectedCourierIDs - couriers that already rejected the order.
func (r *TxRepo) RejectedCourierIDs(ctx context.Context, orderID uuid.UUID) ([]int64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT courier_id FROM order_assignments
		WHERE order_id=$1 AND status='rejected' ORDER BY courier_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list rejected couriers: %w", err)
	}
	defer rows.Close()

	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// FindEarning - the earning of a courier for an order, if recorded.
func (r *TxRepo) FindEarning(ctx context.Context, courierID int64, orderID uuid.UUID) (*domain.Earning, error) {
	e, err := scanEarning(r.q.QueryRow(ctx,
		`SELECT `+earningColumns+` FROM courier_earnings WHERE courier_id=$1 AND order_id=$2`, courierID, orderID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find earning: %w", err)
	}
	return e, nil
}

// InsertEarning - stores an earning, a duplicate (courier, order) pair is a conflict.
func (r *TxRepo) InsertEarning(ctx context.Context, e *domain.Earning) error {
	if e.EarnedAt.IsZero() {
		e.EarnedAt = time.Now().UTC()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO courier_earnings(courier_id, order_id, assignment_id, delivery_fee, tip, total, earned_at)
		VALUES($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		e.CourierID, e.OrderID, e.AssignmentID, e.DeliveryFee, e.Tip, e.Total, e.EarnedAt).Scan(&e.ID)
	if err != nil {
		return mapWriteErr("insert earning", err)
	}
	return nil
}
