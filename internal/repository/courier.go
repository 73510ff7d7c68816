package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// CourierRepo represents the courier directory outside of dispatch transactions.
type CourierRepo struct{ db *pgxpool.Pool }

// NewCourierRepo creates a new CourierRepo.
func NewCourierRepo(db *pgxpool.Pool) *CourierRepo { return &CourierRepo{db: db} }

// GetCourier - returns courier by its ID.
func (r *CourierRepo) GetCourier(ctx context.Context, id int64) (*domain.Courier, error) {
	c, err := scanCourier(r.db.QueryRow(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id=$1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %d: %w", id, err)
	}
	return c, nil
}

// ListCouriers returns couriers ordered by id. If limit/offset are nil, returns the full list.
func (r *CourierRepo) ListCouriers(ctx context.Context, limit, offset *int) ([]domain.Courier, error) {
	q := `SELECT ` + courierColumns + ` FROM couriers ORDER BY id`
	args := make([]any, 0, 2)
	if limit != nil {
		q += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, *limit)
	}
	if offset != nil {
		q += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, *offset)
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	capacity := 0
	if limit != nil && *limit > 0 {
		capacity = *limit
	}
	out := make([]domain.Courier, 0, capacity)
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CreateCourier - creates a new courier.
func (r *CourierRepo) CreateCourier(ctx context.Context, c *domain.Courier) (int64, error) {
	lat, lon := locationArgs(c.Location)
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO couriers(name, phone, is_active, status, vehicle, lat, lon, location_updated_at,
			max_active_orders, work_start, work_end, enforce_working_hours)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		c.Name, c.Phone, c.Active, c.Status, c.Vehicle, lat, lon, c.LocationUpdatedAt,
		c.MaxActiveOrders, c.WorkingHours.Start, c.WorkingHours.End, c.WorkingHours.Enforce).Scan(&id)
	if err != nil {
		if IsDuplicate(err) || IsCheckViolation(err) {
			return 0, apperr.ErrConflict
		}
		return 0, fmt.Errorf("create courier: %w", err)
	}
	return id, nil
}
