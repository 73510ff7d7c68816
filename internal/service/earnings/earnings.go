// Package earnings turns delivered assignments into courier payouts.
package earnings

import (
	"context"
	"fmt"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

// Calculator computes and records earnings.
type Calculator struct {
	now func() time.Time
}

// New creates a Calculator.
func New() *Calculator {
	return &Calculator{now: func() time.Time { return time.Now().UTC() }}
}

// Compute returns fee plus tip for a delivered assignment.
func (c *Calculator) Compute(a domain.Assignment) domain.Earning {
	return domain.Earning{
		CourierID:    a.CourierID,
		OrderID:      a.OrderID,
		AssignmentID: a.ID,
		DeliveryFee:  a.DeliveryFee,
		Tip:          a.Tip,
		Total:        a.DeliveryFee.Add(a.Tip),
		EarnedAt:     c.now(),
	}
}

// Record stores the earning once per (courier, order) and credits the courier in memory.
// The caller saves the courier. recorded is false when an earning already existed.
func (c *Calculator) Record(
	ctx context.Context, tx dispatchtx.Repository, courier *domain.Courier, a domain.Assignment,
) (e domain.Earning, recorded bool, err error) {
	existing, err := tx.FindEarning(ctx, courier.ID, a.OrderID)
	if err != nil {
		return domain.Earning{}, false, fmt.Errorf("find earning: %w", err)
	}
	if existing != nil {
		return *existing, false, nil
	}

	e = c.Compute(a)
	if err := tx.InsertEarning(ctx, &e); err != nil {
		return domain.Earning{}, false, fmt.Errorf("insert earning: %w", err)
	}
	courier.TotalEarnings = courier.TotalEarnings.Add(e.Total)
	courier.CurrentDayEarnings = courier.CurrentDayEarnings.Add(e.Total)
	return e, true, nil
}
