package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ports/dispatchtx"
)

// PickUpOrder marks the accepted order as collected from the vendor.
func (s *Coordinator) PickUpOrder(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error) {
	if err := validateIDs(orderID, courierID); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	statusChanged := false
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, a, err := s.loadOwned(ctx, tx, orderID, courierID, domain.AssignmentAccepted)
		if err != nil {
			return err
		}
		if err := a.MoveTo(domain.AssignmentPickedUp, s.now()); err != nil {
			return err
		}
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}

		switch o.Status {
		case domain.OrderPreparing:
			if err := s.moveOrder(ctx, tx, o, domain.OrderOutForDelivery, domain.ActorCourier, "picked up"); err != nil {
				return err
			}
			statusChanged = true
		case domain.OrderOutForDelivery:
			// вендор уже перевёл заказ сам
		default:
			return errPrecondition
		}
		return nil
	})
	ok, err := outcome(err)
	if !ok || err != nil {
		return ok, err
	}

	s.logger.Info("order picked up",
		logx.String("event", "order_picked_up"),
		logx.String("order_id", orderID.String()),
		logx.Int64("courier_id", courierID),
	)
	if statusChanged {
		s.notifyStatus(ctx, orderID, domain.OrderOutForDelivery)
	}
	return true, nil
}

// StartDelivery marks a picked up assignment as on its way to the customer.
func (s *Coordinator) StartDelivery(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error) {
	if err := validateIDs(orderID, courierID); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		_, a, err := s.loadOwned(ctx, tx, orderID, courierID, domain.AssignmentPickedUp)
		if err != nil {
			return err
		}
		if err := a.MoveTo(domain.AssignmentOutForDelivery, s.now()); err != nil {
			return err
		}
		return tx.SaveAssignment(ctx, a)
	})
	return outcome(err)
}

// DeliverOrder completes the delivery, frees the courier slot and records the earning.
func (s *Coordinator) DeliverOrder(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error) {
	if err := validateIDs(orderID, courierID); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var earned domain.Earning
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, a, err := s.loadOwned(ctx, tx, orderID, courierID,
			domain.AssignmentPickedUp, domain.AssignmentOutForDelivery)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(domain.OrderDelivered) {
			return errPrecondition
		}
		earned, err = s.completeDelivery(ctx, tx, o, a, domain.ActorCourier, "delivered")
		return err
	})
	ok, err := outcome(err)
	if !ok || err != nil {
		return ok, err
	}
	s.afterDelivery(ctx, orderID, courierID, earned)
	return true, nil
}

// completeDelivery closes the assignment and the order and settles the courier in tx.
func (s *Coordinator) completeDelivery(
	ctx context.Context, tx dispatchtx.Repository, o *domain.Order, a *domain.Assignment, actor, note string,
) (domain.Earning, error) {
	counted := a.Status.Counted()
	if err := a.MoveTo(domain.AssignmentDelivered, s.now()); err != nil {
		return domain.Earning{}, err
	}
	if err := tx.SaveAssignment(ctx, a); err != nil {
		return domain.Earning{}, err
	}
	if err := s.moveOrder(ctx, tx, o, domain.OrderDelivered, actor, note); err != nil {
		return domain.Earning{}, err
	}

	c, err := tx.GetCourier(ctx, a.CourierID)
	if err != nil {
		return domain.Earning{}, err
	}
	if c == nil {
		return domain.Earning{}, fmt.Errorf("courier %d: %w", a.CourierID, apperr.ErrNotFound)
	}
	if counted {
		c.ReleaseOrder()
	}
	c.TotalDeliveries++
	e, _, err := s.earnings.Record(ctx, tx, c, *a)
	if err != nil {
		return domain.Earning{}, err
	}
	if err := tx.SaveCourier(ctx, c); err != nil {
		return domain.Earning{}, err
	}
	return e, nil
}

func (s *Coordinator) afterDelivery(ctx context.Context, orderID uuid.UUID, courierID int64, e domain.Earning) {
	s.metrics.Deliveries.Inc()
	s.logger.Info("order delivered",
		logx.String("event", "order_delivered"),
		logx.String("order_id", orderID.String()),
		logx.Int64("courier_id", courierID),
		logx.String("earning", e.Total.StringFixed(2)),
	)
	s.notifyStatus(ctx, orderID, domain.OrderDelivered)
}

// UpdateOrderStatus applies a vendor or admin status change.
// Cancelling releases the active assignment. Delivering settles an accepted or
// in-flight assignment like DeliverOrder. An unanswered offer is withdrawn once
// the order moves past the stage where a courier could still take it.
func (s *Coordinator) UpdateOrderStatus(
	ctx context.Context, orderID uuid.UUID, status domain.OrderStatus, actor, note string,
) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("%w: empty order id", apperr.ErrInvalid)
	}
	if !status.Valid() {
		return false, fmt.Errorf("%w: unknown order status %q", apperr.ErrInvalid, status)
	}
	if actor == "" {
		actor = domain.ActorSystem
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		delivered bool
		courierID int64
		earned    domain.Earning
	)
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return apperr.ErrNotFound
		}
		if err := o.Status.Transition(status); err != nil {
			return err
		}
		a, err := tx.GetActiveAssignment(ctx, orderID)
		if err != nil {
			return err
		}

		switch {
		case a == nil:
		case status == domain.OrderDelivered && a.Status.Counted():
			earned, err = s.completeDelivery(ctx, tx, o, a, actor, note)
			if err != nil {
				return err
			}
			delivered, courierID = true, a.CourierID
			return nil
		case status == domain.OrderCancelled,
			a.Status == domain.AssignmentOffered && !status.Dispatchable():
			if err := s.supersede(ctx, tx, a); err != nil {
				return err
			}
		}
		return s.moveOrder(ctx, tx, o, status, actor, note)
	})
	ok, err := outcome(err)
	if !ok || err != nil {
		return ok, err
	}

	if delivered {
		s.afterDelivery(ctx, orderID, courierID, earned)
		return true, nil
	}
	s.logger.Info("order status updated",
		logx.String("event", "order_status_updated"),
		logx.String("order_id", orderID.String()),
		logx.String("status", string(status)),
		logx.String("actor", actor),
	)
	s.notifyStatus(ctx, orderID, status)
	return true, nil
}

// RegisterOrder stores a new pending order. A known id is a no-op that reports false.
func (s *Coordinator) RegisterOrder(ctx context.Context, o domain.Order) (bool, error) {
	if err := validateOrder(o); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o.Status = domain.OrderPending
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	o.Version = 0
	o.CancelledAt, o.DeliveredAt = nil, nil

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		existing, err := tx.GetOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errPrecondition
		}
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		return tx.AppendStatusHistory(ctx, domain.StatusHistory{
			OrderID:   o.ID,
			Status:    domain.OrderPending,
			Actor:     domain.ActorSystem,
			Note:      "registered",
			CreatedAt: o.CreatedAt,
		})
	})
	ok, err := outcome(err)
	if ok {
		s.logger.Info("order registered",
			logx.String("event", "order_registered"),
			logx.String("order_id", o.ID.String()),
		)
	}
	return ok, err
}

func validateOrder(o domain.Order) error {
	switch {
	case o.ID == uuid.Nil:
		return fmt.Errorf("%w: empty order id", apperr.ErrInvalid)
	case !o.Pickup.Valid():
		return fmt.Errorf("%w: pickup location", apperr.ErrInvalid)
	case !o.Dropoff.Valid():
		return fmt.Errorf("%w: dropoff location", apperr.ErrInvalid)
	case o.Total.IsNegative(), o.Tip.IsNegative():
		return fmt.Errorf("%w: negative amount", apperr.ErrInvalid)
	}
	return nil
}
