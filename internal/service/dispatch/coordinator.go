// Package dispatch coordinates offers, acceptance and the delivery lifecycle of orders.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/ports/dispatchtx"
)

// errPrecondition aborts a transaction whose preconditions do not hold; callers see false.
var errPrecondition = errors.New("dispatch precondition failed")

// Config holds coordinator timeouts.
type Config struct {
	OperationTimeout time.Duration
	NotifyTimeout    time.Duration
}

// Coordinator runs every dispatch operation as one transaction.
type Coordinator struct {
	repo     dispatchtx.Runner
	matcher  matcher
	earnings earner
	sink     notify.Sink
	metrics  *metrics.Dispatch
	cfg      Config
	logger   logx.Logger
	now      func() time.Time
}

// New creates a Coordinator. A nil sink or metrics set is replaced with a no-op one.
func New(
	repo dispatchtx.Runner,
	m matcher,
	e earner,
	sink notify.Sink,
	mx *metrics.Dispatch,
	cfg Config,
	logger logx.Logger,
) *Coordinator {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 2 * time.Second
	}
	if sink == nil {
		sink = notify.Nop()
	}
	if mx == nil {
		mx = metrics.NewDispatch()
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Coordinator{
		repo:     repo,
		matcher:  m,
		earnings: e,
		sink:     sink,
		metrics:  mx,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// outcome folds a transaction error into the bool contract of mutating calls.
func outcome(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errPrecondition), errors.Is(err, apperr.ErrConflict):
		return false, nil
	default:
		return false, err
	}
}

func validateIDs(orderID uuid.UUID, courierID int64) error {
	if orderID == uuid.Nil {
		return fmt.Errorf("%w: empty order id", apperr.ErrInvalid)
	}
	if courierID <= 0 {
		return fmt.Errorf("%w: courier id must be positive", apperr.ErrInvalid)
	}
	return nil
}

// Dispatch offers a pending or preparing order to the best courier.
// An order that already has an active assignment is reported as is.
// An order past dispatch reports NotDispatchable; a lost race reports no outcome at all.
func (s *Coordinator) Dispatch(ctx context.Context, orderID uuid.UUID) (domain.DispatchResult, error) {
	if orderID == uuid.Nil {
		return domain.DispatchResult{}, fmt.Errorf("%w: empty order id", apperr.ErrInvalid)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		res domain.DispatchResult
		err error
	)
	// второй проход увидит назначение, созданное конкурентом
	for attempt := 0; attempt < 2; attempt++ {
		res, err = s.dispatchOnce(ctx, orderID)
		if !errors.Is(err, apperr.ErrConflict) {
			break
		}
	}
	switch {
	case errors.Is(err, errPrecondition):
		return domain.DispatchResult{OrderID: orderID, NotDispatchable: true}, nil
	case errors.Is(err, apperr.ErrConflict):
		return domain.DispatchResult{OrderID: orderID}, nil
	case err != nil:
		return domain.DispatchResult{}, err
	}

	switch {
	case res.Offered:
		s.metrics.Offers.Inc()
		s.logger.Info("order offered",
			logx.String("event", "order_offered"),
			logx.String("order_id", orderID.String()),
			logx.Int64("courier_id", res.CourierID),
			logx.String("fee", res.DeliveryFee.StringFixed(2)),
		)
		s.notifyOffer(ctx, res.CourierID, orderID)
	case res.NoCandidate:
		s.metrics.NoCandidate.Inc()
		s.logger.Info("no courier available", logx.String("order_id", orderID.String()))
	}
	return res, nil
}

func (s *Coordinator) dispatchOnce(ctx context.Context, orderID uuid.UUID) (domain.DispatchResult, error) {
	res := domain.DispatchResult{OrderID: orderID}
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return apperr.ErrNotFound
		}
		active, err := tx.GetActiveAssignment(ctx, orderID)
		if err != nil {
			return err
		}
		if active != nil {
			res.AlreadyAssigned = true
			res.CourierID = active.CourierID
			res.AssignmentID = active.ID
			res.DeliveryFee = active.DeliveryFee
			return nil
		}
		if !o.Status.Dispatchable() {
			return errPrecondition
		}

		a, err := s.matcher.FindBestCourier(ctx, tx, *o, nil)
		if err != nil {
			return err
		}
		if a == nil {
			res.NoCandidate = true
			return nil
		}
		res.Offered = true
		res.CourierID = a.CourierID
		res.AssignmentID = a.ID
		res.DeliveryFee = a.DeliveryFee
		return nil
	})
	return res, err
}

// AssignOrderToCourier forces an offer to a specific courier, superseding the current one.
func (s *Coordinator) AssignOrderToCourier(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error) {
	if err := validateIDs(orderID, courierID); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	offered := false
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil || !o.Status.Dispatchable() {
			return errPrecondition
		}
		c, err := tx.GetCourier(ctx, courierID)
		if err != nil {
			return err
		}
		if c == nil || !c.Active || c.Status == domain.CourierOffline || !c.HasCapacity() {
			return errPrecondition
		}

		cur, err := tx.GetActiveAssignment(ctx, orderID)
		if err != nil {
			return err
		}
		if cur != nil {
			if cur.CourierID == courierID {
				return nil
			}
			if cur.Status != domain.AssignmentOffered && cur.Status != domain.AssignmentAccepted {
				return errPrecondition
			}
			if err := s.supersede(ctx, tx, cur); err != nil {
				return err
			}
		}

		if _, err := s.matcher.Offer(ctx, tx, *o, *c); err != nil {
			return err
		}
		offered = true
		return nil
	})
	ok, err := outcome(err)
	if !ok || err != nil {
		if err == nil {
			s.logger.Info("manual assignment failed",
				logx.String("order_id", orderID.String()),
				logx.Int64("courier_id", courierID),
			)
		}
		return ok, err
	}
	if offered {
		s.metrics.Offers.Inc()
		s.logger.Info("order assigned manually",
			logx.String("event", "order_assigned"),
			logx.String("order_id", orderID.String()),
			logx.Int64("courier_id", courierID),
		)
		s.notifyOffer(ctx, courierID, orderID)
	}
	return true, nil
}

// supersede cancels an active assignment and frees the courier slot it held.
func (s *Coordinator) supersede(ctx context.Context, tx dispatchtx.Repository, a *domain.Assignment) error {
	counted := a.Status.Counted()
	if err := a.MoveTo(domain.AssignmentCancelled, s.now()); err != nil {
		return err
	}
	if err := tx.SaveAssignment(ctx, a); err != nil {
		return err
	}
	if !counted {
		return nil
	}
	return s.releaseCourier(ctx, tx, a.CourierID)
}

func (s *Coordinator) releaseCourier(ctx context.Context, tx dispatchtx.Repository, courierID int64) error {
	c, err := tx.GetCourier(ctx, courierID)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrNotFound
	}
	c.ReleaseOrder()
	return tx.SaveCourier(ctx, c)
}

// AcceptOrder confirms the courier's offer and occupies a capacity slot.
func (s *Coordinator) AcceptOrder(ctx context.Context, orderID uuid.UUID, courierID int64) (bool, error) {
	if err := validateIDs(orderID, courierID); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var status domain.OrderStatus
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, a, err := s.loadOwned(ctx, tx, orderID, courierID, domain.AssignmentOffered)
		if err != nil {
			return err
		}
		if !o.Status.Dispatchable() {
			return errPrecondition
		}
		c, err := tx.GetCourier(ctx, courierID)
		if err != nil {
			return err
		}
		if c == nil || !c.Active || c.Status == domain.CourierOffline || !c.HasCapacity() {
			return errPrecondition
		}

		if err := a.MoveTo(domain.AssignmentAccepted, s.now()); err != nil {
			return err
		}
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}
		c.TakeOrder()
		if err := tx.SaveCourier(ctx, c); err != nil {
			return err
		}
		if o.Status == domain.OrderPending {
			if err := s.moveOrder(ctx, tx, o, domain.OrderPreparing, domain.ActorCourier, "accepted by courier"); err != nil {
				return err
			}
		}
		status = o.Status
		return nil
	})

	ok, err := outcome(err)
	if err != nil {
		return false, err
	}
	if !ok {
		s.metrics.Accepts.WithLabelValues("lost").Inc()
		return false, nil
	}
	s.metrics.Accepts.WithLabelValues("won").Inc()
	s.logger.Info("order accepted",
		logx.String("event", "order_accepted"),
		logx.String("order_id", orderID.String()),
		logx.Int64("courier_id", courierID),
	)
	s.notifyStatus(ctx, orderID, status)
	return true, nil
}

// RejectOrder declines the courier's offer and re-dispatches the order in the same transaction.
// The reason lands in the order history and the vendor is told the order is back in dispatch.
func (s *Coordinator) RejectOrder(ctx context.Context, orderID uuid.UUID, courierID int64, reason string) (domain.RejectResult, error) {
	if err := validateIDs(orderID, courierID); err != nil {
		return domain.RejectResult{}, err
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return domain.RejectResult{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := domain.RejectResult{OrderID: orderID}
	var status domain.OrderStatus
	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, a, err := s.loadOwned(ctx, tx, orderID, courierID, domain.AssignmentOffered)
		if err != nil {
			return err
		}
		now := s.now()
		if err := a.MoveTo(domain.AssignmentRejected, now); err != nil {
			return err
		}
		a.RejectReason = reason
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}
		if err := tx.AppendStatusHistory(ctx, domain.StatusHistory{
			OrderID:   o.ID,
			Status:    o.Status,
			Actor:     domain.ActorCourier,
			Note:      rejectNote(courierID, reason),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		res.Rejected = true
		status = o.Status

		if !o.Status.Dispatchable() {
			return nil
		}
		next, err := s.matcher.FindBestCourier(ctx, tx, *o, []int64{courierID})
		if err != nil {
			return err
		}
		if next == nil {
			res.NoCandidate = true
			return nil
		}
		res.Reassigned = true
		res.NextCourierID = next.CourierID
		return nil
	})

	ok, err := outcome(err)
	if err != nil {
		return domain.RejectResult{}, err
	}
	if !ok {
		return domain.RejectResult{OrderID: orderID}, nil
	}

	s.metrics.Rejects.Inc()
	s.logger.Info("order rejected",
		logx.String("event", "order_rejected"),
		logx.String("order_id", orderID.String()),
		logx.Int64("courier_id", courierID),
		logx.String("reason", reason),
		logx.Int64("next_courier_id", res.NextCourierID),
	)
	switch {
	case res.Reassigned:
		s.metrics.Offers.Inc()
		s.notifyOffer(ctx, res.NextCourierID, orderID)
	case res.NoCandidate:
		s.metrics.NoCandidate.Inc()
	}
	s.notifyStatus(ctx, orderID, status)
	return res, nil
}

func rejectNote(courierID int64, reason string) string {
	if reason == "" {
		return fmt.Sprintf("rejected by courier %d", courierID)
	}
	return fmt.Sprintf("rejected by courier %d: %s", courierID, reason)
}

// loadOwned returns the order and its active assignment when it belongs to courierID in the wanted state.
func (s *Coordinator) loadOwned(
	ctx context.Context, tx dispatchtx.Repository, orderID uuid.UUID, courierID int64, want ...domain.AssignmentStatus,
) (*domain.Order, *domain.Assignment, error) {
	o, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o == nil {
		return nil, nil, errPrecondition
	}
	a, err := tx.GetActiveAssignment(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil || a.CourierID != courierID {
		return nil, nil, errPrecondition
	}
	for _, st := range want {
		if a.Status == st {
			return o, a, nil
		}
	}
	return nil, nil, errPrecondition
}

// moveOrder applies a validated status change and records it in the history.
func (s *Coordinator) moveOrder(
	ctx context.Context, tx dispatchtx.Repository, o *domain.Order, next domain.OrderStatus, actor, note string,
) error {
	if err := o.Status.Transition(next); err != nil {
		return err
	}
	now := s.now()
	o.Status = next
	switch next {
	case domain.OrderCancelled:
		o.CancelledAt = &now
		o.CancelReason = note
	case domain.OrderDelivered:
		o.DeliveredAt = &now
	}
	if err := tx.SaveOrder(ctx, o); err != nil {
		return err
	}
	return tx.AppendStatusHistory(ctx, domain.StatusHistory{
		OrderID:   o.ID,
		Status:    next,
		Actor:     actor,
		Note:      note,
		CreatedAt: now,
	})
}

// GetActiveOrdersForCourier lists non-terminal orders the courier currently holds.
func (s *Coordinator) GetActiveOrdersForCourier(ctx context.Context, courierID int64) ([]domain.Order, error) {
	if courierID <= 0 {
		return nil, fmt.Errorf("%w: courier id must be positive", apperr.ErrInvalid)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.Order
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		var err error
		out, err = tx.ListActiveOrdersForCourier(ctx, courierID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAssignmentHistory lists every assignment of an order, newest first.
func (s *Coordinator) GetAssignmentHistory(ctx context.Context, orderID uuid.UUID) ([]domain.Assignment, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty order id", apperr.ErrInvalid)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.Assignment
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return apperr.ErrNotFound
		}
		out, err = tx.ListAssignments(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
