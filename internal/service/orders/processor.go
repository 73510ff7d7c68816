package orders

import (
	"context"
	"errors"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Processor processes orders events
type Processor struct {
	dispatcher Dispatcher
	logger     logx.Logger
	factory    *actionFactory
}

// NewProcessor creates a new orders.Processor
func NewProcessor(d Dispatcher, logger logx.Logger) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	p := &Processor{
		dispatcher: d,
		logger:     logger,
	}
	p.factory = newActionFactory(p.onCreated, p.onPreparing, p.onCancelled)
	return p
}

// Handle processes a single orders.Event
func (p *Processor) Handle(ctx context.Context, e Event) error {
	if p.factory == nil {
		return nil
	}
	fn, ok := p.factory.get(e.Status)
	if !ok {
		return nil
	}
	return fn(ctx, e)
}

// ignorable reports errors that a replayed or out of order event legitimately produces.
func ignorable(err error) bool {
	return errors.Is(err, apperr.ErrInvalid) ||
		errors.Is(err, apperr.ErrInvalidStatusTransition) ||
		errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrConflict)
}

func (p *Processor) skip(e Event, err error) error {
	p.logger.Info("order event ignored",
		logx.String("order_id", e.OrderID.String()),
		logx.String("status", e.Status),
		logx.Err(err),
	)
	return nil
}

func (p *Processor) onCreated(ctx context.Context, e Event) error {
	if _, err := p.dispatcher.RegisterOrder(ctx, e.Order()); err != nil {
		if ignorable(err) {
			return p.skip(e, err)
		}
		return err
	}
	// повторное событие тоже доходит до Dispatch: он вернёт AlreadyAssigned
	if _, err := p.dispatcher.Dispatch(ctx, e.OrderID); err != nil {
		if ignorable(err) {
			return p.skip(e, err)
		}
		return err
	}
	return nil
}

func (p *Processor) onPreparing(ctx context.Context, e Event) error {
	return p.move(ctx, e, domain.OrderPreparing)
}

func (p *Processor) onCancelled(ctx context.Context, e Event) error {
	return p.move(ctx, e, domain.OrderCancelled)
}

func (p *Processor) move(ctx context.Context, e Event, status domain.OrderStatus) error {
	ok, err := p.dispatcher.UpdateOrderStatus(ctx, e.OrderID, status, domain.ActorVendor, e.Reason)
	if err != nil {
		if ignorable(err) {
			return p.skip(e, err)
		}
		return err
	}
	if !ok {
		return p.skip(e, apperr.ErrConflict)
	}
	return nil
}
