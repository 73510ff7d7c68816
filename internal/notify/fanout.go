package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

// Fanout calls every sink and joins their errors.
type Fanout []Sink

// NewFanout skips nil sinks.
func NewFanout(sinks ...Sink) Fanout {
	out := make(Fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// NotifyCourierOffer implements Sink.
func (f Fanout) NotifyCourierOffer(ctx context.Context, courierID int64, orderID uuid.UUID) error {
	errs := make([]error, 0, len(f))
	for _, s := range f {
		errs = append(errs, s.NotifyCourierOffer(ctx, courierID, orderID))
	}
	return errors.Join(errs...)
}

// NotifyOrderStatusChanged implements Sink.
func (f Fanout) NotifyOrderStatusChanged(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	errs := make([]error, 0, len(f))
	for _, s := range f {
		errs = append(errs, s.NotifyOrderStatusChanged(ctx, orderID, status))
	}
	return errors.Join(errs...)
}

// NotifyCourierLocationBroadcast implements Sink.
func (f Fanout) NotifyCourierLocationBroadcast(ctx context.Context, b LocationBroadcast) error {
	errs := make([]error, 0, len(f))
	for _, s := range f {
		errs = append(errs, s.NotifyCourierLocationBroadcast(ctx, b))
	}
	return errors.Join(errs...)
}
