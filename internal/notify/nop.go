package notify

import (
	"context"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

type nopSink struct{}

// Nop returns a Sink that drops everything.
func Nop() Sink { return nopSink{} }

func (nopSink) NotifyCourierOffer(context.Context, int64, uuid.UUID) error { return nil }

func (nopSink) NotifyOrderStatusChanged(context.Context, uuid.UUID, domain.OrderStatus) error {
	return nil
}

func (nopSink) NotifyCourierLocationBroadcast(context.Context, LocationBroadcast) error { return nil }

var _ Sink = nopSink{}
