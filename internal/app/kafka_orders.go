package app

import (
	"context"
	"time"

	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/transport/kafka"
)

type orderEventHandler interface {
	Handle(ctx context.Context, e orders.Event) error
}

// makeOrdersKafka bounds each event with its own deadline so one slow event cannot stall the partition.
func makeOrdersKafka(p orderEventHandler, timeout time.Duration) kafka.HandleFunc {
	return func(ctx context.Context, event orders.Event) error {
		if timeout <= 0 {
			return p.Handle(ctx, event)
		}
		evCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return p.Handle(evCtx, event)
	}
}
