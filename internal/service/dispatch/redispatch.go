package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ports/dispatchtx"
)

// RedispatchStale retries Dispatch for pending or preparing orders older than olderThan that nobody holds.
// It returns how many of them got an offer.
func (s *Coordinator) RedispatchStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	s.metrics.Redispatches.Inc()

	var ids []uuid.UUID
	listCtx, cancel := s.withTimeout(ctx)
	err := s.repo.WithTx(listCtx, func(tx dispatchtx.Repository) error {
		var err error
		ids, err = tx.ListUndispatchedOrders(listCtx, s.now().Add(-olderThan), limit)
		return err
	})
	cancel()
	if err != nil {
		return 0, err
	}

	offered := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return offered, ctx.Err()
		}
		res, err := s.Dispatch(ctx, id)
		if err != nil {
			s.logger.Warn("redispatch failed", logx.String("order_id", id.String()), logx.Err(err))
			continue
		}
		if res.Offered {
			offered++
		}
	}
	if len(ids) > 0 {
		s.logger.Info("redispatch sweep",
			logx.Int("pending", len(ids)),
			logx.Int("offered", offered),
		)
	}
	return offered, nil
}
