package app

import (
	"context"
	"time"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/dispatch"
)

type staleRedispatcher interface {
	RedispatchStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Redispatcher periodically re-offers pending orders that found no courier.
type Redispatcher struct {
	svc       staleRedispatcher
	logger    logx.Logger
	interval  time.Duration
	olderThan time.Duration
	batch     int
}

func newRedispatcher(coord *dispatch.Coordinator, cfg *config.Config, logger logx.Logger) *Redispatcher {
	return &Redispatcher{
		svc:       coord,
		logger:    logger,
		interval:  cfg.Dispatch.RetryInterval,
		olderThan: cfg.Dispatch.RetryOlderThan,
		batch:     cfg.Dispatch.RetryBatch,
	}
}

// Run blocks until ctx is done. A non-positive interval disables the loop.
func (r *Redispatcher) Run(ctx context.Context) {
	if r == nil || r.interval <= 0 {
		return
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Redispatcher) tick(ctx context.Context) {
	n, err := r.svc.RedispatchStale(ctx, r.olderThan, r.batch)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("redispatch failed", logx.Err(err))
		}
		return
	}
	if n > 0 {
		r.logger.Info("stale orders redispatched", logx.Int("count", n))
	}
}
