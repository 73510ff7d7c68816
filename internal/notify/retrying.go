package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

type counter interface {
	Inc()
}

// RetryConfig описывает поведение Retrying
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Retrying retries a Sink with capped exponential backoff.
type Retrying struct {
	next    Sink
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetrying конструктор который проверяет, что next не nil и возвращает Retrying
func NewRetrying(next Sink, logger logx.Logger, retries counter, cfg RetryConfig) *Retrying {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Retrying{next: next, logger: logger, retries: retries, cfg: cfg}
}

// NotifyCourierOffer implements Sink.
func (r *Retrying) NotifyCourierOffer(ctx context.Context, courierID int64, orderID uuid.UUID) error {
	return r.do(ctx, KindOffer, func() error { return r.next.NotifyCourierOffer(ctx, courierID, orderID) })
}

// NotifyOrderStatusChanged implements Sink.
func (r *Retrying) NotifyOrderStatusChanged(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	return r.do(ctx, KindOrderStatus, func() error { return r.next.NotifyOrderStatusChanged(ctx, orderID, status) })
}

// NotifyCourierLocationBroadcast implements Sink.
func (r *Retrying) NotifyCourierLocationBroadcast(ctx context.Context, b LocationBroadcast) error {
	return r.do(ctx, KindCourierLocation, func() error { return r.next.NotifyCourierLocationBroadcast(ctx, b) })
}

func (r *Retrying) do(ctx context.Context, kind string, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		// проверяем условия повтора
		if ctx.Err() != nil || attempt == r.cfg.MaxAttempts || !isRetryable(err) {
			break
		}
		delay := backoff(r.cfg.BaseDelay, r.cfg.MaxDelay, attempt)
		if r.retries != nil {
			r.retries.Inc()
		}
		r.logger.Warn("notify retry",
			logx.String("kind", kind),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return lastErr
}

// isRetryable: отмена и дедлайн вызывающего не повторяем
func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// backoff вычисляет задержку повтора
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ Sink = (*Retrying)(nil)
