package dispatch

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/notify"
)

const minRejectReasonLen = 10

func normalizeReason(raw string) (string, error) {
	reason := strings.TrimSpace(raw)
	if utf8.RuneCountInString(reason) < minRejectReasonLen {
		return "", apperr.ErrInvalidRejectReason
	}
	return reason, nil
}

// notifyCtx outlives the caller's cancellation so a committed change is still announced.
func (s *Coordinator) notifyCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
}

func (s *Coordinator) notifyOffer(ctx context.Context, courierID int64, orderID uuid.UUID) {
	nctx, cancel := s.notifyCtx(ctx)
	defer cancel()
	if err := s.sink.NotifyCourierOffer(nctx, courierID, orderID); err != nil {
		s.notifyFailed(notify.KindOffer, orderID, err)
	}
}

func (s *Coordinator) notifyStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) {
	nctx, cancel := s.notifyCtx(ctx)
	defer cancel()
	if err := s.sink.NotifyOrderStatusChanged(nctx, orderID, status); err != nil {
		s.notifyFailed(notify.KindOrderStatus, orderID, err)
	}
}

// BroadcastLocation pushes a courier position to every order the courier is delivering.
func (s *Coordinator) BroadcastLocation(ctx context.Context, b notify.LocationBroadcast) {
	nctx, cancel := s.notifyCtx(ctx)
	defer cancel()
	if err := s.sink.NotifyCourierLocationBroadcast(nctx, b); err != nil {
		s.notifyFailed(notify.KindCourierLocation, b.OrderID, err)
	}
}

func (s *Coordinator) notifyFailed(kind string, orderID uuid.UUID, err error) {
	s.metrics.NotifyFailures.WithLabelValues(kind).Inc()
	s.logger.Warn("notification failed",
		logx.String("kind", kind),
		logx.String("order_id", orderID.String()),
		logx.Err(err),
	)
}
