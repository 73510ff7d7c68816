package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"courier-dispatch/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON messages to per-courier and per-order channels.
type RedisPublisher struct {
	client publisher
	now    func() time.Time
}

// NewRedisPublisher creates a RedisPublisher, *redis.Client satisfies publisher.
func NewRedisPublisher(client publisher) *RedisPublisher {
	return &RedisPublisher{client: client, now: func() time.Time { return time.Now().UTC() }}
}

// OfferChannel is the channel a courier app listens on for offers.
func OfferChannel(courierID int64) string { return fmt.Sprintf("courier:%d:offers", courierID) }

// StatusChannel carries order status changes for the customer and the vendor.
func StatusChannel(orderID uuid.UUID) string { return fmt.Sprintf("order:%s:status", orderID) }

// LocationChannel carries courier positions for an order.
func LocationChannel(orderID uuid.UUID) string {
	return fmt.Sprintf("order:%s:courier-location", orderID)
}

// NotifyCourierOffer implements Sink.
func (p *RedisPublisher) NotifyCourierOffer(ctx context.Context, courierID int64, orderID uuid.UUID) error {
	return p.publish(ctx, OfferChannel(courierID), offerMessage(courierID, orderID, p.now()))
}

// NotifyOrderStatusChanged implements Sink.
func (p *RedisPublisher) NotifyOrderStatusChanged(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	return p.publish(ctx, StatusChannel(orderID), statusMessage(orderID, status, p.now()))
}

// NotifyCourierLocationBroadcast implements Sink.
func (p *RedisPublisher) NotifyCourierLocationBroadcast(ctx context.Context, b LocationBroadcast) error {
	if b.At.IsZero() {
		b.At = p.now()
	}
	return p.publish(ctx, LocationChannel(b.OrderID), locationMessage(b))
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.Kind, err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

var _ Sink = (*RedisPublisher)(nil)
