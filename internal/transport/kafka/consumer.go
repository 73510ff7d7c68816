package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/orders"
)

// HandleFunc processes a single orders.Event from Kafka
type HandleFunc func(context.Context, orders.Event) error

var newConsumerGroup = sarama.NewConsumerGroup

// Consumer wraps a Sarama consumer group and dispatches events to a handler
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler HandleFunc
	logger  logx.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(logger logx.Logger, brokers []string, groupID, topic string, h HandleFunc) (*Consumer, error) {
	// не стратую если у кафки нет настроек
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" || strings.TrimSpace(groupID) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logx.Nop()
	}

	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := newConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		handler: h,
		logger:  logger,
	}, nil
}

// Run starts the consumer
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}

	h := &groupHandler{c: c}

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("kafka consume error", logx.Err(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close closes the consumer group.
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	return c.group.Close()
}

type groupHandler struct{ c *Consumer }

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim never returns an error: a poison message is logged and committed so the partition keeps moving.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.process(ctx, msg)
			sess.MarkMessage(msg, "")
		}
	}
}

func (h *groupHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) {
	log := h.c.logger.With(
		logx.Int64("offset", msg.Offset),
		logx.Int("partition", int(msg.Partition)),
	)

	ev, ok := decodeEvent(msg.Value, log)
	if !ok {
		return
	}
	if err := h.c.handler(ctx, ev); err != nil {
		log.Error("kafka handle failed, skipping message",
			logx.String("order_id", ev.OrderID.String()),
			logx.String("status", ev.Status),
			logx.Err(err),
		)
		return
	}
	log.Debug("kafka order event handled",
		logx.String("order_id", ev.OrderID.String()),
		logx.String("status", ev.Status),
	)
}

// decodeEvent logs the reason and reports false for messages that can never be processed.
func decodeEvent(raw []byte, log logx.Logger) (orders.Event, bool) {
	var dto EventDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		log.Warn("kafka bad json", logx.Err(err))
		return orders.Event{}, false
	}
	if strings.TrimSpace(dto.OrderID) == "" {
		log.Warn("kafka empty order_id")
		return orders.Event{}, false
	}
	ev, err := ToDomain(dto)
	if err != nil {
		var perm PermanentError
		if errors.As(err, &perm) {
			log.Warn("kafka bad event", logx.Err(err))
		} else {
			log.Error("kafka event conversion failed", logx.Err(err))
		}
		return orders.Event{}, false
	}
	return ev, true
}
