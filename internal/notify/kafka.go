package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

// KafkaPublisher writes notifications to a topic keyed by order id.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewKafkaProducer builds a sync producer that waits for all in-sync replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	return sarama.NewSyncProducer(brokers, cfg)
}

// NewKafkaPublisher creates a KafkaPublisher.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, now: func() time.Time { return time.Now().UTC() }}
}

// NotifyCourierOffer implements Sink.
func (p *KafkaPublisher) NotifyCourierOffer(ctx context.Context, courierID int64, orderID uuid.UUID) error {
	return p.send(ctx, offerMessage(courierID, orderID, p.now()))
}

// NotifyOrderStatusChanged implements Sink.
func (p *KafkaPublisher) NotifyOrderStatusChanged(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	return p.send(ctx, statusMessage(orderID, status, p.now()))
}

// NotifyCourierLocationBroadcast implements Sink.
func (p *KafkaPublisher) NotifyCourierLocationBroadcast(ctx context.Context, b LocationBroadcast) error {
	if b.At.IsZero() {
		b.At = p.now()
	}
	return p.send(ctx, locationMessage(b))
}

// Close closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func (p *KafkaPublisher) send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.Kind, err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(m.OrderID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(m.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", m.Kind, p.topic, err)
	}
	return nil
}

var _ Sink = (*KafkaPublisher)(nil)
