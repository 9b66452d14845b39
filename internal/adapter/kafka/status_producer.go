package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"checkout-api/internal/logging"
	"checkout-api/internal/usecase"
)

// StatusProducer publishes order-status-changed events for downstream
// consumers (fulfillment, notifications). Keyed by order id so one order's
// events stay ordered within a partition.
type StatusProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

func NewStatusProducer(producer sarama.SyncProducer, topic string) *StatusProducer {
	return &StatusProducer{
		producer: producer,
		topic:    topic,
		log:      logging.New("kafka-producer"),
	}
}

func (p *StatusProducer) PublishStatusChanged(ctx context.Context, msg usecase.OrderStatusChangedMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.OrderID),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	p.log.InfoContext(ctx, "status event published",
		"topic", p.topic,
		"order_id", msg.OrderID,
		"status", msg.Status,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *StatusProducer) Close() error { return p.producer.Close() }

var _ usecase.EventPublisher = (*StatusProducer)(nil)
