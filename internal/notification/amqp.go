package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gamekeys-be/internal/logger"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes events to a topic exchange, routed by event type.
type AMQPNotifier struct {
	ch       channel
	exchange string
	close    func() error
}

func NewAMQPNotifier(ch channel, exchange string) *AMQPNotifier {
	return &AMQPNotifier{ch: ch, exchange: exchange, close: func() error { return nil }}
}

// DialAMQP connects, opens a channel and declares the exchange.
func DialAMQP(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}

	n := NewAMQPNotifier(ch, exchange)
	n.close = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return n, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event serialization error: %w", err)
	}

	err = n.ch.Publish(n.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Headers: amqp.Table{
			"order_id":   int64(ev.OrderID),
			"event_type": ev.Type,
			"request_id": logger.RequestIDFrom(ctx),
		},
	})
	if err != nil {
		return fmt.Errorf("event publish error: %w", err)
	}

	logger.FromCtx(ctx).Debug("event published",
		zap.String("exchange", n.exchange),
		zap.String("routing_key", ev.Type),
		zap.Uint("order_id", ev.OrderID),
	)
	return nil
}

func (n *AMQPNotifier) Close() error {
	return n.close()
}
