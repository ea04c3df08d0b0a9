package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/priority"
)

const exchangeName = "notifications"

// AMQPBroker is the production Broker backed by RabbitMQ.
// Mirrors RabbitMQService: one connection, one channel, declare-on-connect,
// persistent messages, direct exchange.
type AMQPBroker struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *zap.Logger
}

// Dial connects to the broker and returns an AMQPBroker. Call
// DeclareTopology before publishing or consuming.
func Dial(url string, logger *zap.Logger) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQPBroker{conn: conn, ch: ch, logger: logger}, nil
}

func (b *AMQPBroker) DeclareTopology(_ context.Context) error {
	if err := b.ch.ExchangeDeclare(exchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range priority.AllQueues() {
		args := amqp.Table{
			"x-message-ttl":    priority.TTL[q],
			"x-max-priority":   int32(priority.MaxPriority),
		}
		if _, err := b.ch.QueueDeclare(string(q), true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := b.ch.QueueBind(string(q), string(q), exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

func (b *AMQPBroker) Publish(ctx context.Context, queueName priority.QueueName, body []byte, msgPriority int, requestID string) error {
	headers := amqp.Table{}
	if requestID != "" {
		headers["X-Request-Id"] = requestID
	}

	err := b.ch.PublishWithContext(ctx, exchangeName, string(queueName), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     uint8(msgPriority), //nolint:gosec
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, queueName, err)
	}
	return nil
}

func (b *AMQPBroker) Consume(ctx context.Context, queueName priority.QueueName) (<-chan Delivery, error) {
	deliveries, err := b.ch.ConsumeWithContext(ctx, string(queueName), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queueName, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				requestID, _ := d.Headers["X-Request-Id"].(string)
				delivery := d
				select {
				case out <- Delivery{
					Body:      delivery.Body,
					RequestID: requestID,
					Ack:       func() { _ = delivery.Ack(false) },
					Nack:      func(requeue bool) { _ = delivery.Nack(false, requeue) },
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *AMQPBroker) Depths(_ context.Context) (map[priority.QueueName]int, error) {
	depths := make(map[priority.QueueName]int, len(priority.AllQueues()))
	for _, q := range priority.AllQueues() {
		qi, err := b.ch.QueueInspect(string(q))
		if err != nil {
			return nil, fmt.Errorf("inspect queue %s: %w", q, err)
		}
		depths[q] = qi.Messages
	}
	return depths, nil
}

func (b *AMQPBroker) Close() error {
	if err := b.ch.Close(); err != nil {
		b.logger.Warn("error closing amqp channel", zap.Error(err))
	}
	return b.conn.Close()
}

var _ Broker = (*AMQPBroker)(nil)
