// Package queue wraps a priority-aware AMQP broker: a direct exchange named
// "notifications" with three durable queues (high/medium/low), each with
// its own message TTL and a queue-level max priority of 5.
package queue

import (
	"context"
	"errors"

	"github.com/notifyhub/pipeline/internal/priority"
)

// ErrPublishFailed is returned — never panicked — on a publish failure,
// matching BrokerPublishError: Ingress reports it, it never throws.
var ErrPublishFailed = errors.New("broker publish failed")

// Delivery is one consumed message plus the ack/nack it owns.
type Delivery struct {
	Body      []byte
	RequestID string
	Ack       func()
	Nack      func(requeue bool)
}

// Broker is the interface every worker and handler depends on. AMQPBroker
// is the production implementation; MemoryBroker is an in-process test
// double implementing the same interface (without message priority or TTL),
// used by unit tests that do not stand up RabbitMQ.
type Broker interface {
	// DeclareTopology declares the exchange and all three queues with
	// their TTL/max-priority arguments, and binds each by routing key.
	DeclareTopology(ctx context.Context) error

	// Publish sends body to queueName with the given AMQP priority
	// (1-5) and an optional X-Request-Id header. It never returns a
	// panic-worthy error: publish failures come back as ErrPublishFailed
	// wrapped with the underlying cause, for the caller to report.
	Publish(ctx context.Context, queueName priority.QueueName, body []byte, msgPriority int, requestID string) error

	// Consume returns a channel of deliveries for queueName. The
	// channel closes when ctx is cancelled or the broker connection
	// drops.
	Consume(ctx context.Context, queueName priority.QueueName) (<-chan Delivery, error)

	// Depths reports the approximate message count per queue, used by
	// the JSON metrics snapshot handler.
	Depths(ctx context.Context) (map[priority.QueueName]int, error)

	Close() error
}
