package queue

import (
	"context"
	"sync"

	"github.com/notifyhub/pipeline/internal/priority"
)

// MemoryBroker is an in-process Broker double for tests that do not stand
// up RabbitMQ. Each named queue gets its own buffered channel; Publish is
// non-blocking like PriorityQueue.Enqueue, returning ErrPublishFailed
// immediately rather than applying back-pressure to the caller. Dequeue
// keeps a two-step select shape — a non-blocking check first, then a
// blocking select against ctx.Done — collapsed to a single channel per
// queue, since each production queue here already has its own dedicated
// consumer rather than competing priority tiers.
type MemoryBroker struct {
	mu   sync.Mutex
	chs  map[priority.QueueName]chan Delivery
	dlq  map[priority.QueueName][]Delivery
}

func NewMemoryBroker() *MemoryBroker {
	b := &MemoryBroker{
		chs: make(map[priority.QueueName]chan Delivery),
		dlq: make(map[priority.QueueName][]Delivery),
	}
	for _, q := range priority.AllQueues() {
		b.chs[q] = make(chan Delivery, 1000)
	}
	return b
}

func (b *MemoryBroker) DeclareTopology(_ context.Context) error {
	return nil
}

func (b *MemoryBroker) Publish(_ context.Context, queueName priority.QueueName, body []byte, msgPriority int, requestID string) error {
	ch, ok := b.chs[queueName]
	if !ok {
		ch = make(chan Delivery, 1000)
		b.mu.Lock()
		b.chs[queueName] = ch
		b.mu.Unlock()
	}

	bodyCopy := append([]byte(nil), body...)
	d := Delivery{
		Body:      bodyCopy,
		RequestID: requestID,
		Ack:       func() {},
		Nack: func(requeue bool) {
			if requeue {
				return
			}
			b.mu.Lock()
			b.dlq[queueName] = append(b.dlq[queueName], Delivery{Body: bodyCopy, RequestID: requestID, Ack: func() {}, Nack: func(bool) {}})
			b.mu.Unlock()
		},
	}

	_ = msgPriority // priority ordering is not modeled across tiers; each queue is already a single tier.

	select {
	case ch <- d:
		return nil
	default:
		return ErrPublishFailed
	}
}

// Dequeue uses a two-step select: drain immediately if something is
// already queued, otherwise block fairly on the channel or ctx.
func (b *MemoryBroker) Dequeue(ctx context.Context, queueName priority.QueueName) (Delivery, bool) {
	ch := b.chs[queueName]

	select {
	case d := <-ch:
		return d, true
	default:
	}

	select {
	case d := <-ch:
		return d, true
	case <-ctx.Done():
		return Delivery{}, false
	}
}

func (b *MemoryBroker) Consume(ctx context.Context, queueName priority.QueueName) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			d, ok := b.Dequeue(ctx, queueName)
			if !ok {
				return
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *MemoryBroker) Depths(_ context.Context) (map[priority.QueueName]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	depths := make(map[priority.QueueName]int, len(b.chs))
	for q, ch := range b.chs {
		depths[q] = len(ch)
	}
	return depths, nil
}

// DeadLettered exposes what was Nack'd without requeue, for tests.
func (b *MemoryBroker) DeadLettered(queueName priority.QueueName) []Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Delivery(nil), b.dlq[queueName]...)
}

func (b *MemoryBroker) Close() error {
	return nil
}

var _ Broker = (*MemoryBroker)(nil)
