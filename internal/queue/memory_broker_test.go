package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/notifyhub/pipeline/internal/priority"
	"github.com/notifyhub/pipeline/internal/queue"
)

func TestMemoryBroker_BasicPublishDequeue(t *testing.T) {
	b := queue.NewMemoryBroker()
	ctx := context.Background()

	if err := b.Publish(ctx, priority.QueueMedium, []byte("hello"), 3, "req-1"); err != nil {
		t.Fatal(err)
	}

	got, ok := b.Dequeue(ctx, priority.QueueMedium)
	if !ok {
		t.Fatal("expected delivery, got nothing")
	}
	if string(got.Body) != "hello" || got.RequestID != "req-1" {
		t.Fatalf("unexpected delivery: %+v", got)
	}
}

func TestMemoryBroker_QueuesAreIndependent(t *testing.T) {
	b := queue.NewMemoryBroker()
	ctx := context.Background()

	_ = b.Publish(ctx, priority.QueueHigh, []byte("h"), 5, "")
	_ = b.Publish(ctx, priority.QueueLow, []byte("l"), 1, "")

	got, ok := b.Dequeue(ctx, priority.QueueHigh)
	if !ok || string(got.Body) != "h" {
		t.Fatalf("expected high delivery, got %+v ok=%v", got, ok)
	}

	depths, err := b.Depths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if depths[priority.QueueLow] != 1 {
		t.Fatalf("expected low depth 1, got %d", depths[priority.QueueLow])
	}
}

func TestMemoryBroker_ContextCancellation(t *testing.T) {
	b := queue.NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := b.Dequeue(ctx, priority.QueueMedium)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after context cancellation")
	}
}

func TestMemoryBroker_NackWithoutRequeueGoesToDLQ(t *testing.T) {
	b := queue.NewMemoryBroker()
	ctx := context.Background()

	_ = b.Publish(ctx, priority.QueueLow, []byte("x"), 1, "req-2")
	d, ok := b.Dequeue(ctx, priority.QueueLow)
	if !ok {
		t.Fatal("expected delivery")
	}
	d.Nack(false)

	dead := b.DeadLettered(priority.QueueLow)
	if len(dead) != 1 || string(dead[0].Body) != "x" {
		t.Fatalf("expected one dead-lettered delivery, got %+v", dead)
	}
}

func TestMemoryBroker_ConcurrentPublishConsume(t *testing.T) {
	b := queue.NewMemoryBroker()

	const producers = 5
	const itemsPerProducer = 100
	const total = producers * itemsPerProducer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deliveries, err := b.Consume(ctx, priority.QueueMedium)
	if err != nil {
		t.Fatal(err)
	}

	received := make(chan struct{}, total)
	var consumerDone sync.WaitGroup
	consumerDone.Add(1)
	go func() {
		defer consumerDone.Done()
		for range deliveries {
			received <- struct{}{}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < itemsPerProducer; j++ {
				_ = b.Publish(ctx, priority.QueueMedium, []byte("x"), 3, "")
			}
		}()
	}
	wg.Wait()

	for i := 0; i < total; i++ {
		select {
		case <-received:
		case <-ctx.Done():
			t.Fatalf("timeout: only received %d/%d items", i, total)
		}
	}
	cancel()
	consumerDone.Wait()
}
