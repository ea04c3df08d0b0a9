package dedup_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/notifyhub/pipeline/internal/dedup"
)

func newTestStore(t *testing.T) *dedup.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return dedup.NewRedisStore(client)
}

func TestRedisStore_MarkAndWasSent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sent, err := store.WasSent(ctx, "sub-1", "notif-1")
	if err != nil {
		t.Fatal(err)
	}
	if sent {
		t.Fatal("expected not sent before MarkSent")
	}

	if err := store.MarkSent(ctx, "sub-1", "notif-1", time.Minute); err != nil {
		t.Fatal(err)
	}

	sent, err = store.WasSent(ctx, "sub-1", "notif-1")
	if err != nil {
		t.Fatal(err)
	}
	if !sent {
		t.Fatal("expected sent after MarkSent")
	}
}

func TestRedisStore_WasSentIsPerSubscriberAndNotification(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.MarkSent(ctx, "sub-1", "notif-1", time.Minute)

	sent, _ := store.WasSent(ctx, "sub-2", "notif-1")
	if sent {
		t.Fatal("expected a different subscriber to be unaffected")
	}
	sent, _ = store.WasSent(ctx, "sub-1", "notif-2")
	if sent {
		t.Fatal("expected a different notification id to be unaffected")
	}
}

func TestRedisStore_DLQPushPopIsFIFO(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.DLQPush(ctx, "notifications.low", []byte("first"))
	_ = store.DLQPush(ctx, "notifications.low", []byte("second"))

	got, ok, err := store.DLQPop(ctx, "notifications.low")
	if err != nil || !ok {
		t.Fatalf("unexpected pop result: %v ok=%v err=%v", got, ok, err)
	}
	if string(got) != "first" {
		t.Fatalf("expected FIFO order, got %q first", got)
	}

	got, ok, err = store.DLQPop(ctx, "notifications.low")
	if err != nil || !ok || string(got) != "second" {
		t.Fatalf("unexpected second pop: %v ok=%v err=%v", got, ok, err)
	}
}

func TestRedisStore_DLQPopEmptyReturnsFalse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.DLQPop(ctx, "notifications.high")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false on empty DLQ list")
	}
}
