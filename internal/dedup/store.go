// Package dedup wraps a Redis client with the two primitives the Former and
// Repeater workers share: short-TTL sent-marking for at-most-once delivery
// within a window, and per-queue DLQ lists for the side-channel retry path.
// Grounded on notification_state/message_processor's use of redis.asyncio
// (setex/exists) and former_worker's rpush-on-failure.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the contract Former and Repeater depend on. A *RedisStore backs
// production; tests can fake it directly or point a RedisStore at miniredis.
type Store interface {
	// MarkSent idempotently records that subscriber already received
	// notificationID, expiring after ttl.
	MarkSent(ctx context.Context, subscriber, notificationID string, ttl time.Duration) error

	// WasSent reports whether MarkSent was called for this pair and the
	// key has not yet expired.
	WasSent(ctx context.Context, subscriber, notificationID string) (bool, error)

	// DLQPush appends payload to queueName's retry list (FIFO by push order).
	DLQPush(ctx context.Context, queueName string, payload []byte) error

	// DLQPop removes and returns the oldest payload on queueName's retry
	// list, or (nil, false) if the list is empty.
	DLQPop(ctx context.Context, queueName string) ([]byte, bool, error)

	// DLQLen reports the current length of queueName's retry list, used to
	// feed the dlq-depth gauge.
	DLQLen(ctx context.Context, queueName string) (int64, error)
}

// RedisStore is the production Store.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func dedupKey(subscriber, notificationID string) string {
	return fmt.Sprintf("%s:%s", subscriber, notificationID)
}

func (s *RedisStore) MarkSent(ctx context.Context, subscriber, notificationID string, ttl time.Duration) error {
	if err := s.client.SetEx(ctx, dedupKey(subscriber, notificationID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (s *RedisStore) WasSent(ctx context.Context, subscriber, notificationID string) (bool, error) {
	n, err := s.client.Exists(ctx, dedupKey(subscriber, notificationID)).Result()
	if err != nil {
		return false, fmt.Errorf("was sent: %w", err)
	}
	return n > 0, nil
}

// DLQPush appends to the tail of the list (rpush semantics), so DLQPop
// (left-pop) preserves push order.
func (s *RedisStore) DLQPush(ctx context.Context, queueName string, payload []byte) error {
	if err := s.client.RPush(ctx, queueName, payload).Err(); err != nil {
		return fmt.Errorf("dlq push %s: %w", queueName, err)
	}
	return nil
}

func (s *RedisStore) DLQPop(ctx context.Context, queueName string) ([]byte, bool, error) {
	val, err := s.client.LPop(ctx, queueName).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("dlq pop %s: %w", queueName, err)
	}
	return val, true, nil
}

func (s *RedisStore) DLQLen(ctx context.Context, queueName string) (int64, error) {
	n, err := s.client.LLen(ctx, queueName).Result()
	if err != nil {
		return 0, fmt.Errorf("dlq len %s: %w", queueName, err)
	}
	return n, nil
}

var _ Store = (*RedisStore)(nil)
