package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openretry/retryd/internal/core/domain"
)

// NotificationQueue implements the ingest queue on a Redis list. Producers
// LPUSH, consumers pop from the tail, so delivery is FIFO per instance and
// at-least-once overall.
type NotificationQueue struct {
	rdb *redis.Client
	key string
}

// NewNotificationQueue creates a Redis-backed notification queue.
func NewNotificationQueue(client *Client, key string) *NotificationQueue {
	return &NotificationQueue{rdb: client.rdb, key: key}
}

// Push appends notifications to the queue head.
func (q *NotificationQueue) Push(ctx context.Context, batch []domain.FailureNotification) error {
	if len(batch) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(batch))
	for _, n := range batch {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		values = append(values, data)
	}

	if err := q.rdb.LPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("lpush failed: %w", err)
	}
	return nil
}

// PopBatch blocks briefly for the first notification, then drains up to
// max-1 more that are already queued. Malformed entries are skipped.
func (q *NotificationQueue) PopBatch(ctx context.Context, max int) ([]domain.FailureNotification, error) {
	if max <= 0 {
		max = 1
	}

	result, err := q.rdb.BRPop(ctx, time.Second, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brpop failed: %w", err)
	}
	// result is [key, value]
	if len(result) < 2 {
		return nil, nil
	}

	raw := []string{result[1]}
	if max > 1 {
		more, err := q.rdb.RPopCount(ctx, q.key, max-1).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("rpop failed: %w", err)
		}
		raw = append(raw, more...)
	}

	batch := make([]domain.FailureNotification, 0, len(raw))
	for _, item := range raw {
		var n domain.FailureNotification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			slog.Error("Skipping malformed notification", "error", err)
			continue
		}
		batch = append(batch, n)
	}
	return batch, nil
}

// Depth returns the queue length.
func (q *NotificationQueue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
