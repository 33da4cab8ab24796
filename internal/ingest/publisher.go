package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/openretry/retryd/internal/core/domain"
)

// Publisher re-enters outcome notifications into the pipeline. Publishing
// is fire-and-forget for the caller's control flow, but transient queue
// errors are retried with a short Fibonacci backoff so outcomes are not
// silently lost on a momentary transport hiccup.
type Publisher struct {
	queue Queue
}

func NewPublisher(queue Queue) *Publisher {
	return &Publisher{queue: queue}
}

// Publish pushes a batch of notifications onto the queue.
func (p *Publisher) Publish(ctx context.Context, batch []domain.FailureNotification) error {
	if len(batch) == 0 {
		return nil
	}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.queue.Push(ctx, batch); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to publish notifications", "error", err, "count", len(batch))
		return err
	}
	return nil
}
