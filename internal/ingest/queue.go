package ingest

import (
	"context"
	"time"

	"github.com/openretry/retryd/internal/core/domain"
)

// Queue is the at-least-once notification transport boundary. Delivery is
// unordered across batches; a popped batch that fails reconciliation is not
// re-queued by this side.
type Queue interface {
	// Push appends notifications to the queue.
	Push(ctx context.Context, batch []domain.FailureNotification) error

	// PopBatch returns up to max notifications, blocking briefly when the
	// queue is empty. An empty result is not an error.
	PopBatch(ctx context.Context, max int) ([]domain.FailureNotification, error)

	// Depth returns the current queue length.
	Depth(ctx context.Context) (int64, error)
}

// MemoryQueue is a channel-backed queue for memory mode and tests.
type MemoryQueue struct {
	ch chan domain.FailureNotification
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{ch: make(chan domain.FailureNotification, size)}
}

func (q *MemoryQueue) Push(ctx context.Context, batch []domain.FailureNotification) error {
	for _, n := range batch {
		select {
		case q.ch <- n:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (q *MemoryQueue) PopBatch(ctx context.Context, max int) ([]domain.FailureNotification, error) {
	if max <= 0 {
		max = 1
	}

	// Block for the first notification, then drain what is already queued.
	var batch []domain.FailureNotification
	select {
	case n := <-q.ch:
		batch = append(batch, n)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return nil, nil
	}

	for len(batch) < max {
		select {
		case n := <-q.ch:
			batch = append(batch, n)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (q *MemoryQueue) Depth(ctx context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}
