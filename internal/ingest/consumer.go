package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/openretry/retryd/internal/core/domain"
	"github.com/openretry/retryd/internal/metrics"
)

// Reconciler is the ledger contract the consumer feeds.
type Reconciler interface {
	Reconcile(ctx context.Context, batch []domain.FailureNotification) error
}

// Consumer pops notification batches off the queue and feeds them to the
// ledger. A failed batch is logged and dropped: the transport's own
// redelivery, if any, is the only recovery path.
type Consumer struct {
	queue     Queue
	ledger    Reconciler
	batchSize int
}

func NewConsumer(queue Queue, ledger Reconciler, batchSize int) *Consumer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Consumer{queue: queue, ledger: ledger, batchSize: batchSize}
}

// Start runs the consume loop until the context is canceled.
func (c *Consumer) Start(ctx context.Context) {
	slog.Info("Notification consumer started", "batch_size", c.batchSize)

	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := c.queue.PopBatch(ctx, c.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Failed to pop notification batch", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(batch) == 0 {
			continue
		}

		if depth, err := c.queue.Depth(ctx); err == nil {
			metrics.IngestQueueDepth.Set(float64(depth))
		}

		if err := c.ledger.Reconcile(ctx, batch); err != nil {
			slog.Error("Reconciliation failed, batch dropped", "error", err, "count", len(batch))
		}
	}
}
