package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/openretry/retryd/internal/infra/storage"
	"github.com/openretry/retryd/internal/metrics"
)

// Pruner deletes terminal retry log records based on retention policy.
// A record is terminal once it is processed or no longer retry-enabled.
type Pruner struct {
	retention time.Duration
	records   storage.RetryLogRepository
}

// NewPruner creates a new Pruner worker.
func NewPruner(records storage.RetryLogRepository, retention time.Duration) *Pruner {
	return &Pruner{retention: retention, records: records}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check interval: 10% of the retention period, clamped to [1m, 1h].
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	n, err := p.records.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune terminal retry records", "error", err)
		return
	}
	if n > 0 {
		metrics.RecordsPruned.Add(float64(n))
		slog.Info("Pruned terminal retry records", "count", n)
	}
}
