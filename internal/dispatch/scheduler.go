package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/openretry/retryd/internal/infra/storage"
)

// Dispatcher is the gateway contract the scheduler drives.
type Dispatcher interface {
	ExecuteRetry(ctx context.Context, logID, processName string)
}

// Locker bounds duplicate dispatch across overlapping scheduler passes.
// Best effort: a lock failure falls back to dispatching, since handlers
// must tolerate duplicates anyway.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// SchedulerConfig holds the due-record polling settings.
type SchedulerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	LockTTL      time.Duration
}

// Scheduler polls for due retry log records and hands each one to the
// gateway. Dispatch is synchronous from the scheduler's perspective.
type Scheduler struct {
	records    storage.RetryLogRepository
	dispatcher Dispatcher
	locker     Locker
	cfg        SchedulerConfig
	now        func() time.Time
}

func NewScheduler(
	records storage.RetryLogRepository,
	dispatcher Dispatcher,
	locker Locker,
	cfg SchedulerConfig,
) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &Scheduler{
		records:    records,
		dispatcher: dispatcher,
		locker:     locker,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Start runs the polling loop until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Dispatch scheduler started",
		"poll_interval", s.cfg.PollInterval, "batch_size", s.cfg.BatchSize)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep dispatches one batch of due records.
func (s *Scheduler) Sweep(ctx context.Context) {
	due, err := s.records.GetDue(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		slog.Error("Failed to query due retry records", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	slog.Debug("Dispatching due retry records", "count", len(due))
	for _, rec := range due {
		if ctx.Err() != nil {
			return
		}
		if s.locker != nil {
			ok, err := s.locker.AcquireLock(ctx, "dispatch:"+rec.ID, s.cfg.LockTTL)
			if err != nil {
				slog.Warn("Dispatch lock unavailable, dispatching anyway",
					"record_id", rec.ID, "error", err)
			} else if !ok {
				continue
			}
		}
		s.dispatcher.ExecuteRetry(ctx, rec.ID, rec.ProcessName)
	}
}
