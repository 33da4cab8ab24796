package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openretry/retryd/internal/core/domain"
	"github.com/openretry/retryd/internal/core/policy"
	"github.com/openretry/retryd/internal/infra/storage"
	"github.com/openretry/retryd/internal/metrics"
)

// Ledger is the log reconciliation engine. It consumes notification
// batches, merges them against existing retry log records, decides retry
// eligibility, computes the next due time and advances attempt counters.
// The single bulk upsert at the end of Reconcile is the atomicity boundary.
type Ledger struct {
	records  storage.RetryLogRepository
	policies *policy.Cache
	now      func() time.Time
}

func New(records storage.RetryLogRepository, policies *policy.Cache) *Ledger {
	return &Ledger{
		records:  records,
		policies: policies,
		now:      time.Now,
	}
}

// Reconcile merges a notification batch into the retry log. Notifications
// referencing an existing chain are resolved against one bulk load of their
// prior records; duplicate ids within a batch are merged last-write-wins
// before the upsert. A persistence failure is logged and returned; the
// batch is then considered unreconciled and the caller must not crash.
func (l *Ledger) Reconcile(ctx context.Context, batch []domain.FailureNotification) error {
	if len(batch) == 0 {
		return nil
	}

	metrics.ReconcileBatches.Inc()
	metrics.ReconcileBatchSize.Observe(float64(len(batch)))

	ids := make([]string, 0, len(batch))
	for _, n := range batch {
		if n.RecordID != "" {
			ids = append(ids, n.RecordID)
		}
	}

	priors := map[string]*domain.RetryLogRecord{}
	if len(ids) > 0 {
		var err error
		priors, err = l.records.GetBatch(ctx, ids)
		if err != nil {
			slog.Error("Failed to load prior retry records", "error", err, "ids", len(ids))
			metrics.ReconcileFailures.Inc()
			return fmt.Errorf("load prior records: %w", err)
		}
	}

	now := l.now()

	// Last-write-wins within the batch: each notification is reconciled
	// against the loaded prior, later ones for the same id overwrite
	// earlier ones in the merge map.
	built := make(map[string]*domain.RetryLogRecord, len(batch))
	order := make([]string, 0, len(batch))
	for _, n := range batch {
		rec, err := l.reconcileOne(ctx, n, priors[n.RecordID], now)
		if err != nil {
			slog.Error("Failed to reconcile notification", "error", err, "process", n.ProcessName)
			metrics.ReconcileFailures.Inc()
			return err
		}
		if _, seen := built[rec.ID]; !seen {
			order = append(order, rec.ID)
		}
		built[rec.ID] = rec
	}

	records := make([]*domain.RetryLogRecord, 0, len(order))
	for _, id := range order {
		records = append(records, built[id])
	}

	if err := l.records.UpsertBatch(ctx, records); err != nil {
		slog.Error("Failed to persist reconciled batch", "error", err, "records", len(records))
		metrics.ReconcileFailures.Inc()
		return fmt.Errorf("persist reconciled batch: %w", err)
	}

	return nil
}

// reconcileOne builds the target record for one notification. The status
// fields always come from the notification; the scheduling fields depend on
// whether a policy resolves and whether the chain already exists.
func (l *Ledger) reconcileOne(
	ctx context.Context,
	n domain.FailureNotification,
	prior *domain.RetryLogRecord,
	now time.Time,
) (*domain.RetryLogRecord, error) {
	rec := &domain.RetryLogRecord{
		ID:              n.RecordID,
		ProcessName:     n.ProcessName,
		MethodName:      n.MethodName,
		Status:          n.Status,
		Processed:       n.Processed,
		RequestPayload:  n.RequestPayload,
		ResponsePayload: n.ResponsePayload,
		ErrorMessage:    n.ErrorMessage,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if prior != nil {
		rec.CreatedAt = prior.CreatedAt
	}

	pol, found, err := l.policies.Resolve(ctx, n.ProcessName, n.MethodName)
	if err != nil {
		return nil, fmt.Errorf("resolve policy: %w", err)
	}

	if !found || n.Processed || n.Status != domain.StatusFailure {
		// The status fields still persist, but the chain is not advanced:
		// counters and due time carry forward unchanged.
		if prior != nil {
			rec.RetryCount = prior.RetryCount
			rec.RetryIntervalMinutes = prior.RetryIntervalMinutes
			rec.MaxRetryLimit = prior.MaxRetryLimit
			rec.RetryDueAt = prior.RetryDueAt
		}
		rec.RetryEnabled = false
		metrics.NotificationsReconciled.WithLabelValues(n.ProcessName, "disabled").Inc()
		return rec, nil
	}

	rec.RetryEnabled = true
	switch {
	case prior == nil:
		// New chain: notification overrides supersede the policy values.
		rec.RetryCount = intOr(n.RetryCountOverride, 0)
		rec.MaxRetryLimit = intOr(n.MaxRetryLimitOverride, pol.MaxRetryCount)
		rec.RetryIntervalMinutes = intOr(n.RetryIntervalOverride, pol.RetryIntervalMinutes)
		startAfter := intOr(n.StartFirstRetryAfterOverride, pol.StartFirstRetryAfterMinutes)
		rec.RetryDueAt = now.Add(time.Duration(startAfter) * time.Minute)

	case prior.RetryDueAt.IsZero():
		// The chain existed but was never scheduled (created while retry
		// was disabled). Its schedule starts from now, off the policy.
		rec.RetryCount = prior.RetryCount + 1
		rec.MaxRetryLimit = pol.MaxRetryCount
		rec.RetryIntervalMinutes = pol.RetryIntervalMinutes
		rec.RetryDueAt = now.Add(time.Duration(pol.StartFirstRetryAfterMinutes) * time.Minute)

	default:
		// Existing chain: overrides are honored at chain creation only.
		// Chaining off the prior due time, not off now, keeps the schedule
		// from compressing when reconciliation runs late.
		rec.RetryCount = prior.RetryCount + 1
		rec.MaxRetryLimit = prior.MaxRetryLimit
		rec.RetryIntervalMinutes = prior.RetryIntervalMinutes
		rec.RetryDueAt = prior.RetryDueAt.Add(time.Duration(prior.RetryIntervalMinutes) * time.Minute)
	}

	metrics.NotificationsReconciled.WithLabelValues(n.ProcessName, "scheduled").Inc()
	return rec, nil
}

func intOr(override *int, fallback int) int {
	if override != nil {
		return *override
	}
	return fallback
}
