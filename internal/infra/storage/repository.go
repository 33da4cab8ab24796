package storage

import (
	"context"
	"errors"
	"time"

	"github.com/openretry/retryd/internal/core/domain"
)

var (
	// ErrRecordNotFound is returned when a retry log record doesn't exist.
	ErrRecordNotFound = errors.New("retry log record not found")
)

// RetryLogRepository handles retry log persistence.
type RetryLogRepository interface {
	// Get retrieves a record by id.
	Get(ctx context.Context, id string) (*domain.RetryLogRecord, error)

	// GetBatch bulk-loads the records for the given ids in one fetch.
	// Ids with no record are simply absent from the result.
	GetBatch(ctx context.Context, ids []string) (map[string]*domain.RetryLogRecord, error)

	// UpsertBatch persists all records atomically: insert when absent,
	// update in place when present. Either the whole batch is durable or
	// none of it is.
	UpsertBatch(ctx context.Context, records []*domain.RetryLogRecord) error

	// GetDue returns records eligible for dispatch: retry enabled, not
	// processed, due time passed and retry count below the configured
	// ceiling. The ceiling is enforced here, not in the ledger.
	GetDue(ctx context.Context, now time.Time, limit int) ([]*domain.RetryLogRecord, error)

	// DeleteTerminalOlderThan removes processed or retry-disabled records
	// last updated before the cutoff and returns how many were removed.
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// PolicyRepository reads the retry policy table. The table is managed out
// of band by admin tooling; this side only ever loads it in full.
type PolicyRepository interface {
	GetAll(ctx context.Context) ([]domain.RetryPolicy, error)
}
