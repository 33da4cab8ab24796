package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/openretry/retryd/internal/core/domain"
	"github.com/openretry/retryd/internal/infra/storage"
	"github.com/openretry/retryd/internal/metrics"
)

// LogRepo implements storage.RetryLogRepository using PostgreSQL.
type LogRepo struct {
	db *DB
}

// NewLogRepo creates a new PostgreSQL retry log repository.
func NewLogRepo(db *DB) *LogRepo {
	return &LogRepo{db: db}
}

type logRow struct {
	ID                   string       `db:"id"`
	ProcessName          string       `db:"process_name"`
	MethodName           string       `db:"method_name"`
	Status               string       `db:"status"`
	Processed            bool         `db:"processed"`
	RequestPayload       string       `db:"request_payload"`
	ResponsePayload      string       `db:"response_payload"`
	ErrorMessage         string       `db:"error_message"`
	RetryEnabled         bool         `db:"retry_enabled"`
	RetryIntervalMinutes int          `db:"retry_interval_minutes"`
	MaxRetryLimit        int          `db:"max_retry_limit"`
	RetryCount           int          `db:"retry_count"`
	RetryDueAt           sql.NullTime `db:"retry_due_at"`
	CreatedAt            time.Time    `db:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at"`
}

const logColumns = `
	id, process_name, method_name, status, processed,
	request_payload, response_payload, error_message,
	retry_enabled, retry_interval_minutes, max_retry_limit, retry_count,
	retry_due_at, created_at, updated_at
`

func (r logRow) toDomain() *domain.RetryLogRecord {
	rec := &domain.RetryLogRecord{
		ID:                   r.ID,
		ProcessName:          r.ProcessName,
		MethodName:           r.MethodName,
		Status:               domain.NotificationStatus(r.Status),
		Processed:            r.Processed,
		RequestPayload:       domain.Payload(r.RequestPayload),
		ResponsePayload:      domain.Payload(r.ResponsePayload),
		ErrorMessage:         r.ErrorMessage,
		RetryEnabled:         r.RetryEnabled,
		RetryIntervalMinutes: r.RetryIntervalMinutes,
		MaxRetryLimit:        r.MaxRetryLimit,
		RetryCount:           r.RetryCount,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.RetryDueAt.Valid {
		rec.RetryDueAt = r.RetryDueAt.Time
	}
	return rec
}

// Get retrieves a record by id.
func (r *LogRepo) Get(ctx context.Context, id string) (*domain.RetryLogRecord, error) {
	query := `SELECT ` + logColumns + ` FROM retry_logs WHERE id = $1`

	var row logRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get retry log: %w", err)
	}
	return row.toDomain(), nil
}

// GetBatch bulk-loads records for the given ids in a single query.
func (r *LogRepo) GetBatch(ctx context.Context, ids []string) (map[string]*domain.RetryLogRecord, error) {
	if len(ids) == 0 {
		return map[string]*domain.RetryLogRecord{}, nil
	}

	query := `SELECT ` + logColumns + ` FROM retry_logs WHERE id = ANY($1)`

	var rows []logRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to bulk load retry logs: %w", err)
	}

	out := make(map[string]*domain.RetryLogRecord, len(rows))
	for _, row := range rows {
		out[row.ID] = row.toDomain()
	}
	return out, nil
}

// UpsertBatch persists all records in one multi-row statement inside a
// transaction: insert when absent, update in place when present.
func (r *LogRepo) UpsertBatch(ctx context.Context, records []*domain.RetryLogRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	processNames := make([]string, len(records))
	methodNames := make([]string, len(records))
	statuses := make([]string, len(records))
	processeds := make([]bool, len(records))
	requestPayloads := make([]string, len(records))
	responsePayloads := make([]string, len(records))
	errorMessages := make([]string, len(records))
	retryEnableds := make([]bool, len(records))
	retryIntervals := make([]int64, len(records))
	maxRetryLimits := make([]int64, len(records))
	retryCounts := make([]int64, len(records))
	retryDueAts := make([]pq.NullTime, len(records))
	createdAts := make([]time.Time, len(records))
	updatedAts := make([]time.Time, len(records))

	for i, rec := range records {
		ids[i] = rec.ID
		processNames[i] = rec.ProcessName
		methodNames[i] = rec.MethodName
		statuses[i] = string(rec.Status)
		processeds[i] = rec.Processed
		requestPayloads[i] = string(rec.RequestPayload)
		responsePayloads[i] = string(rec.ResponsePayload)
		errorMessages[i] = rec.ErrorMessage
		retryEnableds[i] = rec.RetryEnabled
		retryIntervals[i] = int64(rec.RetryIntervalMinutes)
		maxRetryLimits[i] = int64(rec.MaxRetryLimit)
		retryCounts[i] = int64(rec.RetryCount)
		if !rec.RetryDueAt.IsZero() {
			retryDueAts[i] = pq.NullTime{Time: rec.RetryDueAt, Valid: true}
		}
		createdAts[i] = rec.CreatedAt
		updatedAts[i] = rec.UpdatedAt
	}

	metrics.DBBatchSize.WithLabelValues("upsert_retry_logs").Observe(float64(len(records)))

	query := `
		INSERT INTO retry_logs (` + logColumns + `)
		SELECT * FROM UNNEST(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::boolean[],
			$6::text[], $7::text[], $8::text[],
			$9::boolean[], $10::int[], $11::int[], $12::int[],
			$13::timestamptz[], $14::timestamptz[], $15::timestamptz[]
		)
		ON CONFLICT (id) DO UPDATE SET
			process_name = EXCLUDED.process_name,
			method_name = EXCLUDED.method_name,
			status = EXCLUDED.status,
			processed = EXCLUDED.processed,
			request_payload = EXCLUDED.request_payload,
			response_payload = EXCLUDED.response_payload,
			error_message = EXCLUDED.error_message,
			retry_enabled = EXCLUDED.retry_enabled,
			retry_interval_minutes = EXCLUDED.retry_interval_minutes,
			max_retry_limit = EXCLUDED.max_retry_limit,
			retry_count = EXCLUDED.retry_count,
			retry_due_at = EXCLUDED.retry_due_at,
			updated_at = EXCLUDED.updated_at
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, query,
		pq.Array(ids),
		pq.Array(processNames),
		pq.Array(methodNames),
		pq.Array(statuses),
		pq.Array(processeds),
		pq.Array(requestPayloads),
		pq.Array(responsePayloads),
		pq.Array(errorMessages),
		pq.Array(retryEnableds),
		pq.Array(retryIntervals),
		pq.Array(maxRetryLimits),
		pq.Array(retryCounts),
		pq.Array(retryDueAts),
		pq.Array(createdAts),
		pq.Array(updatedAts),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert retry logs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit retry log upsert: %w", err)
	}
	return nil
}

// GetDue returns dispatch-eligible records. The max-retry ceiling is
// enforced here rather than in the ledger, which keeps advancing counters.
func (r *LogRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]*domain.RetryLogRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + logColumns + `
		FROM retry_logs
		WHERE retry_enabled
		  AND NOT processed
		  AND retry_due_at IS NOT NULL
		  AND retry_due_at <= $1
		  AND retry_count < max_retry_limit
		ORDER BY retry_due_at ASC
		LIMIT $2
	`

	var rows []logRow
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to get due retry logs: %w", err)
	}

	out := make([]*domain.RetryLogRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// DeleteTerminalOlderThan removes processed or retry-disabled records last
// updated before the cutoff.
func (r *LogRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM retry_logs
		WHERE (processed OR NOT retry_enabled)
		  AND updated_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune retry logs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
