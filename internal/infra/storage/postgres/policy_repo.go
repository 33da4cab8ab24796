package postgres

import (
	"context"
	"fmt"

	"github.com/openretry/retryd/internal/core/domain"
)

// PolicyRepo implements storage.PolicyRepository using PostgreSQL.
type PolicyRepo struct {
	db *DB
}

// NewPolicyRepo creates a new PostgreSQL retry policy repository.
func NewPolicyRepo(db *DB) *PolicyRepo {
	return &PolicyRepo{db: db}
}

type policyRow struct {
	ProcessName                 string `db:"process_name"`
	MethodName                  string `db:"method_name"`
	MaxRetryCount               int    `db:"max_retry_count"`
	RetryIntervalMinutes        int    `db:"retry_interval_minutes"`
	StartFirstRetryAfterMinutes int    `db:"start_first_retry_after_minutes"`
	IsActive                    bool   `db:"is_active"`
}

// GetAll loads the full policy table in one query.
func (r *PolicyRepo) GetAll(ctx context.Context) ([]domain.RetryPolicy, error) {
	query := `
		SELECT process_name, method_name, max_retry_count,
		       retry_interval_minutes, start_first_retry_after_minutes, is_active
		FROM retry_policies
	`

	var rows []policyRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load retry policies: %w", err)
	}

	policies := make([]domain.RetryPolicy, 0, len(rows))
	for _, row := range rows {
		policies = append(policies, domain.RetryPolicy{
			ProcessName:                 row.ProcessName,
			MethodName:                  row.MethodName,
			MaxRetryCount:               row.MaxRetryCount,
			RetryIntervalMinutes:        row.RetryIntervalMinutes,
			StartFirstRetryAfterMinutes: row.StartFirstRetryAfterMinutes,
			Active:                      row.IsActive,
		})
	}
	return policies, nil
}
