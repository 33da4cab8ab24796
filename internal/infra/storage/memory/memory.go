package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openretry/retryd/internal/core/domain"
	"github.com/openretry/retryd/internal/infra/storage"
)

// MemoryStorage backs the in-memory repositories. Used when no database is
// configured and throughout the package tests.
type MemoryStorage struct {
	mu       sync.RWMutex
	records  map[string]*domain.RetryLogRecord
	policies []domain.RetryPolicy
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*domain.RetryLogRecord),
	}
}

// SeedPolicies replaces the policy table contents.
func (s *MemoryStorage) SeedPolicies(policies []domain.RetryPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = append([]domain.RetryPolicy(nil), policies...)
}

func clone(r *domain.RetryLogRecord) *domain.RetryLogRecord {
	cp := *r
	return &cp
}

// -----------------------------------------------------------------------------
// Retry Log Repository
// -----------------------------------------------------------------------------

type LogRepo struct {
	store *MemoryStorage
}

func NewLogRepo(store *MemoryStorage) *LogRepo {
	return &LogRepo{store: store}
}

func (r *LogRepo) Get(ctx context.Context, id string) (*domain.RetryLogRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.records[id]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return clone(rec), nil
}

func (r *LogRepo) GetBatch(ctx context.Context, ids []string) (map[string]*domain.RetryLogRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[string]*domain.RetryLogRecord, len(ids))
	for _, id := range ids {
		if rec, ok := r.store.records[id]; ok {
			out[id] = clone(rec)
		}
	}
	return out, nil
}

func (r *LogRepo) UpsertBatch(ctx context.Context, records []*domain.RetryLogRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range records {
		r.store.records[rec.ID] = clone(rec)
	}
	return nil
}

func (r *LogRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]*domain.RetryLogRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var due []*domain.RetryLogRecord
	for _, rec := range r.store.records {
		if !rec.RetryEnabled || rec.Processed || rec.RetryDueAt.IsZero() {
			continue
		}
		if rec.RetryDueAt.After(now) {
			continue
		}
		if rec.RetryCount >= rec.MaxRetryLimit {
			continue
		}
		due = append(due, clone(rec))
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].RetryDueAt.Before(due[j].RetryDueAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// All returns every stored record (for debugging/monitoring).
func (r *LogRepo) All(ctx context.Context) ([]*domain.RetryLogRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.RetryLogRecord, 0, len(r.store.records))
	for _, rec := range r.store.records {
		out = append(out, clone(rec))
	}
	return out, nil
}

func (r *LogRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for id, rec := range r.store.records {
		if rec.Terminal() && rec.UpdatedAt.Before(cutoff) {
			delete(r.store.records, id)
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Policy Repository
// -----------------------------------------------------------------------------

type PolicyRepo struct {
	store *MemoryStorage
}

func NewPolicyRepo(store *MemoryStorage) *PolicyRepo {
	return &PolicyRepo{store: store}
}

func (r *PolicyRepo) GetAll(ctx context.Context) ([]domain.RetryPolicy, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.RetryPolicy(nil), r.store.policies...), nil
}
