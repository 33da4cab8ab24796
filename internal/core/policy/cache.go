package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/openretry/retryd/internal/core/domain"
	"github.com/openretry/retryd/internal/infra/storage"
	"github.com/openretry/retryd/internal/metrics"
)

// Cache is the config resolver: a fully-materialized process/method ->
// policy mapping served from memory. It is built once (lazily on first
// resolve, or explicitly via Load) and replaced wholesale on Reload; it is
// never partially invalidated. A failed rebuild is a configuration error
// surfaced to the caller, a lookup miss is not.
type Cache struct {
	repo storage.PolicyRepository

	mu       sync.RWMutex
	policies map[string]domain.RetryPolicy
	loaded   bool
}

func NewCache(repo storage.PolicyRepository) *Cache {
	return &Cache{repo: repo}
}

// Load builds the lookup map from the full policy table. Inactive policies
// are never entered into the map, so resolution treats them as absent.
func (c *Cache) Load(ctx context.Context) error {
	all, err := c.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load retry policies: %w", err)
	}

	policies := make(map[string]domain.RetryPolicy, len(all))
	for _, p := range all {
		if !p.Active {
			continue
		}
		policies[p.Key()] = p
	}

	c.mu.Lock()
	c.policies = policies
	c.loaded = true
	c.mu.Unlock()

	metrics.PolicyCacheSize.Set(float64(len(policies)))
	return nil
}

// Reload rebuilds the map from the table. The previous map keeps serving
// lookups until the rebuild succeeds.
func (c *Cache) Reload(ctx context.Context) error {
	return c.Load(ctx)
}

// Invalidate drops the cached map; the next Resolve rebuilds it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// Resolve returns the policy for a process/method. A policy keyed by
// process--method takes precedence over one keyed by process alone. The
// second return is false when nothing is configured; the error is non-nil
// only when the cache could not be built.
func (c *Cache) Resolve(ctx context.Context, processName, methodName string) (domain.RetryPolicy, bool, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return domain.RetryPolicy{}, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if methodName != "" {
		if p, ok := c.policies[domain.PolicyKey(processName, methodName)]; ok {
			return p, true, nil
		}
	}
	p, ok := c.policies[processName]
	return p, ok, nil
}

// Size returns the number of cached policies.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.policies)
}

func (c *Cache) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Load(ctx)
}
