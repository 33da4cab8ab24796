package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/openretry/retryd/internal/core/domain"
)

// Handler is implemented by business logic that wants to be retry-aware.
// The framework inspects no return value for outcome decisions: a handler
// reports success or failure by re-entering the notification pipeline. The
// error return exists so dispatch can log hard failures such as a missing
// payload attribute.
type Handler interface {
	InvokeRetry(ctx context.Context, record domain.RetryLogRecord) error
}

// Registry maps process names to handler implementations. It is populated
// at startup; resolving an unregistered name is a configuration error
// reported by the gateway, never a runtime type failure.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a process name.
func (r *Registry) Register(processName string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[processName]; exists {
		return fmt.Errorf("handler already registered for process %q", processName)
	}
	r.handlers[processName] = h
	return nil
}

// Resolve looks up the handler for a process name by exact match.
func (r *Registry) Resolve(processName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[processName]
	return h, ok
}

// Names returns the registered process names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
