package dispatch

import (
	"context"
	"log/slog"

	"github.com/openretry/retryd/internal/infra/storage"
	"github.com/openretry/retryd/internal/metrics"
)

// Gateway turns a due retry log record into a handler invocation. Every
// failure inside ExecuteRetry is logged and swallowed: one bad retry must
// never block the scheduler's processing of other due records.
type Gateway struct {
	records  storage.RetryLogRepository
	registry *Registry
}

func NewGateway(records storage.RetryLogRepository, registry *Registry) *Gateway {
	return &Gateway{records: records, registry: registry}
}

// ExecuteRetry loads the record, resolves the handler registered under the
// process name and invokes it. The handler is responsible for emitting its
// own outcome notification; the gateway decides nothing about success.
func (g *Gateway) ExecuteRetry(ctx context.Context, logID, processName string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic during retry dispatch",
				"record_id", logID, "process", processName, "panic", r)
			metrics.DispatchesTotal.WithLabelValues(processName, "panic").Inc()
		}
	}()

	record, err := g.records.Get(ctx, logID)
	if err != nil {
		slog.Error("Failed to load retry record for dispatch",
			"record_id", logID, "process", processName, "error", err)
		metrics.DispatchesTotal.WithLabelValues(processName, "load_error").Inc()
		return
	}

	handler, ok := g.registry.Resolve(processName)
	if !ok {
		slog.Error("No handler registered for process",
			"record_id", logID, "process", processName)
		metrics.DispatchesTotal.WithLabelValues(processName, "no_handler").Inc()
		return
	}

	if err := handler.InvokeRetry(ctx, *record); err != nil {
		slog.Error("Retry handler failed",
			"record_id", logID, "process", processName, "retry_count", record.RetryCount, "error", err)
		metrics.DispatchesTotal.WithLabelValues(processName, "handler_error").Inc()
		return
	}

	slog.Debug("Retry dispatched",
		"record_id", logID, "process", processName, "retry_count", record.RetryCount)
	metrics.DispatchesTotal.WithLabelValues(processName, "invoked").Inc()
}
