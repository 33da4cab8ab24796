package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsReconciled tracks reconciled notifications per process.
	// Result is "scheduled" when the chain was advanced for retry and
	// "disabled" otherwise.
	NotificationsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retryd_notifications_reconciled_total",
			Help: "Total number of notifications reconciled into the retry log",
		},
		[]string{"process", "result"},
	)

	// ReconcileBatches tracks how many notification batches were processed.
	ReconcileBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retryd_reconcile_batches_total",
			Help: "Total number of notification batches reconciled",
		},
	)

	// ReconcileBatchSize tracks the size of reconciled batches.
	ReconcileBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retryd_reconcile_batch_size",
			Help:    "Number of notifications per reconciled batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// ReconcileFailures tracks batches dropped because loading priors or
	// the bulk upsert failed.
	ReconcileFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retryd_reconcile_failures_total",
			Help: "Total number of notification batches that failed to reconcile",
		},
	)

	// DispatchesTotal tracks retry dispatches per process and outcome.
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retryd_dispatches_total",
			Help: "Total number of retry dispatches",
		},
		[]string{"process", "outcome"},
	)

	// IngestQueueDepth tracks the current notification queue length.
	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retryd_ingest_queue_depth",
			Help: "Current depth of the notification queue",
		},
	)

	// PolicyCacheSize tracks the number of cached active policies.
	PolicyCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retryd_policy_cache_size",
			Help: "Number of active retry policies in the cache",
		},
	)

	// RecordsPruned tracks terminal records removed by the retention pruner.
	RecordsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retryd_records_pruned_total",
			Help: "Total number of terminal retry log records pruned",
		},
	)

	// DBBatchSize tracks database batch operation sizes.
	DBBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retryd_db_batch_size",
			Help:    "Size of batched database operations",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionPoolUsage tracks connection pool utilization percentage.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retryd_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
