// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the worker.
type Metrics struct {
	// Reconciliation metrics
	SalesRecorded       prometheus.Counter
	DebtsRecorded       prometheus.Counter
	DebtsCleared        prometheus.Counter
	SalesPatched        prometheus.Counter
	CandidatesDropped   *prometheus.CounterVec
	CandidatesProcessed *prometheus.CounterVec

	// Engine metrics
	ChunkRetries        prometheus.Counter
	CollectionFailures  prometheus.Counter
	CollectionsSkipped  prometheus.Counter
	PassRestarts        prometheus.Counter
	PassDuration        prometheus.Histogram
	CollectionDuration  prometheus.Histogram

	// Live path metrics
	NotificationsSeen     prometheus.Counter
	NotificationsDeduped  prometheus.Counter
	ActivitiesClassified  *prometheus.CounterVec
	WebhookEventsReceived prometheus.Counter

	// External call metrics
	RPCCallLatency     *prometheus.HistogramVec
	HistoryAPILatency  prometheus.Histogram
	MetadataAPILatency prometheus.Histogram

	// Database metrics
	DBQueryErrors  *prometheus.CounterVec
	ArchiveErrors  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cpl_worker"
	}

	return &Metrics{
		// Reconciliation metrics
		SalesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "sales_recorded_total",
			Help:      "Total number of sales persisted",
		}),
		DebtsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "debts_recorded_total",
			Help:      "Total number of sales recorded with royalty debt",
		}),
		DebtsCleared: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "debts_cleared_total",
			Help:      "Total number of mints whose outstanding debt was cleared by a newer sale",
		}),
		SalesPatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "sales_patched_total",
			Help:      "Total number of recorded sales recomputed and overwritten",
		}),
		CandidatesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "candidates_dropped_total",
			Help:      "Total number of sale candidates dropped by reason",
		}, []string{"reason"}),
		CandidatesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "candidates_processed_total",
			Help:      "Total number of sale candidates analyzed by source",
		}, []string{"source"}),

		// Engine metrics
		ChunkRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "chunk_retries_total",
			Help:      "Total number of mint chunk retries",
		}),
		CollectionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "collection_failures_total",
			Help:      "Total number of failed collection reconciliation attempts",
		}),
		CollectionsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "collections_skipped_total",
			Help:      "Total number of collections skipped after exhausting retries",
		}),
		PassRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pass_restarts_total",
			Help:      "Total number of reconciliation pass restarts",
		}),
		PassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pass_duration_seconds",
			Help:      "Full reconciliation pass duration in seconds",
			Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		CollectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "collection_duration_seconds",
			Help:      "Per-collection reconciliation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
		}),

		// Live path metrics
		NotificationsSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "notifications_seen_total",
			Help:      "Total number of account-change notifications received",
		}),
		NotificationsDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "notifications_deduped_total",
			Help:      "Total number of notifications dropped as already processed",
		}),
		ActivitiesClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "activities_classified_total",
			Help:      "Total number of live transactions classified by activity type",
		}, []string{"type"}),
		WebhookEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "webhook_events_received_total",
			Help:      "Total number of webhook sale events received",
		}),

		// External call metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		HistoryAPILatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketplace",
			Name:      "history_api_latency_seconds",
			Help:      "Marketplace history API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		MetadataAPILatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "api_latency_seconds",
			Help:      "Metadata API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Database metrics
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		ArchiveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "archive_errors_total",
			Help:      "Total number of best-effort archive write failures",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
