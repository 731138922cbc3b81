package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Session metrics
	SessionsIssued   prometheus.Counter
	SessionFallbacks prometheus.Counter
	AuthFailures     *prometheus.CounterVec
	SessionsRevoked  prometheus.Counter

	// Pipeline metrics
	StageTransitions *prometheus.CounterVec
	StageConflicts   prometheus.Counter

	// Customer metrics
	PurchasesRecorded  prometheus.Counter
	PurchaseDuplicates prometheus.Counter
	AssistantRequests  *prometheus.CounterVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Housekeeping metrics
	HousekeepingRemoved *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on the default registry
func NewMetrics(namespace, subsystem string) *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, namespace, subsystem)
}

// NewMetricsWithRegistry registers all application metrics on reg
func NewMetricsWithRegistry(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_issued_total",
			Help:      "Total number of issued session tokens",
		}),
		SessionFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_issue_fallback_total",
			Help:      "Tokens returned without a persisted session after repeated collisions",
		}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "auth_failures_total",
			Help:      "Total number of rejected authentication attempts",
		}, []string{"reason"}),
		SessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_revoked_total",
			Help:      "Total number of revoked sessions",
		}),

		StageTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stage_transitions_total",
			Help:      "Total number of opportunity stage transitions",
		}, []string{"status"}),
		StageConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stage_transition_conflicts_total",
			Help:      "Stage transitions rejected because the opportunity changed concurrently",
		}),

		PurchasesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "purchases_recorded_total",
			Help:      "Total number of recorded purchases",
		}),
		PurchaseDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "purchase_duplicates_total",
			Help:      "Purchases skipped because their request id was already recorded",
		}),
		AssistantRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "assistant_requests_total",
			Help:      "Assistant completions by outcome",
		}, []string{"provider", "status"}),

		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		HousekeepingRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "housekeeping_rows_total",
			Help:      "Rows removed or deactivated by housekeeping",
		}, []string{"task"}),
	}
}

// NewNop registers metrics on a private registry, for tests and tools
func NewNop() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry(), "crm", "test")
}
