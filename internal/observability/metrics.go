package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// RequestsCreated counts accepted service requests.
	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_requests_created_total",
		Help: "Total number of service requests created",
	})

	// StatusTransitions counts lifecycle transitions by resulting status.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_status_transitions_total",
		Help: "Total number of request status transitions by target status",
	}, []string{"status"})

	// SLABreaches counts assignments reclaimed by the SLA sweep.
	SLABreaches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_sla_breaches_total",
		Help: "Total number of assignments that expired before a partner response",
	})

	// NotificationsSent counts delivered notifications by channel.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_notifications_sent_total",
		Help: "Total number of notifications delivered by channel",
	}, []string{"channel"})

	// NotificationDrops counts fan-out events dropped by the dispatcher.
	NotificationDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_notification_drops_total",
		Help: "Total number of notification events dropped before processing",
	}, []string{"reason"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
