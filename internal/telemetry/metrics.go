// Package telemetry provides application-level observability for the backend.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<SDLP_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Authentication counters (logins, password resets)
//   - Alert and incident lifecycle counters
//   - ML classification counters and latency histogram
//   - Audit trail write counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/alerts/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as entity IDs.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/v1/incidents/:id/comments),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Authentication metrics.
//
// LoginAttemptsTotal is a CounterVec with label {result} where result is one of
// "success", "invalid_credentials", or "deactivated".  A sudden spike in
// invalid_credentials against a flat success rate is a useful brute-force signal.
//
// Example PromQL queries:
//   - Failed login rate:  rate(login_attempts_total{result="invalid_credentials"}[5m])
//   - Success ratio:      sum(rate(login_attempts_total{result="success"}[1h])) / sum(rate(login_attempts_total[1h]))
//
// PasswordResetsTotal is a CounterVec with label {stage} where stage is
// "requested" (forgot-password accepted) or "completed" (token redeemed).
// A large requested/completed gap may indicate reset-token farming.
var (
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts, by result (success, invalid_credentials, deactivated).",
		},
		[]string{"result"},
	)

	PasswordResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "password_resets_total",
			Help: "Total number of password reset flows, by stage (requested, completed).",
		},
		[]string{"stage"},
	)
)

// Alert and incident lifecycle metrics.
//
// AlertsCreatedTotal is a CounterVec with labels {severity, source}.  Severity is
// one of the five alert severities; source distinguishes manual creation from the
// auto-classification job.
//
// Example PromQL queries:
//   - Critical alert rate:  rate(alerts_created_total{severity="Critical"}[1h])
//   - Alerts by source:     sum by (source) (rate(alerts_created_total[1h]))
//
// StatusTransitionsTotal is a CounterVec with labels {entity, to} incremented
// whenever an alert or incident changes status.  Useful for tracking triage
// throughput (e.g. rate of alerts reaching Resolved).
var (
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_created_total",
			Help: "Total number of alerts created, by severity and source.",
		},
		[]string{"severity", "source"},
	)

	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_transitions_total",
			Help: "Total number of entity status transitions, by entity type and destination status.",
		},
		[]string{"entity", "to"},
	)
)

// ML classification metrics — recorded by the ML client and the alert
// auto-classification background job.
//
// MLClassificationsTotal is a CounterVec with labels {kind, result} where kind is
// "document_sensitivity" or "user_anomaly" and result is "success", "error", or
// "cache_hit".  An alert on rate(ml_classifications_total{result="error"}[15m]) > 0
// catches ML engine outages early.
//
// MLClassificationDuration is a Histogram observing the round-trip latency of
// successful classification calls (cache hits are not observed).
var (
	MLClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_classifications_total",
			Help: "Total number of ML classification requests, by prediction kind and result.",
		},
		[]string{"kind", "result"},
	)

	MLClassificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ml_classification_duration_seconds",
			Help:    "Duration of ML classification round-trips.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// AuditEntriesTotal is a CounterVec with label {action} incremented once per audit
// trail row written.  A stalled counter during active API traffic indicates the
// async audit writer is failing.
//
// Example PromQL queries:
//   - Audit write rate:  rate(audit_entries_total[5m])
//   - Writes by action:  sum by (action) (rate(audit_entries_total[1h]))
var AuditEntriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "audit_entries_total",
		Help: "Total number of audit trail entries written, by action.",
	},
	[]string{"action"},
)

// NotificationEmailsSentTotal is a plain Counter (no labels) incremented once per
// email successfully delivered by the notifier.  A stalled counter combined with a
// rising password_resets_total{stage="requested"} is a useful alert signal for
// SMTP delivery failures.
var NotificationEmailsSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "notification_emails_sent_total",
		Help: "Total number of notification emails successfully sent.",
	},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
