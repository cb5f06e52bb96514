// Package telemetry exposes Prometheus collectors for the auditor service.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditsTotal                *prometheus.CounterVec
	auditDurationSeconds       *prometheus.HistogramVec
	tasksScheduledTotal        prometheus.Counter
	recordsStoredTotal         prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_audits_total",
				Help: "Total number of single-URL audits, labeled by backend, mode and status.",
			},
			[]string{"backend", "mode", "status"},
		)

		auditDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auditor_audit_duration_seconds",
				Help:    "Histogram of single-URL audit latencies, labeled by backend and mode.",
				Buckets: []float64{1, 2.5, 5, 10, 20, 45, 90},
			},
			[]string{"backend", "mode"},
		)

		tasksScheduledTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auditor_tasks_scheduled_total",
				Help: "Total number of chunk tasks created on the remote queue.",
			},
		)

		recordsStoredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auditor_records_stored_total",
				Help: "Total number of formatted records written to the result store.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveAudit records one audit attempt.
func ObserveAudit(backend, mode string, err error, duration time.Duration) {
	if auditsTotal == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	auditsTotal.WithLabelValues(backend, mode, status).Inc()
	auditDurationSeconds.WithLabelValues(backend, mode).Observe(duration.Seconds())
}

// IncTasksScheduled counts created chunk tasks.
func IncTasksScheduled(n int) {
	if tasksScheduledTotal == nil {
		return
	}
	tasksScheduledTotal.Add(float64(n))
}

// IncRecordsStored counts stored records.
func IncRecordsStored(n int) {
	if recordsStoredTotal == nil {
		return
	}
	recordsStoredTotal.Add(float64(n))
}

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
