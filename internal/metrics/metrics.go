// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro360_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydro360_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hydro360_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro360_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro360_auth_attempts_total",
			Help: "Login and registration attempts by outcome",
		},
		[]string{"action", "outcome"},
	)

	ReportsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro360_reports_created_total",
			Help: "Reports submitted, by type",
		},
		[]string{"type"},
	)

	ReportStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro360_report_status_changes_total",
			Help: "Report status transitions made by staff, by target status",
		},
		[]string{"status"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro360_uploads_total",
			Help: "Stored report images by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	WeatherRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydro360_weather_requests_total",
			Help: "Upstream weather lookups by outcome",
		},
		[]string{"outcome"},
	)

	WeatherBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hydro360_weather_breaker_state",
			Help: "Weather circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

func RecordAuthAttempt(action string, ok bool) {
	AuthAttempts.WithLabelValues(action, outcome(ok)).Inc()
}

func RecordUpload(backend string, ok bool) {
	UploadsTotal.WithLabelValues(backend, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
