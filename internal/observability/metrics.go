package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	gradingRunsTotal    *prometheus.CounterVec
	gradingDuration     *prometheus.HistogramVec
	eventPublishFailure *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the API and the grading pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebot_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradebot_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebot_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebot_grading_runs_total",
			Help: "Grading runs by aggregation method, mode and outcome.",
		}, []string{"method", "mode", "status"})

		gradingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradebot_grading_duration_seconds",
			Help:    "Wall time of a grading run including every provider call.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"method", "mode"})

		eventPublishFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebot_event_publish_failures_total",
			Help: "Grading events that could not be published.",
		}, []string{"transport"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, httpErrorsTotal, gradingRunsTotal, gradingDuration, eventPublishFailure)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GradingRuns counts finished or failed grading runs.
func GradingRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingRunsTotal
}

// GradingDuration observes grading run latency.
func GradingDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingDuration
}

// EventPublishFailures counts failed grading.completed publishes per transport.
func EventPublishFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return eventPublishFailure
}
