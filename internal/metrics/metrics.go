// Package metrics exposes Prometheus collectors for the plotter web service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomePreview = "preview"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
)

// Archive stages.
const (
	StageBlob    = "blob"
	StageStore   = "store"
	StagePublish = "publish"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	submissionsTotal           *prometheus.CounterVec
	submissionLines            prometheus.Histogram
	archiveOperationsTotal     *prometheus.CounterVec
	rateLimitDelaySeconds      prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plotter_submissions_total",
				Help: "Total number of G-code submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		submissionLines = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plotter_submission_lines",
				Help:    "Number of G-code lines per non-empty submission.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		)

		archiveOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plotter_archive_operations_total",
				Help: "Archive operations, labeled by stage and status.",
			},
			[]string{"stage", "status"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plotter_rate_limit_delay_seconds",
				Help:    "Histogram of time requests spent waiting on the rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSubmission records one submission. lines is ignored unless the outcome is OutcomePreview.
func ObserveSubmission(outcome string, lines int) {
	Init()
	submissionsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomePreview {
		submissionLines.Observe(float64(lines))
	}
}

// ObserveArchive records the result of one archive stage.
func ObserveArchive(stage string, err error) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	archiveOperationsTotal.WithLabelValues(stage, status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	rateLimitDelaySeconds.Observe(duration.Seconds())
}
