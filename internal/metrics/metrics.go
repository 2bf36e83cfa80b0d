// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursefinder_fetch_attempts_total",
			Help: "Fetch attempts, labeled by status class or \"error\" for transport failures.",
		},
		[]string{"status_class"},
	)

	fetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coursefinder_fetch_retries_total",
			Help: "Fetch attempts that were retried.",
		},
	)

	itemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursefinder_items_total",
			Help: "Work items aggregated, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	itemDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursefinder_item_duration_seconds",
			Help:    "Fetch plus parse time per work item, labeled by outcome.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coursefinder_active_workers",
			Help: "Number of workers currently processing an item.",
		},
	)

	rateLimitDelaysSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coursefinder_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatusClass groups an HTTP status code ("2xx", "4xx", ...).
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

// ObserveFetch counts one fetch attempt.
func ObserveFetch(statusClass string) {
	fetchAttemptsTotal.WithLabelValues(statusClass).Inc()
}

// ObserveFetchRetry counts one retried attempt.
func ObserveFetchRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveItem records a finished work item.
func ObserveItem(outcome string, duration time.Duration) {
	itemsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		itemDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaysSeconds.Observe(duration.Seconds())
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursefinder_http_requests_total",
			Help: "Monitoring server requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursefinder_http_request_duration_seconds",
			Help:    "Monitoring server latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "route"},
	)
)

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
