// Package metrics exposes Prometheus collectors for the todo service.
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

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	todoOperationsTotal        *prometheus.CounterVec
	streamActive               *prometheus.GaugeVec
	streamFramesTotal          *prometheus.CounterVec
	streamSessionsTotal        *prometheus.CounterVec
	streamSessionSeconds       *prometheus.HistogramVec
	streamRejectedTotal        *prometheus.CounterVec

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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		)

		todoOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todo_operations_total",
				Help: "Todo store operations, labeled by operation and result.",
			},
			[]string{"op", "result"},
		)

		streamActive = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "progress_streams_active",
				Help: "Number of progress streams currently open, labeled by transport.",
			},
			[]string{"transport"},
		)

		streamFramesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_stream_frames_total",
				Help: "Frames written to progress streams, labeled by event type.",
			},
			[]string{"event"},
		)

		streamSessionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_stream_sessions_total",
				Help: "Finished progress stream sessions, labeled by transport and outcome.",
			},
			[]string{"transport", "outcome"},
		)

		streamSessionSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "progress_stream_session_seconds",
				Help:    "Wall time of progress stream sessions, labeled by outcome.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"outcome"},
		)

		streamRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_streams_rejected_total",
				Help: "Progress stream requests refused by the admission limiter, labeled by transport.",
			},
			[]string{"transport"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveTodoOperation counts a todo store operation. A nil err counts as "ok".
func ObserveTodoOperation(op string, err error) {
	Init()
	result := "ok"
	if err != nil {
		result = "error"
	}
	todoOperationsTotal.WithLabelValues(op, result).Inc()
}

// IncActiveStreams increments the open stream gauge for transport.
func IncActiveStreams(transport string) {
	Init()
	streamActive.WithLabelValues(transport).Inc()
}

// DecActiveStreams decrements the open stream gauge for transport.
func DecActiveStreams(transport string) {
	Init()
	streamActive.WithLabelValues(transport).Dec()
}

// ObserveFrame counts one frame written with the given event type.
func ObserveFrame(event string) {
	Init()
	streamFramesTotal.WithLabelValues(event).Inc()
}

// ObserveStreamSession records the outcome and duration of a finished session.
func ObserveStreamSession(transport, outcome string, duration time.Duration) {
	Init()
	streamSessionsTotal.WithLabelValues(transport, outcome).Inc()
	streamSessionSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveStreamRejected counts a stream request refused by rate limiting.
func ObserveStreamRejected(transport string) {
	Init()
	streamRejectedTotal.WithLabelValues(transport).Inc()
}
