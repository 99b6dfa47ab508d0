// Package metrics provides Prometheus instrumentation for the lending pool.
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
	// OperationsTotal counts committed pool operations, partitioned by kind.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lend_operations_total",
		Help: "Total number of committed pool operations",
	}, []string{"kind"})

	// OperationLatency tracks pool operation latency.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lend_operation_latency_seconds",
		Help:    "Pool operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// ActiveReserves tracks the number of initialized reserves.
	ActiveReserves = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lend_active_reserves",
		Help: "Number of initialized reserves",
	})

	// UtilizationBps tracks per-reserve utilization in basis points.
	UtilizationBps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lend_reserve_utilization_bps",
		Help: "Reserve utilization in basis points",
	}, []string{"asset"})

	// LiquidationsTotal counts executed liquidation calls.
	LiquidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lend_liquidations_total",
		Help: "Total number of executed liquidations",
	})

	// FlashLoansTotal counts flash loans by outcome.
	FlashLoansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lend_flash_loans_total",
		Help: "Total number of flash loans",
	}, []string{"outcome"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lend_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lend_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lend_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// RejectionsTotal counts operations rejected by risk checks.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lend_risk_rejections_total",
		Help: "Operations rejected by risk checks",
	}, []string{"reason"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
