// Package metrics provides Prometheus instrumentation for the market engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MarketsCreated counts markets opened since process start.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sayso_markets_created_total",
		Help: "Total number of markets created",
	})

	// SubmissionsTotal counts accepted prediction submissions.
	SubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sayso_submissions_total",
		Help: "Total number of accepted submissions",
	})

	// StakedVolume accumulates the value staked across all submissions.
	StakedVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sayso_staked_volume_total",
		Help: "Cumulative staked value across all markets",
	})

	// ResolutionsTotal counts markets resolved against an actual text.
	ResolutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sayso_resolutions_total",
		Help: "Total number of resolved markets",
	})

	// PayoutsClaimed counts winner payouts handed out.
	PayoutsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sayso_payouts_claimed_total",
		Help: "Total number of claimed payouts",
	})

	// RefundsTotal counts refunds, partitioned by kind (single, emergency).
	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sayso_refunds_total",
		Help: "Total number of refunded submissions",
	}, []string{"kind"})

	// FeesWithdrawn counts fee withdrawal operations.
	FeesWithdrawn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sayso_fees_withdrawn_total",
		Help: "Total number of fee withdrawals",
	})

	// RejectedOperations counts operations refused by engine rules.
	RejectedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sayso_rejected_operations_total",
		Help: "Operations rejected by engine rules",
	}, []string{"op", "reason"})

	// ActiveMarkets tracks the number of markets not yet settled.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sayso_active_markets",
		Help: "Number of markets that have not reached a terminal phase",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sayso_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sayso_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sayso_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
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
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
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

// Hijack forwards to the underlying writer; the WebSocket upgrade needs it.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return hj.Hijack()
}
