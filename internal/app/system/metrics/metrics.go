// Package metrics exposes Prometheus instrumentation for HTTP traffic and
// the best-effort paths (real-time publishes, side effects, reconciliation)
// whose failures never reach a client and would otherwise go unseen.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studyhub_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	realtimePublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_realtime_publishes_total",
		Help: "Real-time events published, by type and outcome.",
	}, []string{"type", "outcome"})

	realtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "studyhub_realtime_connections",
		Help: "Open real-time websocket connections.",
	})

	sideEffects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_side_effects_total",
		Help: "Best-effort side effects run after a primary write, by name and outcome.",
	}, []string{"name", "outcome"})

	reconcileFixes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_reconcile_fixes_total",
		Help: "Drift corrected by the membership reconciler, by kind.",
	}, []string{"kind"})
)

// Middleware records request counts and latency labelled by chi route
// pattern, so /groups/{id}/messages is one series regardless of id.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePublish counts one real-time publish attempt.
func ObservePublish(eventType string, err error) {
	realtimePublishes.WithLabelValues(eventType, outcome(err)).Inc()
}

// ConnectionOpened / ConnectionClosed track live websocket clients.
func ConnectionOpened() { realtimeConnections.Inc() }
func ConnectionClosed() { realtimeConnections.Dec() }

// ObserveSideEffect counts one completed side effect.
func ObserveSideEffect(name string, err error) {
	sideEffects.WithLabelValues(name, outcome(err)).Inc()
}

// ObserveReconcile adds n corrections of the given kind.
func ObserveReconcile(kind string, n int) {
	if n > 0 {
		reconcileFixes.WithLabelValues(kind).Add(float64(n))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// routePattern is read after routing, when chi has the full pattern.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
