// Package metrics exposes Prometheus collectors for the notifier.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campusnotify"

var (
	// Notifications
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications persisted, by type",
		},
		[]string{"type"},
	)

	BulkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_failures_total",
			Help:      "Targets skipped during bulk notification creation",
		},
	)

	// Realtime gateway
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Authenticated live connections",
		},
	)

	RealtimeOnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_online_users",
			Help:      "Users with at least one live connection",
		},
	)

	RealtimeAuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_auth_rejections_total",
			Help:      "Connections closed during authentication, by reason",
		},
		[]string{"reason"},
	)

	RealtimeEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_sent_total",
			Help:      "Events enqueued to live connections, by event name",
		},
		[]string{"event"},
	)

	RealtimeSlowConsumers = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_slow_consumers_total",
			Help:      "Connections closed because their send buffer was full",
		},
	)

	RealtimeClientMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_client_messages_total",
			Help:      "Client frames received after authentication, by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)
)

// RecordNotificationCreated counts a persisted notification.
func RecordNotificationCreated(notificationType string) {
	NotificationsCreated.WithLabelValues(notificationType).Inc()
}

// RecordAuthRejection counts a gateway authentication failure.
func RecordAuthRejection(reason string) {
	RealtimeAuthRejections.WithLabelValues(reason).Inc()
}

// RecordEventSent counts events enqueued to n connections.
func RecordEventSent(event string, n int) {
	if n > 0 {
		RealtimeEventsSent.WithLabelValues(event).Add(float64(n))
	}
}

// RecordClientMessage counts an inbound client frame.
func RecordClientMessage(event, outcome string) {
	RealtimeClientMessages.WithLabelValues(event, outcome).Inc()
}

// SetPresence updates the presence gauges.
func SetPresence(connections, users int) {
	RealtimeConnections.Set(float64(connections))
	RealtimeOnlineUsers.Set(float64(users))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
