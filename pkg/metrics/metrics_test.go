package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campusnotify/pkg/metrics"
)

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(metrics.NotificationsCreated.WithLabelValues("system"))
	metrics.RecordNotificationCreated("system")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotificationsCreated.WithLabelValues("system")))

	before = testutil.ToFloat64(metrics.RealtimeEventsSent.WithLabelValues("grade_update"))
	metrics.RecordEventSent("grade_update", 3)
	metrics.RecordEventSent("grade_update", 0)
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.RealtimeEventsSent.WithLabelValues("grade_update")))

	metrics.SetPresence(5, 2)
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.RealtimeConnections))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RealtimeOnlineUsers))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/api/notifications/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/notifications/{id}", "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications/17", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestHandlerExposesCollectors(t *testing.T) {
	metrics.RecordAuthRejection("expired")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "campusnotify_realtime_auth_rejections_total")
}
