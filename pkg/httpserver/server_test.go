package httpserver_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campusnotify/pkg/httpserver"
	"github.com/dmitrymomot/campusnotify/pkg/logger"
)

func TestServeAndShutdown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hookCalled := make(chan struct{})
	srv := httpserver.New(httpserver.Config{ShutdownTimeout: time.Second},
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) }),
		httpserver.WithLogger(logger.Discard()),
		httpserver.WithShutdownHook(func(context.Context) error {
			close(hookCalled)
			return nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body) == "pong"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	select {
	case <-hookCalled:
	default:
		t.Fatal("shutdown hook not called")
	}
}

func TestShutdownHookErrors(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	boom := errors.New("gateway stuck")
	srv := httpserver.New(httpserver.Config{}, http.NotFoundHandler(),
		httpserver.WithLogger(logger.Discard()),
		httpserver.WithShutdownHook(func(context.Context) error { return boom }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = srv.Serve(ctx, ln)
	assert.ErrorIs(t, err, httpserver.ErrShutdown)
	assert.ErrorIs(t, err, boom)
}

func TestRunFailsOnBusyAddress(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := httpserver.New(httpserver.Config{Addr: ln.Addr().String()}, http.NotFoundHandler(),
		httpserver.WithLogger(logger.Discard()))
	assert.ErrorIs(t, srv.Run(context.Background()), httpserver.ErrStart)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpserver.Liveness()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks map[string]httpserver.Check
		status int
		body   string
	}{
		{"all ok", map[string]httpserver.Check{"storage": ok}, http.StatusOK, `{"status":"ready","checks":{"storage":"ok"}}`},
		{"one failing", map[string]httpserver.Check{"storage": ok, "redis": down}, http.StatusServiceUnavailable,
			`{"status":"not_ready","checks":{"storage":"ok","redis":"failed"}}`},
		{"no checks", nil, http.StatusOK, `{"status":"ready","checks":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			httpserver.Readiness(logger.Discard(), time.Second, tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}
