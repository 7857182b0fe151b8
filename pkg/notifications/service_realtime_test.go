package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campusnotify/pkg/jwt"
	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/notifications"
	"github.com/dmitrymomot/campusnotify/pkg/presence"
	"github.com/dmitrymomot/campusnotify/pkg/realtime"
)

// liveService wires a Service to a running gateway and returns a dialer for
// authenticated sockets.
func liveService(t *testing.T) (*notifications.Service, func(userID int64) *websocket.Conn) {
	t.Helper()

	dir := directory()
	tokens, err := jwt.New("service-realtime-secret")
	require.NoError(t, err)

	gw, err := realtime.New(realtime.DefaultConfig(), presence.NewRegistry(), tokens, dir,
		realtime.WithLogger(logger.Discard()))
	require.NoError(t, err)
	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
		srv.Close()
	})

	store := notifications.NewStore(notifications.NewMemoryStorage(), dir)
	svc := notifications.NewService(store, dir, gw, notifications.WithLogger(logger.Discard()))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + realtime.DefaultConfig().Path
	dial := func(userID int64) *websocket.Conn {
		t.Helper()
		tok, err := tokens.Issue(userID, "", time.Hour)
		require.NoError(t, err)

		ws, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer " + tok}})
		require.NoError(t, err)
		t.Cleanup(func() { _ = ws.Close() })

		// The connected frame is written only after the gateway registered the socket.
		require.Equal(t, realtime.EventConnected, nextEvent(t, ws).Event)
		return ws
	}
	return svc, dial
}

func nextEvent(t *testing.T, ws *websocket.Conn) realtime.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)

	var env realtime.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestServicePushesToEveryDevice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, dial := liveService(t)

	laptop := dial(student)
	phone := dial(student)
	other := dial(lecturer)

	n, err := svc.Create(ctx, notifications.CreateRequest{
		UserID:  student,
		Type:    notifications.TypeEnrollmentApproved,
		Title:   "Enrollment Approved",
		Message: "You are in",
	})
	require.NoError(t, err)

	for _, ws := range []*websocket.Conn{laptop, phone} {
		env := nextEvent(t, ws)
		require.Equal(t, realtime.EventNewNotification, env.Event)
		got, err := realtime.DecodeData[notifications.Notification](env)
		require.NoError(t, err)
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, student, got.UserID)
		assert.False(t, got.Read)
	}

	_, err = svc.MarkAsRead(ctx, n.ID, student)
	require.NoError(t, err)

	for _, ws := range []*websocket.Conn{laptop, phone} {
		env := nextEvent(t, ws)
		require.Equal(t, realtime.EventNotificationRead, env.Event)
		ref, err := realtime.DecodeData[realtime.NotificationRef](env)
		require.NoError(t, err)
		assert.Equal(t, n.ID, ref.NotificationID)
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err = other.ReadMessage()
	require.Error(t, err, "another user's socket must not see the pushes")
}
