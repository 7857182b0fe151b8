package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campusnotify/pkg/logger"
)

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestEmptyOnZero(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
	}{
		{"nil error", logger.Error(nil)},
		{"zero user", logger.UserID(0)},
		{"zero notification", logger.NotificationID(0)},
		{"empty connection", logger.ConnectionID("")},
		{"empty role", logger.Role("")},
		{"empty request id", logger.RequestID("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.attr.Equal(slog.Attr{}))
		})
	}
}

func TestDomainAttrs(t *testing.T) {
	tests := []struct {
		attr    slog.Attr
		wantKey string
		wantVal any
	}{
		{logger.UserID(7), "user_id", int64(7)},
		{logger.NotificationID(42), "notification_id", int64(42)},
		{logger.NotificationType("system"), "notification_type", "system"},
		{logger.ConnectionID("c1"), "conn_id", "c1"},
		{logger.Room("user:7"), "room", "user:7"},
		{logger.Role("admin"), "role", "admin"},
		{logger.Count(3), "count", int64(3)},
		{logger.Component("gateway"), "component", "gateway"},
		{logger.Event("new_notification"), "event", "new_notification"},
		{logger.Reason("timeout"), "reason", "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.wantKey, func(t *testing.T) {
			assert.Equal(t, tt.wantKey, tt.attr.Key)
			assert.Equal(t, tt.wantVal, tt.attr.Value.Any())
		})
	}
}
