package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/metrics"
)

const (
	outcomeOK        = "ok"
	outcomeThrottled = "throttled"
	outcomeMalformed = "malformed"
	outcomeRejected  = "rejected"
	outcomeIgnored   = "ignored"
)

// handleClientFrame runs on the connection's read goroutine.
func (g *Gateway) handleClientFrame(ctx context.Context, c *conn, frame []byte) {
	if !c.fsm.Is(StateAuthenticated) {
		g.log.DebugContext(ctx, "dropping frame from unauthenticated connection",
			logger.ConnectionID(c.id), slog.String("state", string(c.fsm.Current())))
		return
	}
	env, err := Decode(frame)
	if err != nil {
		metrics.RecordClientMessage("unknown", outcomeMalformed)
		g.log.DebugContext(ctx, "dropping client frame", logger.ConnectionID(c.id), logger.Error(err))
		return
	}
	if !g.allowFrame(ctx, c) {
		metrics.RecordClientMessage(string(env.Event), outcomeThrottled)
		g.log.WarnContext(ctx, "client frame throttled", logger.ConnectionID(c.id), logger.UserID(c.userID), logger.Event(string(env.Event)))
		return
	}

	var handleErr error
	switch env.Event {
	case EventJoinRoom:
		handleErr = g.handleJoinRoom(c, env)
	case EventLeaveRoom:
		handleErr = g.handleLeaveRoom(c, env)
	case EventMarkNotificationRead:
		handleErr = g.handleMarkRead(ctx, c, env)
	case EventGetOnlineStatus:
		handleErr = g.handleOnlineStatus(c, env)
	default:
		metrics.RecordClientMessage(string(env.Event), outcomeIgnored)
		return
	}

	if handleErr != nil {
		metrics.RecordClientMessage(string(env.Event), outcomeRejected)
		g.log.DebugContext(ctx, "client frame rejected",
			logger.ConnectionID(c.id), logger.Event(string(env.Event)), logger.Error(handleErr))
		return
	}
	metrics.RecordClientMessage(string(env.Event), outcomeOK)
}

// allowFrame fails open when the limiter store is unavailable.
func (g *Gateway) allowFrame(ctx context.Context, c *conn) bool {
	if g.limiter == nil {
		return true
	}
	res, err := g.limiter.Allow(ctx, c.id)
	if err != nil {
		g.log.WarnContext(ctx, "message limiter unavailable", logger.Error(err))
		return true
	}
	return res.Allowed()
}

func validateRoom(room string) error {
	switch {
	case room == "":
		return fmt.Errorf("%w: empty name", ErrInvalidRoom)
	case len(room) > maxRoomLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidRoom, maxRoomLength)
	case strings.HasPrefix(room, userGroupPrefix):
		return fmt.Errorf("%w: %q is reserved", ErrInvalidRoom, room)
	}
	return nil
}

func (g *Gateway) handleJoinRoom(c *conn, env Envelope) error {
	p, err := DecodeData[RoomPayload](env)
	if err != nil {
		return err
	}
	p.Room = strings.TrimSpace(p.Room)
	if err := validateRoom(p.Room); err != nil {
		return err
	}

	g.mu.Lock()
	if _, ok := g.conns[c.id]; ok {
		g.joinLocked(c, p.Room)
	}
	g.mu.Unlock()

	return g.reply(c, EventJoinedRoom, RoomPayload{Room: p.Room})
}

func (g *Gateway) handleLeaveRoom(c *conn, env Envelope) error {
	p, err := DecodeData[RoomPayload](env)
	if err != nil {
		return err
	}
	p.Room = strings.TrimSpace(p.Room)
	if err := validateRoom(p.Room); err != nil {
		return err
	}

	g.mu.Lock()
	g.leaveLocked(c, p.Room)
	g.mu.Unlock()

	return g.reply(c, EventLeftRoom, RoomPayload{Room: p.Room})
}

// handleMarkRead echoes an optimistic read to the user's other devices. The
// stored read state changes only through the notification service.
func (g *Gateway) handleMarkRead(ctx context.Context, c *conn, env Envelope) error {
	p, err := DecodeData[NotificationRef](env)
	if err != nil {
		return err
	}
	if p.NotificationID <= 0 {
		return fmt.Errorf("%w: notificationId must be positive", ErrMalformedFrame)
	}
	g.SendToUser(ctx, c.userID, EventNotificationRead, p)
	return nil
}

func (g *Gateway) handleOnlineStatus(c *conn, env Envelope) error {
	p, err := DecodeData[OnlineStatusRequest](env)
	if err != nil {
		return err
	}
	if len(p.UserIDs) > maxStatusQueryIDs {
		return fmt.Errorf("%w: at most %d user ids per query", ErrMalformedFrame, maxStatusQueryIDs)
	}

	statuses := make([]OnlineStatus, 0, len(p.UserIDs))
	for _, id := range p.UserIDs {
		statuses = append(statuses, OnlineStatus{UserID: id, Online: g.presence.IsOnline(id)})
	}
	return g.reply(c, EventOnlineStatus, statuses)
}

func (g *Gateway) reply(c *conn, event Event, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	if c.enqueue(frame) {
		metrics.RecordEventSent(string(event), 1)
	}
	return nil
}
