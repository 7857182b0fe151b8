package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/statemachine"
)

// conn is one live WebSocket connection. Only writePump writes data frames;
// control frames may be written from any goroutine.
type conn struct {
	id     string
	userID int64
	ws     *websocket.Conn
	fsm    *statemachine.Machine[State, trigger]

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// rooms is guarded by Gateway.mu.
	rooms map[string]struct{}
}

func newConn(id string, ws *websocket.Conn, buffer int) *conn {
	return &conn{
		id:    id,
		ws:    ws,
		fsm:   lifecycle.New(),
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
}

// enqueue never blocks. It returns false unless the connection is
// authenticated and has room in its buffer.
func (c *conn) enqueue(frame []byte) bool {
	if !c.fsm.Is(StateAuthenticated) {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// close tears down the socket. The read loop fails on its next read.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// closeWith sends a close frame before tearing down the socket.
func (c *conn) closeWith(code int, reason string, wait time.Duration) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait))
	c.close()
}

func (g *Gateway) writePump(c *conn) {
	ticker := time.NewTicker(g.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				g.log.Debug("write failed", logger.ConnectionID(c.id), logger.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.cfg.WriteWait)); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) readPump(ctx context.Context, c *conn) {
	c.ws.SetReadLimit(g.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) && !c.closed() {
				g.log.Debug("connection dropped", logger.ConnectionID(c.id), logger.UserID(c.userID), logger.Error(err))
			}
			return
		}
		g.handleClientFrame(ctx, c, frame)
	}
}
