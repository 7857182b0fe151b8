package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/campusnotify/pkg/jwt"
	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/metrics"
	"github.com/dmitrymomot/campusnotify/pkg/ratelimiter"
	"github.com/dmitrymomot/campusnotify/pkg/users"
)

const (
	maxRoomLength      = 128
	maxStatusQueryIDs  = 200
	connectedMessage   = "Connected to notifications"
	announcementType   = "system_announcement"
	rejectCloseMessage = "authentication failed"
)

// Presence tracks which users have live connections. The gateway is its only writer.
type Presence interface {
	Register(userID int64, connID string)
	Unregister(userID int64, connID string)
	IsOnline(userID int64) bool
	Connections(userID int64) []string
	OnlineUserIDs() []int64
	OnlineCount() int
	ConnectionCount() int
}

// TokenVerifier resolves a bearer token into a credential.
type TokenVerifier interface {
	Verify(token string) (jwt.Credential, error)
}

// UserFinder confirms the credential subject is an active user.
type UserFinder interface {
	FindActiveUser(ctx context.Context, id int64) (users.User, error)
}

// Gateway accepts WebSocket connections, authenticates them and pushes
// events to connected users. Push methods never fail: an offline user is a
// silent no-op.
type Gateway struct {
	cfg      Config
	presence Presence
	verifier TokenVerifier
	users    UserFinder
	upgrader websocket.Upgrader
	log      *slog.Logger
	now      func() time.Time

	limiter     *ratelimiter.Bucket
	ownedLimits *ratelimiter.MemoryStore

	mu     sync.RWMutex
	conns  map[string]*conn
	groups map[string]map[string]*conn
	closed bool
	active sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithMessageLimiter throttles client frames per connection with b instead of
// the in-memory bucket built from Config.
func WithMessageLimiter(b *ratelimiter.Bucket) Option {
	return func(g *Gateway) { g.limiter = b }
}

// WithClock overrides the timestamp source of convenience pushes.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New validates cfg and returns a gateway ready to be mounted as an http.Handler.
func New(cfg Config, presence Presence, verifier TokenVerifier, finder UserFinder, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Gateway{
		cfg:      cfg,
		presence: presence,
		verifier: verifier,
		users:    finder,
		log:      slog.Default(),
		now:      time.Now,
		conns:    make(map[string]*conn),
		groups:   make(map[string]map[string]*conn),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.Component("realtime"))
	g.upgrader = websocket.Upgrader{
		HandshakeTimeout: cfg.AuthTimeout,
		CheckOrigin:      cfg.checkOrigin,
	}

	if g.limiter == nil && cfg.MessageBurst > 0 {
		g.ownedLimits = ratelimiter.NewMemoryStore(time.Minute)
		b, err := ratelimiter.NewBucket(g.ownedLimits, ratelimiter.Config{
			Capacity:       cfg.MessageBurst,
			RefillRate:     cfg.MessageRate,
			RefillInterval: time.Second,
		})
		if err != nil {
			g.ownedLimits.Close()
			return nil, fmt.Errorf("realtime: message limiter: %w", err)
		}
		g.limiter = b
	}
	return g, nil
}

// Path is the mount point of the gateway.
func (g *Gateway) Path() string { return g.cfg.Path }

// ServeHTTP upgrades the request and runs the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		http.Error(w, ErrGatewayClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	g.active.Add(1)
	g.mu.Unlock()
	defer g.active.Done()

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.DebugContext(r.Context(), "upgrade failed", logger.Error(err))
		return
	}

	ctx := context.WithoutCancel(r.Context())
	c := newConn(uuid.NewString(), ws, g.cfg.SendBuffer)
	if !g.fire(ctx, c, triggerOpen) {
		c.close()
		return
	}

	userID, err := g.authenticate(ctx, r, c)
	if err != nil {
		g.reject(ctx, c, err)
		return
	}
	c.userID = userID
	if !g.fire(ctx, c, triggerAccept) {
		c.close()
		return
	}

	frame, err := Encode(EventConnected, ConnectedPayload{UserID: userID, Message: connectedMessage})
	if err == nil {
		c.enqueue(frame)
	}
	if !g.attach(c) {
		c.closeWith(websocket.CloseGoingAway, ErrGatewayClosed.Error(), g.cfg.WriteWait)
		g.finish(ctx, c)
		return
	}
	g.log.InfoContext(ctx, "connection authenticated", logger.ConnectionID(c.id), logger.UserID(userID))

	go g.writePump(c)
	g.readPump(ctx, c)

	g.detach(ctx, c)
	g.log.InfoContext(ctx, "connection closed", logger.ConnectionID(c.id), logger.UserID(userID))
}

// authenticate resolves the connection's user within AuthTimeout. The token
// comes from the Authorization header, the token query parameter, or an
// authenticate frame sent first.
func (g *Gateway) authenticate(ctx context.Context, r *http.Request, c *conn) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.AuthTimeout)
	defer cancel()

	token, ok := jwt.BearerToken(r)
	if !ok {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		var err error
		if token, err = g.awaitAuthFrame(c); err != nil {
			return 0, err
		}
	}

	cred, err := g.verifier.Verify(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrAuthRejected, err)
	}
	if _, err := g.users.FindActiveUser(ctx, cred.UserID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return 0, fmt.Errorf("%w: %w", ErrAuthRejected, ErrInactiveUser)
		}
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %w", ErrAuthRejected, ErrAuthTimeout)
		}
		return 0, fmt.Errorf("%w: resolving user %d: %w", ErrAuthRejected, cred.UserID, err)
	}
	return cred.UserID, nil
}

func (g *Gateway) awaitAuthFrame(c *conn) (string, error) {
	c.ws.SetReadLimit(g.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(g.cfg.AuthTimeout))

	_, frame, err := c.ws.ReadMessage()
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("%w: %w", ErrAuthRejected, ErrAuthTimeout)
		}
		return "", fmt.Errorf("%w: %w", ErrAuthRejected, ErrMissingCredential)
	}

	env, err := Decode(frame)
	if err != nil || env.Event != EventAuthenticate {
		return "", fmt.Errorf("%w: %w", ErrAuthRejected, ErrMissingCredential)
	}
	p, err := DecodeData[AuthenticatePayload](env)
	if err != nil || strings.TrimSpace(p.Token) == "" {
		return "", fmt.Errorf("%w: %w", ErrAuthRejected, ErrMissingCredential)
	}
	return strings.TrimSpace(p.Token), nil
}

func (g *Gateway) reject(ctx context.Context, c *conn, err error) {
	reason := rejectionReason(err)
	metrics.RecordAuthRejection(reason)
	g.log.InfoContext(ctx, "connection rejected", logger.ConnectionID(c.id), logger.Reason(reason), logger.Error(err))

	c.closeWith(websocket.ClosePolicyViolation, rejectCloseMessage, g.cfg.WriteWait)
	g.fire(ctx, c, triggerReject)
}

// fire applies t to the connection's lifecycle and logs a refused transition.
func (g *Gateway) fire(ctx context.Context, c *conn, t trigger) bool {
	if err := c.fsm.Fire(ctx, t, nil); err != nil {
		g.log.WarnContext(ctx, "connection state transition failed",
			logger.ConnectionID(c.id), logger.Event(string(t)), logger.Error(err))
		return false
	}
	return true
}

// finish closes the socket and moves an authenticated connection to
// disconnected. Closing twice is not an error.
func (g *Gateway) finish(ctx context.Context, c *conn) {
	c.close()
	if err := c.fsm.Fire(ctx, triggerClose, nil); err != nil && !c.fsm.Is(StateDisconnected) {
		g.log.WarnContext(ctx, "connection state transition failed",
			logger.ConnectionID(c.id), logger.Event(string(triggerClose)), logger.Error(err))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrAuthTimeout):
		return "timeout"
	case errors.Is(err, ErrMissingCredential), errors.Is(err, jwt.ErrMissingToken):
		return "missing_credential"
	case errors.Is(err, jwt.ErrExpiredToken):
		return "expired_token"
	case errors.Is(err, ErrInactiveUser):
		return "inactive_user"
	case errors.Is(err, jwt.ErrInvalidToken), errors.Is(err, jwt.ErrInvalidSignature),
		errors.Is(err, jwt.ErrInvalidSubject), errors.Is(err, jwt.ErrUnexpectedSigningMethod):
		return "invalid_token"
	default:
		return "error"
	}
}

// attach registers an authenticated connection. It fails once the gateway is closed.
func (g *Gateway) attach(c *conn) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.conns[c.id] = c
	g.joinLocked(c, UserGroup(c.userID))
	g.presence.Register(c.userID, c.id)
	g.mu.Unlock()

	g.reportPresence()
	return true
}

// detach finishes the connection before removing it, so a concurrent push
// never enqueues to it.
func (g *Gateway) detach(ctx context.Context, c *conn) {
	g.finish(ctx, c)

	g.mu.Lock()
	if _, ok := g.conns[c.id]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.conns, c.id)
	for room := range c.rooms {
		g.leaveLocked(c, room)
	}
	g.presence.Unregister(c.userID, c.id)
	g.mu.Unlock()

	if g.ownedLimits != nil {
		_ = g.limiter.Reset(context.Background(), c.id)
	}
	g.reportPresence()
}

func (g *Gateway) reportPresence() {
	metrics.SetPresence(g.presence.ConnectionCount(), g.presence.OnlineCount())
}

func (g *Gateway) joinLocked(c *conn, room string) {
	members, ok := g.groups[room]
	if !ok {
		members = make(map[string]*conn)
		g.groups[room] = members
	}
	members[c.id] = c
	c.rooms[room] = struct{}{}
}

func (g *Gateway) leaveLocked(c *conn, room string) {
	delete(c.rooms, room)
	members, ok := g.groups[room]
	if !ok {
		return
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(g.groups, room)
	}
}

// SendToUser pushes to every connection of userID.
func (g *Gateway) SendToUser(ctx context.Context, userID int64, event Event, payload any) {
	g.SendToUsers(ctx, []int64{userID}, event, payload)
}

// SendToUsers pushes one event to every connection of each user.
func (g *Gateway) SendToUsers(ctx context.Context, userIDs []int64, event Event, payload any) {
	frame, ok := g.encode(ctx, event, payload)
	if !ok {
		return
	}

	var targets []*conn
	g.mu.RLock()
	for _, id := range userIDs {
		for _, connID := range g.presence.Connections(id) {
			if c, ok := g.conns[connID]; ok {
				targets = append(targets, c)
			}
		}
	}
	g.mu.RUnlock()

	g.deliver(ctx, targets, event, frame)
}

// SendToGroup pushes to every connection that joined room.
func (g *Gateway) SendToGroup(ctx context.Context, room string, event Event, payload any) {
	frame, ok := g.encode(ctx, event, payload)
	if !ok {
		return
	}

	g.mu.RLock()
	targets := make([]*conn, 0, len(g.groups[room]))
	for _, c := range g.groups[room] {
		targets = append(targets, c)
	}
	g.mu.RUnlock()

	g.deliver(ctx, targets, event, frame)
}

// BroadcastAll pushes to every authenticated connection.
func (g *Gateway) BroadcastAll(ctx context.Context, event Event, payload any) {
	frame, ok := g.encode(ctx, event, payload)
	if !ok {
		return
	}

	g.mu.RLock()
	targets := make([]*conn, 0, len(g.conns))
	for _, c := range g.conns {
		targets = append(targets, c)
	}
	g.mu.RUnlock()

	g.deliver(ctx, targets, event, frame)
}

// SendEnrollmentUpdate pushes an enrollment_update event to userID.
func (g *Gateway) SendEnrollmentUpdate(ctx context.Context, userID, courseID int64, status string) {
	g.SendToUser(ctx, userID, EventEnrollmentUpdate, EnrollmentUpdatePayload{
		CourseID:  courseID,
		Status:    status,
		Timestamp: g.now().UTC(),
	})
}

// SendGradeUpdate pushes a grade_update event to userID.
func (g *Gateway) SendGradeUpdate(ctx context.Context, userID, assignmentID int64, grade float64) {
	g.SendToUser(ctx, userID, EventGradeUpdate, GradeUpdatePayload{
		AssignmentID: assignmentID,
		Grade:        grade,
		Timestamp:    g.now().UTC(),
	})
}

// SendSystemAnnouncement targets userIDs, or every connection when userIDs is empty.
func (g *Gateway) SendSystemAnnouncement(ctx context.Context, title, message string, userIDs []int64) {
	p := SystemAnnouncementPayload{
		Title:     title,
		Message:   message,
		Timestamp: g.now().UTC(),
		Type:      announcementType,
	}
	if len(userIDs) > 0 {
		g.SendToUsers(ctx, userIDs, EventSystemAnnouncement, p)
		return
	}
	g.BroadcastAll(ctx, EventSystemAnnouncement, p)
}

func (g *Gateway) encode(ctx context.Context, event Event, payload any) ([]byte, bool) {
	frame, err := Encode(event, payload)
	if err != nil {
		g.log.ErrorContext(ctx, "encoding push", logger.Event(string(event)), logger.Error(err))
		return nil, false
	}
	return frame, true
}

func (g *Gateway) deliver(ctx context.Context, targets []*conn, event Event, frame []byte) {
	sent := 0
	for _, c := range targets {
		if !c.fsm.Is(StateAuthenticated) {
			continue
		}
		if c.enqueue(frame) {
			sent++
			continue
		}
		if !c.closed() {
			metrics.RealtimeSlowConsumers.Inc()
			g.log.WarnContext(ctx, "closing slow connection",
				logger.ConnectionID(c.id), logger.UserID(c.userID), logger.Event(string(event)))
			g.finish(ctx, c)
		}
	}
	if sent > 0 {
		metrics.RecordEventSent(string(event), sent)
		g.log.DebugContext(ctx, "event pushed", logger.Event(string(event)), logger.Count(sent))
	}
}

// IsOnline reports whether userID has a live connection.
func (g *Gateway) IsOnline(userID int64) bool { return g.presence.IsOnline(userID) }

func (g *Gateway) OnlineUserIDs() []int64 { return g.presence.OnlineUserIDs() }

func (g *Gateway) OnlineCount() int { return g.presence.OnlineCount() }

// Shutdown refuses new connections, closes live ones with a going-away frame
// and waits for their handlers to return or ctx to end.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	live := make([]*conn, 0, len(g.conns))
	for _, c := range g.conns {
		live = append(live, c)
	}
	g.mu.Unlock()

	for _, c := range live {
		c.closeWith(websocket.CloseGoingAway, "server shutting down", g.cfg.WriteWait)
	}

	done := make(chan struct{})
	go func() {
		g.active.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if g.ownedLimits != nil {
		g.ownedLimits.Close()
	}
	return err
}
