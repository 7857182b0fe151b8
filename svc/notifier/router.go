package notifier

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/campusnotify/pkg/clientip"
	"github.com/dmitrymomot/campusnotify/pkg/environment"
	"github.com/dmitrymomot/campusnotify/pkg/httpserver"
	"github.com/dmitrymomot/campusnotify/pkg/jwt"
	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/metrics"
	"github.com/dmitrymomot/campusnotify/pkg/notifications"
	"github.com/dmitrymomot/campusnotify/pkg/ratelimiter"
	"github.com/dmitrymomot/campusnotify/pkg/requestid"
	"github.com/dmitrymomot/campusnotify/pkg/users"
)

// PresenceView is the read-only presence surface exposed to admins.
type PresenceView interface {
	OnlineCount() int
	OnlineUserIDs() []int64
}

// Realtime is the live endpoint mounted next to the REST API.
type Realtime interface {
	http.Handler
	PresenceView
	Path() string
}

// Deps are the collaborators the router needs. Limiters, Checks and
// Environment are optional.
type Deps struct {
	Environment  environment.Environment
	Service      *notifications.Service
	Verifier     jwt.Verifier
	Realtime     Realtime
	Limiters     Limiters
	TrustProxy   bool
	Checks       map[string]httpserver.Check
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// NewRouter composes the REST API, the realtime endpoint and the health endpoints.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("notifier"))
	if d.ReadyTimeout <= 0 {
		d.ReadyTimeout = 2 * time.Second
	}
	h := &handlers{svc: d.Service, presence: d.Realtime, log: log}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	if d.Environment != "" {
		r.Use(environment.Middleware(d.Environment))
	}
	r.Use(clientip.Middleware(d.TrustProxy))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.Liveness())
	r.Get("/readyz", httpserver.Readiness(log, d.ReadyTimeout, d.Checks))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if d.Limiters.Handshake != nil {
		r.With(ratelimiter.Middleware(d.Limiters.Handshake, ipKey, func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, log, ErrTooManyRequests)
		}, log)).Handle(d.Realtime.Path(), d.Realtime)
	} else {
		r.Handle(d.Realtime.Path(), d.Realtime)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(metrics.Middleware)
		r.Use(jwt.Middleware(d.Verifier, func(w http.ResponseWriter, r *http.Request, err error) {
			respondError(w, r, log, err)
		}))
		if d.Limiters.REST != nil {
			r.Use(ratelimiter.Middleware(d.Limiters.REST, userKey, func(w http.ResponseWriter, r *http.Request) {
				respondError(w, r, log, ErrTooManyRequests)
			}, log))
		}

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.list)
			r.Get("/unread-count", h.unreadCount)
			r.Get("/stats", h.stats)
			r.Patch("/mark-all-read", h.markAllRead)
			r.Delete("/clear-read", h.clearRead)
			r.Get("/{id}", h.get)
			r.Patch("/{id}/read", h.markRead)
			r.Delete("/{id}", h.remove)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(users.RoleAdmin, log))
				r.Post("/", h.create)
				r.Post("/system", h.createSystem)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(users.RoleAdmin, log))
			r.Post("/announcements", h.announce)
			r.Get("/presence", h.onlinePresence)
		})
	})

	return r
}

func requireRole(role users.Role, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := jwt.CredentialFromContext(r.Context())
			if !ok || users.Role(c.Role) != role {
				respondError(w, r, log, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userKey(r *http.Request) string {
	c, ok := jwt.CredentialFromContext(r.Context())
	if !ok {
		return ""
	}
	return "rest:" + strconv.FormatInt(c.UserID, 10)
}

func ipKey(r *http.Request) string {
	if ip := clientip.FromContext(r.Context()); ip != "" {
		return "ws:" + ip
	}
	return ""
}
