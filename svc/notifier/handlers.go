package notifier

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/campusnotify/pkg/jwt"
	"github.com/dmitrymomot/campusnotify/pkg/notifications"
)

const maxBodyBytes = 64 << 10

type handlers struct {
	svc      *notifications.Service
	presence PresenceView
	log      *slog.Logger
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	q, err := parseListQuery(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	page, err := h.svc.List(r.Context(), userID, q)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondMeta(w, page.Items, map[string]any{
		"total":       page.Total,
		"unreadCount": page.UnreadCount,
		"page":        page.Page,
		"limit":       page.PageSize,
		"totalPages":  page.TotalPages,
	})
}

func (h *handlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), currentUserID(r))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]int{"unreadCount": n})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), currentUserID(r))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, stats)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	n, err := h.svc.Get(r.Context(), id, currentUserID(r))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (h *handlers) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	n, err := h.svc.MarkAsRead(r.Context(), id, currentUserID(r))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (h *handlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAllAsRead(r.Context(), currentUserID(r))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"message": "All notifications marked as read", "count": n})
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if err := h.svc.Remove(r.Context(), id, currentUserID(r)); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"message": "Notification deleted successfully"})
}

func (h *handlers) clearRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.RemoveAllRead(r.Context(), currentUserID(r))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"message": "Read notifications cleared successfully", "count": n})
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	var req notifications.CreateRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	n, err := h.svc.Create(r.Context(), req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusCreated, n)
}

func (h *handlers) createSystem(w http.ResponseWriter, r *http.Request) {
	var req notifications.SystemRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	created, err := h.svc.CreateSystemNotification(r.Context(), req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{
		"message": "System notification sent successfully",
		"count":   len(created),
	})
}

func (h *handlers) announce(w http.ResponseWriter, r *http.Request) {
	var req notifications.Announcement
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	created, err := h.svc.Announce(r.Context(), req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{
		"message": "Announcement sent successfully",
		"count":   len(created),
	})
}

func (h *handlers) onlinePresence(w http.ResponseWriter, _ *http.Request) {
	ids := h.presence.OnlineUserIDs()
	if ids == nil {
		ids = []int64{}
	}
	respond(w, http.StatusOK, map[string]any{
		"onlineCount": h.presence.OnlineCount(),
		"userIds":     ids,
	})
}

func currentUserID(r *http.Request) int64 {
	c, _ := jwt.CredentialFromContext(r.Context())
	return c.UserID
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest{msg: "id must be a positive integer"}
	}
	return id, nil
}

func parseListQuery(r *http.Request) (notifications.ListQuery, error) {
	var q notifications.ListQuery
	values := r.URL.Query()

	if v := values.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, badRequest{msg: "page must be an integer"}
		}
		q.Page = n
	}
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, badRequest{msg: "limit must be an integer"}
		}
		q.PageSize = n
	}
	if v := values.Get("unreadOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, badRequest{msg: "unreadOnly must be a boolean"}
		}
		q.UnreadOnly = b
	}
	return q, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest{msg: "request body is required"}
		}
		return badRequest{msg: "malformed JSON body: " + err.Error()}
	}
	return nil
}
