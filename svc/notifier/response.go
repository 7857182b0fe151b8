package notifier

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/campusnotify/pkg/environment"
	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/requestid"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail is the error member of an Envelope.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Data: data})
}

func respondMeta(w http.ResponseWriter, data any, meta map[string]any) {
	writeJSON(w, http.StatusOK, Envelope{Data: data, Meta: meta})
}

// respondError logs server errors at ERROR and client errors at DEBUG, then
// renders the envelope. Server error details reach the client only in
// development.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	httpErr, msg := classify(err)
	id := requestid.FromContext(r.Context())

	level := slog.LevelDebug
	if httpErr.Status >= http.StatusInternalServerError {
		level = slog.LevelError
		if environment.FromContext(r.Context()) == environment.Development {
			msg = err.Error()
		}
	}
	log.LogAttrs(r.Context(), level, "request failed",
		logger.Error(err),
		slog.Int("status", httpErr.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	writeJSON(w, httpErr.Status, Envelope{Error: &ErrorDetail{
		Code:      httpErr.Code,
		Message:   msg,
		RequestID: id,
	}})
}
