package notifier

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/campusnotify/pkg/jwt"
	"github.com/dmitrymomot/campusnotify/pkg/notifications"
)

// HTTPError pairs a status with a stable machine-readable code.
type HTTPError struct {
	Status int
	Code   string
}

func (e HTTPError) Error() string { return e.Code }

var (
	ErrBadRequest      = HTTPError{Status: http.StatusBadRequest, Code: "bad_request"}
	ErrUnauthorized    = HTTPError{Status: http.StatusUnauthorized, Code: "unauthorized"}
	ErrForbidden       = HTTPError{Status: http.StatusForbidden, Code: "forbidden"}
	ErrNotFound        = HTTPError{Status: http.StatusNotFound, Code: "not_found"}
	ErrValidation      = HTTPError{Status: http.StatusUnprocessableEntity, Code: "validation_error"}
	ErrTooManyRequests = HTTPError{Status: http.StatusTooManyRequests, Code: "too_many_requests"}
	ErrInternal        = HTTPError{Status: http.StatusInternalServerError, Code: "internal_error"}
)

// classify maps domain and auth errors onto the HTTP taxonomy. The returned
// message is safe to show to the client.
func classify(err error) (HTTPError, string) {
	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr, err.Error()
	case errors.Is(err, notifications.ErrUserNotFound):
		return ErrNotFound, "user not found"
	case errors.Is(err, notifications.ErrNotFound):
		return ErrNotFound, "notification not found"
	case errors.Is(err, notifications.ErrForbidden):
		return ErrForbidden, "you can only access your own notifications"
	case errors.Is(err, notifications.ErrInvalidNotification):
		return ErrValidation, err.Error()
	case errors.Is(err, jwt.ErrExpiredToken):
		return ErrUnauthorized, "token expired"
	case errors.Is(err, jwt.ErrMissingToken),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrInvalidSignature),
		errors.Is(err, jwt.ErrInvalidSubject),
		errors.Is(err, jwt.ErrUnexpectedSigningMethod),
		errors.Is(err, jwt.ErrMissingClaims):
		return ErrUnauthorized, "invalid or missing bearer token"
	}
	return ErrInternal, "an error occurred processing your request"
}

// badRequest wraps a parse failure so the message reaches the client.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (e badRequest) As(target any) bool {
	if t, ok := target.(*HTTPError); ok {
		*t = ErrBadRequest
		return true
	}
	return false
}
