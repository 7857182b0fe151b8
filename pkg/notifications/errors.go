package notifications

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a notification, or the user it targets,
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound is returned by Create when the recipient does not
	// resolve to an active user. It matches ErrNotFound.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrForbidden is returned when the requester does not own the notification.
	ErrForbidden = errors.New("notification belongs to another user")

	// ErrInvalidNotification is returned for malformed create requests.
	ErrInvalidNotification = errors.New("invalid notification")
)

func notFound(id int64) error {
	return fmt.Errorf("notification %d %w", id, ErrNotFound)
}
