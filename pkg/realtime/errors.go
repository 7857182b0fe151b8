package realtime

import "errors"

var (
	// ErrAuthRejected wraps every reason a connection fails authentication.
	ErrAuthRejected = errors.New("realtime: authentication rejected")

	ErrMissingCredential = errors.New("realtime: missing credential")
	ErrAuthTimeout       = errors.New("realtime: authentication timed out")
	ErrInactiveUser      = errors.New("realtime: user is not active")
	ErrGatewayClosed     = errors.New("realtime: gateway closed")

	ErrMalformedFrame = errors.New("realtime: malformed frame")
	ErrUnknownEvent   = errors.New("realtime: unknown event")
	ErrInvalidRoom    = errors.New("realtime: invalid room")
)
