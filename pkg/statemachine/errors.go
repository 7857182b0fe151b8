package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrNoTransition = errors.New("no transition available")
	ErrRejected     = errors.New("transition rejected by guard")
)

// TransitionError reports the state and event of a failed Fire.
type TransitionError struct {
	State string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("state %q, event %q: %v", e.State, e.Event, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }
