package realtime

import "github.com/dmitrymomot/campusnotify/pkg/statemachine"

// State is the lifecycle stage of one live connection.
type State string

const (
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateDisconnected   State = "disconnected"
)

type trigger string

const (
	triggerOpen   trigger = "open"
	triggerAccept trigger = "accept"
	triggerReject trigger = "reject"
	triggerClose  trigger = "close"
)

var lifecycle = statemachine.NewDefinition(StateConnecting,
	statemachine.Transition[State, trigger]{From: StateConnecting, Event: triggerOpen, To: StateAuthenticating},
	statemachine.Transition[State, trigger]{From: StateAuthenticating, Event: triggerAccept, To: StateAuthenticated},
	statemachine.Transition[State, trigger]{From: StateAuthenticating, Event: triggerReject, To: StateDisconnected},
	statemachine.Transition[State, trigger]{From: StateAuthenticated, Event: triggerClose, To: StateDisconnected},
)
