// Package statemachine is a small finite state machine with guards and
// actions. A Definition holds the transition table and is shared; each
// Machine tracks the current state of one subject, such as a live
// connection moving through Connecting, Authenticating, Authenticated and
// Disconnected.
//
//	def := statemachine.NewDefinition(StateConnecting,
//		statemachine.Transition[State, Trigger]{From: StateConnecting, Event: TriggerOpen, To: StateAuthenticating},
//		...
//	)
//	m := def.New()
//	if err := m.Fire(ctx, TriggerOpen, nil); err != nil { ... }
package statemachine
