package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Guard reports whether a transition may proceed for the given data.
type Guard func(ctx context.Context, data any) bool

// Action runs before the state changes. An error aborts the transition.
type Action[S comparable] func(ctx context.Context, from, to S, data any) error

// Transition moves the machine from From to To when Event fires.
// Several transitions may share From and Event; the first whose guard passes wins.
type Transition[S, E comparable] struct {
	From   S
	Event  E
	To     S
	Guard  Guard
	Action Action[S]
}

// Definition is an immutable transition table shared by many machines.
type Definition[S, E comparable] struct {
	initial  S
	table    map[S]map[E][]Transition[S, E]
	terminal map[S]struct{}
}

// NewDefinition builds a table. States without outgoing transitions are
// terminal.
func NewDefinition[S, E comparable](initial S, transitions ...Transition[S, E]) *Definition[S, E] {
	d := &Definition[S, E]{
		initial:  initial,
		table:    make(map[S]map[E][]Transition[S, E]),
		terminal: make(map[S]struct{}),
	}
	states := map[S]struct{}{initial: {}}
	for _, t := range transitions {
		if d.table[t.From] == nil {
			d.table[t.From] = make(map[E][]Transition[S, E])
		}
		d.table[t.From][t.Event] = append(d.table[t.From][t.Event], t)
		states[t.From] = struct{}{}
		states[t.To] = struct{}{}
	}
	for s := range states {
		if len(d.table[s]) == 0 {
			d.terminal[s] = struct{}{}
		}
	}
	return d
}

// New returns a machine in the initial state.
func (d *Definition[S, E]) New() *Machine[S, E] {
	return &Machine[S, E]{def: d, current: d.initial}
}

// Machine is one running instance of a Definition. It is safe for concurrent use.
type Machine[S, E comparable] struct {
	def     *Definition[S, E]
	mu      sync.Mutex
	current S
}

// Current returns the current state.
func (m *Machine[S, E]) Current() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Is reports whether the machine is currently in s.
func (m *Machine[S, E]) Is(s S) bool {
	return m.Current() == s
}

// Terminal reports whether no further transitions are possible.
func (m *Machine[S, E]) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.def.terminal[m.current]
	return ok
}

// Fire applies event. It returns ErrNoTransition if the current state does not
// accept event and ErrRejected if every candidate guard refused.
func (m *Machine[S, E]) Fire(ctx context.Context, event E, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.def.table[m.current][event]
	if len(candidates) == 0 {
		return &TransitionError{State: fmt.Sprint(m.current), Event: fmt.Sprint(event), Err: ErrNoTransition}
	}

	for _, t := range candidates {
		if t.Guard != nil && !t.Guard(ctx, data) {
			continue
		}
		if t.Action != nil {
			if err := t.Action(ctx, m.current, t.To, data); err != nil {
				return &TransitionError{State: fmt.Sprint(m.current), Event: fmt.Sprint(event), Err: err}
			}
		}
		m.current = t.To
		return nil
	}
	return &TransitionError{State: fmt.Sprint(m.current), Event: fmt.Sprint(event), Err: ErrRejected}
}

// Can reports whether event has a transition whose guard passes.
func (m *Machine[S, E]) Can(ctx context.Context, event E, data any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.def.table[m.current][event] {
		if t.Guard == nil || t.Guard(ctx, data) {
			return true
		}
	}
	return false
}
