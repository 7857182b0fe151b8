package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campusnotify/pkg/statemachine"
)

type state string

type event string

const (
	connecting     state = "connecting"
	authenticating state = "authenticating"
	authenticated  state = "authenticated"
	disconnected   state = "disconnected"

	open   event = "open"
	accept event = "accept"
	reject event = "reject"
	closed event = "close"
)

func lifecycle(actions map[state]statemachine.Action[state]) *statemachine.Definition[state, event] {
	return statemachine.NewDefinition(connecting,
		statemachine.Transition[state, event]{From: connecting, Event: open, To: authenticating},
		statemachine.Transition[state, event]{From: authenticating, Event: accept, To: authenticated, Action: actions[authenticated]},
		statemachine.Transition[state, event]{From: authenticating, Event: reject, To: disconnected},
		statemachine.Transition[state, event]{From: authenticating, Event: closed, To: disconnected},
		statemachine.Transition[state, event]{From: authenticated, Event: closed, To: disconnected},
	)
}

func TestHappyPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := lifecycle(nil).New()
	assert.Equal(t, connecting, m.Current())
	assert.False(t, m.Terminal())

	require.NoError(t, m.Fire(ctx, open, nil))
	require.NoError(t, m.Fire(ctx, accept, nil))
	assert.True(t, m.Is(authenticated))

	require.NoError(t, m.Fire(ctx, closed, nil))
	assert.True(t, m.Is(disconnected))
	assert.True(t, m.Terminal())
}

func TestInvalidTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name  string
		steps []event
		bad   event
	}{
		{"accept before open", nil, accept},
		{"accept after reject", []event{open, reject}, accept},
		{"open twice", []event{open}, open},
		{"anything after disconnect", []event{open, accept, closed}, closed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := lifecycle(nil).New()
			for _, e := range tt.steps {
				require.NoError(t, m.Fire(ctx, e, nil))
			}
			before := m.Current()

			err := m.Fire(ctx, tt.bad, nil)
			require.ErrorIs(t, err, statemachine.ErrNoTransition)
			var te *statemachine.TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, string(before), te.State)
			assert.Equal(t, string(tt.bad), te.Event)
			assert.Equal(t, before, m.Current())
		})
	}
}

func TestActionFailureKeepsState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("registry closed")

	m := lifecycle(map[state]statemachine.Action[state]{
		authenticated: func(context.Context, state, state, any) error { return boom },
	}).New()

	require.NoError(t, m.Fire(ctx, open, nil))
	err := m.Fire(ctx, accept, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, authenticating, m.Current())
}

func TestActionReceivesData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var got any
	m := lifecycle(map[state]statemachine.Action[state]{
		authenticated: func(_ context.Context, from, to state, data any) error {
			assert.Equal(t, authenticating, from)
			assert.Equal(t, authenticated, to)
			got = data
			return nil
		},
	}).New()

	require.NoError(t, m.Fire(ctx, open, nil))
	require.NoError(t, m.Fire(ctx, accept, int64(42)))
	assert.Equal(t, int64(42), got)
}

func TestGuards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	isAdmin := func(_ context.Context, data any) bool { return data == "admin" }
	def := statemachine.NewDefinition(connecting,
		statemachine.Transition[state, event]{From: connecting, Event: accept, To: authenticated, Guard: isAdmin},
		statemachine.Transition[state, event]{From: connecting, Event: reject, To: disconnected},
	)

	m := def.New()
	assert.False(t, m.Can(ctx, accept, "student"))
	err := m.Fire(ctx, accept, "student")
	assert.ErrorIs(t, err, statemachine.ErrRejected)

	assert.True(t, m.Can(ctx, accept, "admin"))
	require.NoError(t, m.Fire(ctx, accept, "admin"))
	assert.True(t, m.Terminal())
}

func TestConcurrentFireOnlyOneWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := lifecycle(nil).New()
	require.NoError(t, m.Fire(ctx, open, nil))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Fire(ctx, reject, nil) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
