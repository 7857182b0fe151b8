package presence_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/campusnotify/pkg/presence"
)

func TestRegisterUnregister(t *testing.T) {
	t.Parallel()

	r := presence.NewRegistry()
	r.Register(42, "c1")

	assert.True(t, r.IsOnline(42))
	assert.Equal(t, []string{"c1"}, r.Connections(42))

	r.Unregister(42, "c1")
	assert.False(t, r.IsOnline(42))
	assert.Empty(t, r.Connections(42))
	assert.Equal(t, 0, r.OnlineCount())
	assert.Equal(t, 0, r.ConnectionCount())
}

func TestMultipleConnections(t *testing.T) {
	t.Parallel()

	r := presence.NewRegistry()
	r.Register(42, "c1")
	r.Register(42, "c2")

	r.Unregister(42, "c1")
	assert.True(t, r.IsOnline(42))
	assert.Equal(t, []string{"c2"}, r.Connections(42))

	r.Unregister(42, "c2")
	assert.False(t, r.IsOnline(42))
}

func TestRegisterIsIdempotent(t *testing.T) {
	t.Parallel()

	r := presence.NewRegistry()
	r.Register(7, "c1")
	r.Register(7, "c1")

	assert.Equal(t, []string{"c1"}, r.Connections(7))
	assert.Equal(t, 1, r.ConnectionCount())

	r.Unregister(7, "c1")
	assert.False(t, r.IsOnline(7))
}

func TestLookupsDoNotCreateEntries(t *testing.T) {
	t.Parallel()

	r := presence.NewRegistry()
	assert.Nil(t, r.Connections(99))
	assert.False(t, r.IsOnline(99))
	r.Unregister(99, "ghost")

	assert.Equal(t, 0, r.OnlineCount())
	assert.Empty(t, r.OnlineUserIDs())
}

func TestSnapshots(t *testing.T) {
	t.Parallel()

	r := presence.NewRegistry()
	r.Register(3, "a")
	r.Register(1, "b")
	r.Register(2, "c")
	r.Register(2, "d")

	ids := r.OnlineUserIDs()
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, 3, r.OnlineCount())
	assert.Equal(t, 4, r.ConnectionCount())

	// snapshots are detached from the registry
	ids[0] = 100
	conns := r.Connections(2)
	conns[0] = "zzz"
	assert.Equal(t, []int64{1, 2, 3}, r.OnlineUserIDs())
	assert.Equal(t, []string{"c", "d"}, r.Connections(2))
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := presence.NewRegistry()
	var wg sync.WaitGroup
	for u := range 20 {
		for c := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("u%d-c%d", u, c)
				r.Register(int64(u), id)
				_ = r.IsOnline(int64(u))
				_ = r.OnlineUserIDs()
				r.Unregister(int64(u), id)
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, 0, r.OnlineCount())
	assert.Equal(t, 0, r.ConnectionCount())
}
