// Package presence tracks which users currently hold live connections.
//
// The registry is in-memory and rebuilds to empty on restart: every client
// re-authenticates and re-registers when it reconnects. Multi-node
// deployments need a shared implementation behind the same method set.
package presence

import (
	"cmp"
	"slices"
	"sync"
)

// Registry maps a user id to the set of its connection ids.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	users map[int64]map[string]struct{}
	conns int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[int64]map[string]struct{})}
}

// Register adds connID to userID's set, creating the set on first use.
// Registering the same pair twice has no further effect.
func (r *Registry) Register(userID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{}, 1)
		r.users[userID] = set
	}
	if _, dup := set[connID]; !dup {
		set[connID] = struct{}{}
		r.conns++
	}
}

// Unregister removes connID and drops the user entry once its set is empty.
// Unknown pairs are ignored.
func (r *Registry) Unregister(userID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return
	}
	if _, found := set[connID]; found {
		delete(set, connID)
		r.conns--
	}
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// Connections returns a sorted copy of userID's connection ids, or nil when
// the user is offline. It never creates an entry.
func (r *Registry) Connections(userID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// OnlineUserIDs returns a sorted snapshot of online users.
func (r *Registry) OnlineUserIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int64, 0, len(r.users))
	for id := range r.users {
		out = append(out, id)
	}
	slices.SortFunc(out, cmp.Compare[int64])
	return out
}

// OnlineCount returns the number of distinct online users.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// ConnectionCount is the number of registered connections across all users.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns
}
