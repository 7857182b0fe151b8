package users

import (
	"context"
	"slices"
	"sync"
)

// MemoryDirectory is an in-process Lookup used by tests and the memory driver.
type MemoryDirectory struct {
	mu     sync.RWMutex
	users  map[int64]User
	nextID int64
}

// NewMemoryDirectory returns a directory holding seed.
func NewMemoryDirectory(seed ...User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[int64]User)}
	for _, u := range seed {
		d.Add(u)
	}
	return d
}

// Add stores u, assigning the next id when u.ID is zero.
func (d *MemoryDirectory) Add(u User) User {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u.ID == 0 {
		d.nextID++
		u.ID = d.nextID
	} else if u.ID > d.nextID {
		d.nextID = u.ID
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	d.users[u.ID] = u
	return u
}

// SetActive toggles the active flag; unknown ids are ignored.
func (d *MemoryDirectory) SetActive(id int64, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		u.Active = active
		d.users[id] = u
	}
}

// FindActiveUser returns ErrUserNotFound for unknown and inactive ids.
func (d *MemoryDirectory) FindActiveUser(_ context.Context, id int64) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok || !u.Active {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// FindAllActiveUsers returns active users ordered by id.
func (d *MemoryDirectory) FindAllActiveUsers(_ context.Context) ([]User, error) {
	return d.filter(func(User) bool { return true }), nil
}

// FindActiveUsersByIDs skips unknown and inactive ids.
func (d *MemoryDirectory) FindActiveUsersByIDs(_ context.Context, ids []int64) ([]User, error) {
	return d.filter(func(u User) bool { return slices.Contains(ids, u.ID) }), nil
}

// FindActiveUsersByRoles returns active users holding any of roles.
func (d *MemoryDirectory) FindActiveUsersByRoles(_ context.Context, roles ...Role) ([]User, error) {
	return d.filter(func(u User) bool { return slices.Contains(roles, u.Role) }), nil
}

func (d *MemoryDirectory) filter(keep func(User) bool) []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		if u.Active && keep(u) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b User) int { return int(a.ID - b.ID) })
	return out
}
