package notifications

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStorage keeps notifications in process memory. Ids come from a
// monotonic counter. Suitable for development and tests.
type MemoryStorage struct {
	mu     sync.RWMutex
	byID   map[int64]*Notification
	nextID int64
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{byID: make(map[int64]*Notification)}
}

// Insert assigns the next id to n and stores a copy.
func (s *MemoryStorage) Insert(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	n.ID = s.nextID
	s.byID[n.ID] = clone(n)
	return nil
}

// FindByID returns a copy of the notification or ErrNotFound.
func (s *MemoryStorage) FindByID(_ context.Context, id int64) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.byID[id]
	if !ok {
		return nil, notFound(id)
	}
	return clone(n), nil
}

// List returns the requested page and the number of matching records.
func (s *MemoryStorage) List(_ context.Context, userID int64, opts ListOptions) ([]Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.collect(func(n *Notification) bool {
		return n.UserID == userID && (!opts.OnlyUnread || !n.Read)
	})
	slices.SortFunc(matched, func(a, b *Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	total := len(matched)
	start := min(max(opts.Offset, 0), total)
	end := total
	if opts.Limit > 0 {
		end = min(start+opts.Limit, total)
	}

	page := make([]Notification, 0, end-start)
	for _, n := range matched[start:end] {
		page = append(page, *clone(n))
	}
	return page, total, nil
}

// CountUnread counts userID's unread notifications.
func (s *MemoryStorage) CountUnread(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collect(func(n *Notification) bool { return n.UserID == userID && !n.Read })), nil
}

// MarkRead sets the read flag and readAt once. Unknown ids are ignored.
func (s *MemoryStorage) MarkRead(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.byID[id]; ok && !n.Read {
		n.Read = true
		n.ReadAt = &at
	}
	return nil
}

// MarkAllRead marks every unread notification of userID and returns how many changed.
func (s *MemoryStorage) MarkAllRead(_ context.Context, userID int64, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.byID {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &at
			count++
		}
	}
	return count, nil
}

// Delete removes the notification or returns ErrNotFound.
func (s *MemoryStorage) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return notFound(id)
	}
	delete(s.byID, id)
	return nil
}

// DeleteRead removes userID's read notifications and returns how many were removed.
func (s *MemoryStorage) DeleteRead(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, n := range s.byID {
		if n.UserID == userID && n.Read {
			delete(s.byID, id)
			count++
		}
	}
	return count, nil
}

// CountByType counts userID's notifications per type.
func (s *MemoryStorage) CountByType(_ context.Context, userID int64) (map[Type]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Type]int)
	for _, n := range s.byID {
		if n.UserID == userID {
			counts[n.Type]++
		}
	}
	return counts, nil
}

// CountSince counts userID's notifications created at or after since.
func (s *MemoryStorage) CountSince(_ context.Context, userID int64, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collect(func(n *Notification) bool {
		return n.UserID == userID && !n.CreatedAt.Before(since)
	})), nil
}

// collect must be called with the lock held.
func (s *MemoryStorage) collect(keep func(*Notification) bool) []*Notification {
	var out []*Notification
	for _, n := range s.byID {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func clone(n *Notification) *Notification {
	c := *n
	c.Metadata = maps.Clone(n.Metadata)
	if n.ReadAt != nil {
		t := *n.ReadAt
		c.ReadAt = &t
	}
	return &c
}
