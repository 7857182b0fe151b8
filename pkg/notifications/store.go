package notifications

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrymomot/campusnotify/pkg/users"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// RecentWindow is the look-back used by Stats.RecentCount.
	RecentWindow = 7 * 24 * time.Hour
)

// UserChecker resolves the recipient of a new notification.
type UserChecker interface {
	FindActiveUser(ctx context.Context, id int64) (users.User, error)
}

// Store is the authoritative notification store. It owns the existence check
// on create and the ownership check on every per-record read or mutation.
type Store struct {
	storage Storage
	users   UserChecker
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides time.Now. Intended for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store over storage that resolves recipients with users.
func NewStore(storage Storage, users UserChecker, opts ...StoreOption) *Store {
	s := &Store{storage: storage, users: users, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp is truncated to microseconds so every backend round-trips it unchanged.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Create stores a new unread notification. It fails with ErrUserNotFound when
// the recipient does not resolve to an active user.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.FindActiveUser(ctx, req.UserID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUserNotFound, req.UserID)
		}
		return nil, fmt.Errorf("resolving user %d: %w", req.UserID, err)
	}

	n := &Notification{
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Metadata:  req.Metadata,
		CreatedAt: s.timestamp(),
	}
	if err := s.storage.Insert(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// ListQuery selects a page. Page is 1-based.
type ListQuery struct {
	Page       int
	PageSize   int
	UnreadOnly bool
}

// normalize applies the page size bounds and caps Page so the offset of the
// page always fits in an int. A capped page lies past any stored record.
func (q ListQuery) normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	q.PageSize = min(q.PageSize, MaxPageSize)
	q.Page = min(q.Page, math.MaxInt/q.PageSize)
	return q
}

func (q ListQuery) offset() int {
	return (q.Page - 1) * q.PageSize
}

// Page is one page of a user's notifications. Total counts the records
// matching the filter; UnreadCount is always the user's overall unread count.
type Page struct {
	Items       []Notification `json:"notifications"`
	Total       int            `json:"total"`
	UnreadCount int            `json:"unreadCount"`
	Page        int            `json:"page"`
	PageSize    int            `json:"limit"`
	TotalPages  int            `json:"totalPages"`
}

// ListForUser returns one page of userID's notifications, newest first.
func (s *Store) ListForUser(ctx context.Context, userID int64, q ListQuery) (*Page, error) {
	q = q.normalize()

	items, total, err := s.storage.List(ctx, userID, ListOptions{
		Limit:      q.PageSize,
		Offset:     q.offset(),
		OnlyUnread: q.UnreadOnly,
	})
	if err != nil {
		return nil, err
	}
	unread, err := s.storage.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Notification{}
	}

	return &Page{
		Items:       items,
		Total:       total,
		UnreadCount: unread,
		Page:        q.Page,
		PageSize:    q.PageSize,
		TotalPages:  (total + q.PageSize - 1) / q.PageSize,
	}, nil
}

// Get returns a notification without an ownership check. Callers acting on
// behalf of a user must use GetOwned.
func (s *Store) Get(ctx context.Context, id int64) (*Notification, error) {
	return s.storage.FindByID(ctx, id)
}

// GetOwned returns the notification only if requester owns it.
func (s *Store) GetOwned(ctx context.Context, id, requester int64) (*Notification, error) {
	n, err := s.storage.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != requester {
		return nil, ErrForbidden
	}
	return n, nil
}

// MarkRead flips the notification to read. Marking an already-read
// notification is a no-op that returns the unchanged record.
func (s *Store) MarkRead(ctx context.Context, id, requester int64) (*Notification, error) {
	n, err := s.GetOwned(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}
	if err := s.storage.MarkRead(ctx, id, s.timestamp()); err != nil {
		return nil, err
	}
	return s.storage.FindByID(ctx, id)
}

// MarkAllRead returns the number of notifications that flipped to read.
func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	return s.storage.MarkAllRead(ctx, userID, s.timestamp())
}

// Remove deletes a notification owned by requester.
func (s *Store) Remove(ctx context.Context, id, requester int64) error {
	if _, err := s.GetOwned(ctx, id, requester); err != nil {
		return err
	}
	return s.storage.Delete(ctx, id)
}

// RemoveAllRead returns the number of deleted notifications.
func (s *Store) RemoveAllRead(ctx context.Context, userID int64) (int, error) {
	return s.storage.DeleteRead(ctx, userID)
}

// UnreadCount returns the number of userID's unread notifications.
func (s *Store) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.storage.CountUnread(ctx, userID)
}

// Stats summarises a user's notifications. ByType has an entry for every Type.
type Stats struct {
	Total       int          `json:"total"`
	Unread      int          `json:"unread"`
	ByType      map[Type]int `json:"byType"`
	RecentCount int          `json:"recent"`
}

// StatsFor computes Stats for userID as of now.
func (s *Store) StatsFor(ctx context.Context, userID int64) (*Stats, error) {
	counts, err := s.storage.CountByType(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.storage.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.storage.CountSince(ctx, userID, s.timestamp().Add(-RecentWindow))
	if err != nil {
		return nil, err
	}

	stats := &Stats{Unread: unread, RecentCount: recent, ByType: make(map[Type]int, len(Types()))}
	for _, t := range Types() {
		stats.ByType[t] = counts[t]
		stats.Total += counts[t]
	}
	return stats, nil
}
