package notifications

import (
	"context"
	"time"
)

// Storage is the persistence backend behind Store. Implementations do plain
// data access; ownership and existence rules live in Store.
//
// Listings are ordered newest first, with the id breaking ties.
type Storage interface {
	// Insert persists n and assigns n.ID.
	Insert(ctx context.Context, n *Notification) error
	// FindByID returns ErrNotFound when the record does not exist.
	FindByID(ctx context.Context, id int64) (*Notification, error)
	// List returns one page and the number of records matching opts.
	List(ctx context.Context, userID int64, opts ListOptions) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	// MarkRead sets read and read_at only if the record is still unread.
	MarkRead(ctx context.Context, id int64, at time.Time) error
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int, error)
	// Delete returns ErrNotFound when nothing was deleted.
	Delete(ctx context.Context, id int64) error
	DeleteRead(ctx context.Context, userID int64) (int, error)
	CountByType(ctx context.Context, userID int64) (map[Type]int, error)
	CountSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// ListOptions selects a page of a user's notifications.
type ListOptions struct {
	Limit      int // 0 means no limit
	Offset     int
	OnlyUnread bool
}
