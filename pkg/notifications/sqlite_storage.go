package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const sqliteColumns = `id, user_id, type, title, message, metadata, read, read_at, created_at`

// SQLiteStorage persists notifications in SQLite through sqlx.
// Timestamps are stored as UTC Unix nanoseconds.
type SQLiteStorage struct {
	db *sqlx.DB
}

// NewSQLiteStorage returns a Storage backed by db.
func NewSQLiteStorage(db *sqlx.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

type sqliteRow struct {
	ID        int64         `db:"id"`
	UserID    int64         `db:"user_id"`
	Type      string        `db:"type"`
	Title     string        `db:"title"`
	Message   string        `db:"message"`
	Metadata  Metadata      `db:"metadata"`
	Read      bool          `db:"read"`
	ReadAt    sql.NullInt64 `db:"read_at"`
	CreatedAt int64         `db:"created_at"`
}

func (r sqliteRow) notification() Notification {
	n := Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      Type(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		Metadata:  r.Metadata,
		Read:      r.Read,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.ReadAt.Valid {
		t := time.Unix(0, r.ReadAt.Int64).UTC()
		n.ReadAt = &t
	}
	return n
}

func (s *SQLiteStorage) Insert(ctx context.Context, n *Notification) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, type, title, message, metadata, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, string(n.Type), n.Title, n.Message, n.Metadata, n.Read, n.CreatedAt.UnixNano())
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return ErrUserNotFound
		}
		return fmt.Errorf("inserting notification: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading notification id: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) FindByID(ctx context.Context, id int64) (*Notification, error) {
	var row sqliteRow
	err := s.db.GetContext(ctx, &row, `SELECT `+sqliteColumns+` FROM notifications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("finding notification %d: %w", id, err)
	}
	n := row.notification()
	return &n, nil
}

func (s *SQLiteStorage) List(ctx context.Context, userID int64, opts ListOptions) ([]Notification, int, error) {
	where := `user_id = ?`
	if opts.OnlyUnread {
		where += ` AND read = 0`
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications WHERE `+where, userID); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	var rows []sqliteRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+sqliteColumns+` FROM notifications WHERE `+where+`
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}

	out := make([]Notification, len(rows))
	for i, r := range rows {
		out[i] = r.notification()
	}
	return out, total, nil
}

func (s *SQLiteStorage) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID); err != nil {
		return 0, fmt.Errorf("counting unread: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) MarkRead(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1, read_at = ? WHERE id = ? AND read = 0`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("marking notification %d read: %w", id, err)
	}
	return nil
}

func (s *SQLiteStorage) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1, read_at = ? WHERE user_id = ? AND read = 0`, at.UnixNano(), userID)
	if err != nil {
		return 0, fmt.Errorf("marking all read: %w", err)
	}
	return affected(res)
}

func (s *SQLiteStorage) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLiteStorage) DeleteRead(ctx context.Context, userID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ? AND read = 1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting read notifications: %w", err)
	}
	return affected(res)
}

func (s *SQLiteStorage) CountByType(ctx context.Context, userID int64) (map[Type]int, error) {
	var rows []struct {
		Type  string `db:"type"`
		Count int    `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT type, COUNT(*) AS n FROM notifications WHERE user_id = ? GROUP BY type`, userID)
	if err != nil {
		return nil, fmt.Errorf("counting by type: %w", err)
	}
	counts := make(map[Type]int, len(rows))
	for _, r := range rows {
		counts[Type(r.Type)] = r.Count
	}
	return counts, nil
}

func (s *SQLiteStorage) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND created_at >= ?`, userID, since.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("counting recent: %w", err)
	}
	return n, nil
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return int(n), nil
}
