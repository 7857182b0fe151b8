package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/campusnotify/pkg/pg"
)

const pgColumns = `id, user_id, type, title, message, metadata, read, read_at, created_at`

// PostgresStorage persists notifications in PostgreSQL through pgx.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage returns a Storage backed by pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n   Notification
		typ string
	)
	err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.Metadata, &n.Read, &n.ReadAt, &n.CreatedAt)
	n.Type = Type(typ)
	n.CreatedAt = n.CreatedAt.UTC()
	if n.ReadAt != nil {
		t := n.ReadAt.UTC()
		n.ReadAt = &t
	}
	return n, err
}

func (s *PostgresStorage) Insert(ctx context.Context, n *Notification) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, type, title, message, metadata, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		n.UserID, string(n.Type), n.Title, n.Message, n.Metadata, n.Read, n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) FindByID(ctx context.Context, id int64) (*Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM notifications WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("finding notification %d: %w", id, err)
	}
	return &n, nil
}

func (s *PostgresStorage) List(ctx context.Context, userID int64, opts ListOptions) ([]Notification, int, error) {
	where := `user_id = $1`
	if opts.OnlyUnread {
		where += ` AND NOT read`
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgColumns+` FROM notifications WHERE `+where+`
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notification, error) {
		return scanNotification(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scanning notifications: %w", err)
	}
	return out, total, nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID)
}

func (s *PostgresStorage) MarkRead(ctx context.Context, id int64, at time.Time) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE, read_at = $2 WHERE id = $1 AND NOT read`, id, at); err != nil {
		return fmt.Errorf("marking notification %d read: %w", id, err)
	}
	return nil
}

func (s *PostgresStorage) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE, read_at = $2 WHERE user_id = $1 AND NOT read`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("marking all read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PostgresStorage) DeleteRead(ctx context.Context, userID int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1 AND read`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting read notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStorage) CountByType(ctx context.Context, userID int64) (map[Type]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT type, COUNT(*) FROM notifications WHERE user_id = $1 GROUP BY type`, userID)
	if err != nil {
		return nil, fmt.Errorf("counting by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[Type]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scanning type count: %w", err)
		}
		counts[Type(typ)] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStorage) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND created_at >= $2`, userID, since)
}

func (s *PostgresStorage) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return n, nil
}
