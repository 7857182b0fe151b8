package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/campusnotify/pkg/pg"
)

// PostgresDirectory reads users from PostgreSQL.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory returns a Lookup backed by pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// Insert creates a user row. Used for seeding and tests.
func (d *PostgresDirectory) Insert(ctx context.Context, u User) (User, error) {
	if u.Role == "" {
		u.Role = RoleStudent
	}
	err := d.pool.QueryRow(ctx,
		`INSERT INTO users (email, first_name, last_name, role, is_active) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Email, u.FirstName, u.LastName, string(u.Role), u.Active,
	).Scan(&u.ID)
	if err != nil {
		return User{}, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

// FindActiveUser returns ErrUserNotFound for unknown and inactive ids.
func (d *PostgresDirectory) FindActiveUser(ctx context.Context, id int64) (User, error) {
	rows, _ := d.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active`, id)
	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[User])
	if pg.IsNotFoundError(err) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("finding user %d: %w", id, err)
	}
	return u, nil
}

func (d *PostgresDirectory) FindAllActiveUsers(ctx context.Context) ([]User, error) {
	return d.collect(ctx, `SELECT `+userColumns+` FROM users WHERE is_active ORDER BY id`)
}

func (d *PostgresDirectory) FindActiveUsersByIDs(ctx context.Context, ids []int64) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.collect(ctx, `SELECT `+userColumns+` FROM users WHERE is_active AND id = ANY($1) ORDER BY id`, ids)
}

func (d *PostgresDirectory) FindActiveUsersByRoles(ctx context.Context, roles ...Role) ([]User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return d.collect(ctx, `SELECT `+userColumns+` FROM users WHERE is_active AND role = ANY($1) ORDER BY id`, names)
}

func (d *PostgresDirectory) collect(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting users: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[User])
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return out, nil
}
