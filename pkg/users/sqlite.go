package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, email, first_name, last_name, role, is_active`

// SQLiteDirectory reads users from the SQLite schema.
type SQLiteDirectory struct {
	db *sqlx.DB
}

// NewSQLiteDirectory returns a Lookup backed by db.
func NewSQLiteDirectory(db *sqlx.DB) *SQLiteDirectory {
	return &SQLiteDirectory{db: db}
}

// Insert creates a user row. Used for seeding and tests; the account service
// owns user writes in production.
func (d *SQLiteDirectory) Insert(ctx context.Context, u User) (User, error) {
	if u.Role == "" {
		u.Role = RoleStudent
	}
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO users (email, first_name, last_name, role, is_active) VALUES (?, ?, ?, ?, ?)`,
		u.Email, u.FirstName, u.LastName, u.Role, u.Active)
	if err != nil {
		return User{}, fmt.Errorf("inserting user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return User{}, fmt.Errorf("reading user id: %w", err)
	}
	return u, nil
}

// FindActiveUser returns ErrUserNotFound for unknown and inactive ids.
func (d *SQLiteDirectory) FindActiveUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := d.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ? AND is_active = 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("finding user %d: %w", id, err)
	}
	return u, nil
}

func (d *SQLiteDirectory) FindAllActiveUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := d.db.SelectContext(ctx, &out, `SELECT `+userColumns+` FROM users WHERE is_active = 1 ORDER BY id`); err != nil {
		return nil, fmt.Errorf("listing active users: %w", err)
	}
	return out, nil
}

func (d *SQLiteDirectory) FindActiveUsersByIDs(ctx context.Context, ids []int64) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return d.selectIn(ctx, `SELECT `+userColumns+` FROM users WHERE is_active = 1 AND id IN (?) ORDER BY id`, ids)
}

func (d *SQLiteDirectory) FindActiveUsersByRoles(ctx context.Context, roles ...Role) ([]User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	return d.selectIn(ctx, `SELECT `+userColumns+` FROM users WHERE is_active = 1 AND role IN (?) ORDER BY id`, roles)
}

func (d *SQLiteDirectory) selectIn(ctx context.Context, query string, arg any) ([]User, error) {
	query, args, err := sqlx.In(query, arg)
	if err != nil {
		return nil, fmt.Errorf("expanding query: %w", err)
	}
	var out []User
	if err := d.db.SelectContext(ctx, &out, d.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("selecting users: %w", err)
	}
	return out, nil
}
