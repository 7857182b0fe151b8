package users

import (
	"context"
	"errors"
	"strings"
)

// ErrUserNotFound is returned when a user does not exist or is deactivated.
var ErrUserNotFound = errors.New("user not found")

// Role is a campus role.
type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleAdmin:
		return true
	}
	return false
}

// User is the subset of the account record the notifier needs.
type User struct {
	ID        int64  `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
	Role      Role   `db:"role" json:"role"`
	Active    bool   `db:"is_active" json:"isActive"`
}

// FullName joins the first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Lookup resolves users for existence checks, connection authentication and
// broadcast targeting. Every method only ever returns active users.
type Lookup interface {
	FindActiveUser(ctx context.Context, id int64) (User, error)
	FindAllActiveUsers(ctx context.Context) ([]User, error)
	FindActiveUsersByIDs(ctx context.Context, ids []int64) ([]User, error)
	FindActiveUsersByRoles(ctx context.Context, roles ...Role) ([]User, error)
}
