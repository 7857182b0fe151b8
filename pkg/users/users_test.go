package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campusnotify/internal/db"
	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/sqlite"
	"github.com/dmitrymomot/campusnotify/pkg/users"
)

var fixtures = []users.User{
	{Email: "ada@uni.edu", FirstName: "Ada", LastName: "Lovelace", Role: users.RoleStudent, Active: true},
	{Email: "alan@uni.edu", FirstName: "Alan", LastName: "Turing", Role: users.RoleLecturer, Active: true},
	{Email: "grace@uni.edu", FirstName: "Grace", LastName: "Hopper", Role: users.RoleAdmin, Active: true},
	{Email: "gone@uni.edu", FirstName: "Old", LastName: "Account", Role: users.RoleStudent, Active: false},
}

func directories(t *testing.T) map[string]func(t *testing.T) (users.Lookup, []users.User) {
	t.Helper()
	return map[string]func(t *testing.T) (users.Lookup, []users.User){
		"memory": func(t *testing.T) (users.Lookup, []users.User) {
			d := users.NewMemoryDirectory()
			out := make([]users.User, 0, len(fixtures))
			for _, u := range fixtures {
				out = append(out, d.Add(u))
			}
			return d, out
		},
		"sqlite": func(t *testing.T) (users.Lookup, []users.User) {
			ctx := context.Background()
			conn, err := sqlite.Open(ctx, sqlite.Config{Path: sqlite.InMemory})
			require.NoError(t, err)
			t.Cleanup(func() { _ = conn.Close() })
			require.NoError(t, sqlite.Migrate(ctx, conn, db.SQLiteMigrations(), logger.Discard()))

			d := users.NewSQLiteDirectory(conn)
			out := make([]users.User, 0, len(fixtures))
			for _, u := range fixtures {
				created, err := d.Insert(ctx, u)
				require.NoError(t, err)
				out = append(out, created)
			}
			return d, out
		},
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	for name, setup := range directories(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			d, seeded := setup(t)
			ada, alan, grace, gone := seeded[0], seeded[1], seeded[2], seeded[3]

			t.Run("find active user", func(t *testing.T) {
				u, err := d.FindActiveUser(ctx, ada.ID)
				require.NoError(t, err)
				assert.Equal(t, ada, u)
				assert.Equal(t, "Ada Lovelace", u.FullName())
			})

			t.Run("inactive user is not found", func(t *testing.T) {
				_, err := d.FindActiveUser(ctx, gone.ID)
				assert.ErrorIs(t, err, users.ErrUserNotFound)
			})

			t.Run("unknown user is not found", func(t *testing.T) {
				_, err := d.FindActiveUser(ctx, 9999)
				assert.ErrorIs(t, err, users.ErrUserNotFound)
			})

			t.Run("all active", func(t *testing.T) {
				all, err := d.FindAllActiveUsers(ctx)
				require.NoError(t, err)
				assert.Equal(t, []users.User{ada, alan, grace}, all)
			})

			t.Run("by ids skips inactive and unknown", func(t *testing.T) {
				got, err := d.FindActiveUsersByIDs(ctx, []int64{grace.ID, gone.ID, 9999, ada.ID})
				require.NoError(t, err)
				assert.Equal(t, []users.User{ada, grace}, got)

				got, err = d.FindActiveUsersByIDs(ctx, nil)
				require.NoError(t, err)
				assert.Empty(t, got)
			})

			t.Run("by roles", func(t *testing.T) {
				got, err := d.FindActiveUsersByRoles(ctx, users.RoleLecturer, users.RoleAdmin)
				require.NoError(t, err)
				assert.Equal(t, []users.User{alan, grace}, got)

				got, err = d.FindActiveUsersByRoles(ctx, users.RoleStudent)
				require.NoError(t, err)
				assert.Equal(t, []users.User{ada}, got)
			})
		})
	}
}

func TestMemoryDirectorySetActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d := users.NewMemoryDirectory()
	u := d.Add(users.User{Email: "x@uni.edu", Active: true})
	assert.Equal(t, users.RoleStudent, u.Role)

	d.SetActive(u.ID, false)
	_, err := d.FindActiveUser(ctx, u.ID)
	assert.ErrorIs(t, err, users.ErrUserNotFound)

	d.SetActive(u.ID, true)
	_, err = d.FindActiveUser(ctx, u.ID)
	assert.NoError(t, err)
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	assert.True(t, users.RoleStudent.Valid())
	assert.True(t, users.RoleLecturer.Valid())
	assert.True(t, users.RoleAdmin.Valid())
	assert.False(t, users.Role("dean").Valid())
}
