package notifications_test

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campusnotify/internal/db"
	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/notifications"
	"github.com/dmitrymomot/campusnotify/pkg/pg"
	"github.com/dmitrymomot/campusnotify/pkg/sqlite"
	"github.com/dmitrymomot/campusnotify/pkg/users"
)

var base = time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC)

// backend returns a fresh storage and the ids of two seeded users.
type backend func(t *testing.T) (notifications.Storage, int64, int64)

func backends() map[string]backend {
	b := map[string]backend{
		"memory": func(t *testing.T) (notifications.Storage, int64, int64) {
			return notifications.NewMemoryStorage(), 1, 2
		},
		"sqlite": func(t *testing.T) (notifications.Storage, int64, int64) {
			ctx := context.Background()
			conn, err := sqlite.Open(ctx, sqlite.Config{Path: sqlite.InMemory})
			require.NoError(t, err)
			t.Cleanup(func() { _ = conn.Close() })
			require.NoError(t, sqlite.Migrate(ctx, conn, db.SQLiteMigrations(), logger.Discard()))

			dir := users.NewSQLiteDirectory(conn)
			a, err := dir.Insert(ctx, users.User{Email: "a@uni.edu", Role: users.RoleStudent, Active: true})
			require.NoError(t, err)
			b, err := dir.Insert(ctx, users.User{Email: "b@uni.edu", Role: users.RoleStudent, Active: true})
			require.NoError(t, err)
			return notifications.NewSQLiteStorage(conn), a.ID, b.ID
		},
	}

	if url := os.Getenv("PG_TEST_URL"); url != "" {
		b["postgres"] = func(t *testing.T) (notifications.Storage, int64, int64) {
			ctx := context.Background()
			pool, err := pg.Connect(ctx, pg.Config{ConnectionString: url, RetryAttempts: 1})
			require.NoError(t, err)
			t.Cleanup(pool.Close)
			require.NoError(t, pg.Migrate(ctx, pool, db.PostgresMigrations(), logger.Discard()))
			_, err = pool.Exec(ctx, `TRUNCATE notifications, users RESTART IDENTITY CASCADE`)
			require.NoError(t, err)

			dir := users.NewPostgresDirectory(pool)
			a, err := dir.Insert(ctx, users.User{Email: "a@uni.edu", Role: users.RoleStudent, Active: true})
			require.NoError(t, err)
			b, err := dir.Insert(ctx, users.User{Email: "b@uni.edu", Role: users.RoleStudent, Active: true})
			require.NoError(t, err)
			return notifications.NewPostgresStorage(pool), a.ID, b.ID
		}
	}
	return b
}

func insert(t *testing.T, s notifications.Storage, userID int64, typ notifications.Type, at time.Time) *notifications.Notification {
	t.Helper()
	n := &notifications.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     "Title " + string(typ),
		Message:   "Message",
		CreatedAt: at,
	}
	require.NoError(t, s.Insert(context.Background(), n))
	require.NotZero(t, n.ID)
	return n
}

func ids(list []notifications.Notification) []int64 {
	out := make([]int64, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

func TestStorageBackends(t *testing.T) {
	for name, setup := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("insert and find round trip", func(t *testing.T) {
				s, alice, _ := setup(t)
				n := &notifications.Notification{
					UserID:    alice,
					Type:      notifications.TypeEnrollmentApproved,
					Title:     "Enrollment Approved",
					Message:   `Your enrollment in "Algorithms" has been approved.`,
					Metadata:  notifications.Metadata{"courseId": float64(7), "status": "approved"},
					CreatedAt: base,
				}
				require.NoError(t, s.Insert(ctx, n))

				got, err := s.FindByID(ctx, n.ID)
				require.NoError(t, err)
				assert.Equal(t, n.ID, got.ID)
				assert.Equal(t, alice, got.UserID)
				assert.Equal(t, n.Type, got.Type)
				assert.Equal(t, n.Title, got.Title)
				assert.Equal(t, n.Message, got.Message)
				assert.Equal(t, n.Metadata, got.Metadata)
				assert.False(t, got.Read)
				assert.Nil(t, got.ReadAt)
				assert.True(t, base.Equal(got.CreatedAt), "created at %v", got.CreatedAt)
			})

			t.Run("find missing", func(t *testing.T) {
				s, _, _ := setup(t)
				_, err := s.FindByID(ctx, 404)
				assert.ErrorIs(t, err, notifications.ErrNotFound)
			})

			t.Run("list is newest first and paginated", func(t *testing.T) {
				s, alice, bob := setup(t)
				first := insert(t, s, alice, notifications.TypeSystem, base)
				second := insert(t, s, alice, notifications.TypeSystem, base.Add(time.Minute))
				tieA := insert(t, s, alice, notifications.TypeSystem, base.Add(2*time.Minute))
				tieB := insert(t, s, alice, notifications.TypeSystem, base.Add(2*time.Minute))
				insert(t, s, bob, notifications.TypeSystem, base.Add(time.Hour))

				all, total, err := s.List(ctx, alice, notifications.ListOptions{})
				require.NoError(t, err)
				assert.Equal(t, 4, total)
				assert.Equal(t, []int64{tieB.ID, tieA.ID, second.ID, first.ID}, ids(all))

				page, total, err := s.List(ctx, alice, notifications.ListOptions{Limit: 2, Offset: 2})
				require.NoError(t, err)
				assert.Equal(t, 4, total)
				assert.Equal(t, []int64{second.ID, first.ID}, ids(page))

				empty, total, err := s.List(ctx, alice, notifications.ListOptions{Limit: 2, Offset: 10})
				require.NoError(t, err)
				assert.Equal(t, 4, total)
				assert.Empty(t, empty)

				far, total, err := s.List(ctx, alice, notifications.ListOptions{Limit: 4, Offset: math.MaxInt - 4})
				require.NoError(t, err)
				assert.Equal(t, 4, total)
				assert.Empty(t, far)
			})

			t.Run("read state", func(t *testing.T) {
				s, alice, bob := setup(t)
				a1 := insert(t, s, alice, notifications.TypeSystem, base)
				a2 := insert(t, s, alice, notifications.TypeCourseUpdated, base.Add(time.Minute))
				a3 := insert(t, s, alice, notifications.TypeCourseUpdated, base.Add(2*time.Minute))
				b1 := insert(t, s, bob, notifications.TypeSystem, base)

				readAt := base.Add(time.Hour)
				require.NoError(t, s.MarkRead(ctx, a1.ID, readAt))
				require.NoError(t, s.MarkRead(ctx, a1.ID, readAt.Add(time.Hour)))

				got, err := s.FindByID(ctx, a1.ID)
				require.NoError(t, err)
				assert.True(t, got.Read)
				require.NotNil(t, got.ReadAt)
				assert.True(t, readAt.Equal(*got.ReadAt), "read at must not move")

				unread, err := s.CountUnread(ctx, alice)
				require.NoError(t, err)
				assert.Equal(t, 2, unread)

				onlyUnread, total, err := s.List(ctx, alice, notifications.ListOptions{OnlyUnread: true})
				require.NoError(t, err)
				assert.Equal(t, 2, total)
				assert.Equal(t, []int64{a3.ID, a2.ID}, ids(onlyUnread))

				flipped, err := s.MarkAllRead(ctx, alice, readAt)
				require.NoError(t, err)
				assert.Equal(t, 2, flipped)

				flipped, err = s.MarkAllRead(ctx, alice, readAt)
				require.NoError(t, err)
				assert.Zero(t, flipped)

				other, err := s.FindByID(ctx, b1.ID)
				require.NoError(t, err)
				assert.False(t, other.Read)
			})

			t.Run("delete", func(t *testing.T) {
				s, alice, bob := setup(t)
				keep := insert(t, s, alice, notifications.TypeSystem, base)
				gone := insert(t, s, alice, notifications.TypeSystem, base)
				read1 := insert(t, s, alice, notifications.TypeSystem, base)
				read2 := insert(t, s, alice, notifications.TypeSystem, base)
				bobs := insert(t, s, bob, notifications.TypeSystem, base)

				require.NoError(t, s.Delete(ctx, gone.ID))
				assert.ErrorIs(t, s.Delete(ctx, gone.ID), notifications.ErrNotFound)

				for _, id := range []int64{read1.ID, read2.ID, bobs.ID} {
					require.NoError(t, s.MarkRead(ctx, id, base))
				}
				removed, err := s.DeleteRead(ctx, alice)
				require.NoError(t, err)
				assert.Equal(t, 2, removed)

				left, total, err := s.List(ctx, alice, notifications.ListOptions{})
				require.NoError(t, err)
				assert.Equal(t, 1, total)
				assert.Equal(t, []int64{keep.ID}, ids(left))

				_, err = s.FindByID(ctx, bobs.ID)
				assert.NoError(t, err, "other users' read notifications stay")
			})

			t.Run("counts", func(t *testing.T) {
				s, alice, bob := setup(t)
				insert(t, s, alice, notifications.TypeAssignmentGraded, base.Add(-30*24*time.Hour))
				insert(t, s, alice, notifications.TypeAssignmentGraded, base)
				insert(t, s, alice, notifications.TypeSystem, base.Add(time.Hour))
				insert(t, s, bob, notifications.TypeSystem, base)

				byType, err := s.CountByType(ctx, alice)
				require.NoError(t, err)
				assert.Equal(t, map[notifications.Type]int{
					notifications.TypeAssignmentGraded: 2,
					notifications.TypeSystem:           1,
				}, byType)

				since, err := s.CountSince(ctx, alice, base)
				require.NoError(t, err)
				assert.Equal(t, 2, since)
			})
		})
	}
}

func TestSQLiteStorageRejectsUnknownUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn, err := sqlite.Open(ctx, sqlite.Config{Path: sqlite.InMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, sqlite.Migrate(ctx, conn, db.SQLiteMigrations(), logger.Discard()))

	err = notifications.NewSQLiteStorage(conn).Insert(ctx, &notifications.Notification{
		UserID: 999, Type: notifications.TypeSystem, Title: "t", Message: "m", CreatedAt: base,
	})
	assert.ErrorIs(t, err, notifications.ErrUserNotFound)
}
