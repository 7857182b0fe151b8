package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/campusnotify/internal/db"
	"github.com/dmitrymomot/campusnotify/pkg/httpserver"
	"github.com/dmitrymomot/campusnotify/pkg/notifications"
	"github.com/dmitrymomot/campusnotify/pkg/pg"
	"github.com/dmitrymomot/campusnotify/pkg/ratelimiter"
	"github.com/dmitrymomot/campusnotify/pkg/sqlite"
	"github.com/dmitrymomot/campusnotify/pkg/users"
)

// BackendConfig selects the storage driver. Only the section matching
// Driver is read.
type BackendConfig struct {
	Driver   string
	SQLite   sqlite.Config
	Postgres pg.Config
}

// Backend is the storage a Service runs on, together with its user
// directory and readiness checks.
type Backend struct {
	Notifications notifications.Storage
	Users         users.Lookup
	Checks        map[string]httpserver.Check
	close         func() error
}

// Close releases the database handle.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend connects to the configured driver and applies its migrations.
// The memory driver starts with an empty user directory, so it only suits
// tests and local experiments.
func OpenBackend(ctx context.Context, cfg BackendConfig, log *slog.Logger) (*Backend, error) {
	switch cfg.Driver {
	case DriverMemory:
		return &Backend{
			Notifications: notifications.NewMemoryStorage(),
			Users:         users.NewMemoryDirectory(),
			Checks:        map[string]httpserver.Check{},
		}, nil

	case DriverSQLite:
		conn, err := sqlite.Open(ctx, cfg.SQLite)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(ctx, conn, db.SQLiteMigrations(), log); err != nil {
			return nil, errors.Join(err, conn.Close())
		}
		return &Backend{
			Notifications: notifications.NewSQLiteStorage(conn),
			Users:         users.NewSQLiteDirectory(conn),
			Checks:        map[string]httpserver.Check{"sqlite": sqlite.Healthcheck(conn)},
			close:         conn.Close,
		}, nil

	case DriverPostgres:
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool, db.PostgresMigrations(), log); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{
			Notifications: notifications.NewPostgresStorage(pool),
			Users:         users.NewPostgresDirectory(pool),
			Checks:        map[string]httpserver.Check{"postgres": pg.Healthcheck(pool)},
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrInvalidConfig, cfg.Driver)
}

// Limiters are the HTTP-side token buckets. A nil bucket disables that limit.
type Limiters struct {
	REST      *ratelimiter.Bucket
	Handshake *ratelimiter.Bucket
}

// NewLimiters builds the per-user REST bucket and the per-IP handshake
// bucket. With a Redis client the buckets are shared across processes;
// otherwise they live in memory and stop ends the sweeper.
func NewLimiters(cfg Config, client goredis.UniversalClient) (Limiters, func(), error) {
	var store ratelimiter.Store
	stop := func() {}
	if client != nil {
		store = ratelimiter.NewRedisStore(client, cfg.AppName+":rl:")
	} else if cfg.RateBurst > 0 || cfg.HandshakeBurst > 0 {
		mem := ratelimiter.NewMemoryStore(time.Minute)
		store, stop = mem, mem.Close
	}

	var (
		l   Limiters
		err error
	)
	if cfg.RateBurst > 0 {
		l.REST, err = ratelimiter.NewBucket(store, ratelimiter.Config{
			Capacity:       cfg.RateBurst,
			RefillRate:     cfg.RateRefill,
			RefillInterval: cfg.RateInterval,
		})
		if err != nil {
			stop()
			return Limiters{}, func() {}, err
		}
	}
	if cfg.HandshakeBurst > 0 {
		l.Handshake, err = ratelimiter.NewBucket(store, ratelimiter.Config{
			Capacity:       cfg.HandshakeBurst,
			RefillRate:     1,
			RefillInterval: cfg.HandshakeInterval,
		})
		if err != nil {
			stop()
			return Limiters{}, func() {}, err
		}
	}
	return l, stop, nil
}
