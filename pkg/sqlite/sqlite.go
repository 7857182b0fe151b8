// Package sqlite opens SQLite databases through sqlx and the pure-Go
// modernc.org/sqlite driver, and applies goose migrations to them.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrymomot/campusnotify/pkg/logger"
)

// InMemory is the path for a private in-memory database.
const InMemory = ":memory:"

var (
	ErrFailedToOpen            = errors.New("failed to open sqlite database")
	ErrFailedToApplyMigrations = errors.New("failed to apply sqlite migrations")
	ErrHealthcheckFailed       = errors.New("sqlite healthcheck failed")
)

// Config holds SQLite settings.
type Config struct {
	Path        string        `env:"SQLITE_PATH" envDefault:"campusnotify.db"`
	BusyTimeout time.Duration `env:"SQLITE_BUSY_TIMEOUT" envDefault:"5s"`
}

// Open opens the database at cfg.Path with foreign keys enabled.
// File databases use WAL journaling. SQLite serialises writers anyway, and an
// in-memory database exists per connection, so the pool is capped at one.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	path := cfg.Path
	if path == "" {
		path = InMemory
	}

	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()),
	}
	if path != InMemory {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	dsn := "file:" + path + "?" + strings.Join(pragmas, "&")

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Join(ErrFailedToOpen, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrFailedToOpen, err)
	}
	return db, nil
}

// Migrate applies every pending goose migration in fsys.
func Migrate(ctx context.Context, db *sqlx.DB, fsys fs.FS, log *slog.Logger) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.DB, fsys)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	for _, r := range results {
		log.DebugContext(ctx, "migration applied",
			logger.Component("sqlite"),
			slog.Int64("version", r.Source.Version),
			logger.Duration(r.Duration),
		)
	}
	return nil
}

// Healthcheck returns a check suitable for readiness endpoints.
func Healthcheck(db *sqlx.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
