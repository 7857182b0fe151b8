// Package db embeds the SQL schema for every supported storage driver.
package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations
var migrations embed.FS

// PostgresMigrations returns the goose migrations for PostgreSQL.
func PostgresMigrations() fs.FS {
	return mustSub("migrations/postgres")
}

// SQLiteMigrations returns the goose migrations for SQLite.
func SQLiteMigrations() fs.FS {
	return mustSub("migrations/sqlite")
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
