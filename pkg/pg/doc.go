// Package pg provides PostgreSQL helpers built on pgx: a retrying pool
// constructor, a readiness check, goose migrations over an fs.FS, and error
// classification helpers.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil { ... }
//	if err := pg.Migrate(ctx, pool, db.PostgresMigrations(), log); err != nil { ... }
package pg
