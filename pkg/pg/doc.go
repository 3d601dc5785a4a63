// Package pg bootstraps PostgreSQL access for the queue's pgstore driver
// using pgx/v5.
//
// Config is populated from environment variables (PG_*). Connect opens a
// *pgxpool.Pool, retrying with a growing interval until the database accepts
// connections. Migrate applies goose migrations from an embedded filesystem,
// so a binary carries its own schema:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, slog.Default()); err != nil {
//		return err
//	}
//
// Healthcheck returns a probe compatible with httpserver readiness checks.
package pg
