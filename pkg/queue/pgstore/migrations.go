package pgstore

import "embed"

// Migrations holds the goose migrations for the queue_jobs table.
// Apply them with pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log).
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations containing the SQL files
const MigrationsDir = "migrations"
