// Package pgstore implements queue.Store on PostgreSQL with pgx/v5.
//
// Records live in the queue_jobs table created by the embedded goose
// Migrations. Every timestamp is supplied by the store's clock rather than
// NOW(), so all drivers agree on time in tests and across hosts.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//	store := pgstore.New(pool)
package pgstore
