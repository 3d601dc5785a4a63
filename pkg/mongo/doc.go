// Package mongo connects to the MongoDB deployment backing the queue's
// mongostore driver, using the official v2 driver.
//
// Config is read from MONGODB_* environment variables. New retries the
// initial ping; NewWithDatabase returns the configured database directly:
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "")
//	if err != nil {
//		return err
//	}
//	store := mongostore.New(db)
//	if err := store.EnsureIndexes(ctx); err != nil {
//		return err
//	}
package mongo
