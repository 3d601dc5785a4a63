// Package redisstore implements queue.Store on Redis with go-redis/v9.
//
// Each record is a Hash under <prefix>job:<id>. Waiting ids live in two per
// queue Sorted Sets: scheduled:<queue> scored by available_at, and
// ready:<queue> holding due ids scored by rank (priority descending, then id).
// Eligible promotes due ids from scheduled to ready and reads the head of
// ready, so a sweep never scans the whole backlog. Global Sorted Sets index
// processing (scored by reserved_at), completed and failed (scored by
// updated_at). Per queue Hashes keep status counts for Stats. Every
// transition runs as a Lua script, so a record is reserved by exactly one
// caller.
//
// Scripts derive count keys from their arguments, so the store expects a
// single Redis node or a cluster hash tag in the key prefix.
//
//	client, err := redis.Connect(ctx, cfg)
//	store := redisstore.New(client, redisstore.WithKeyPrefix(cfg.KeyPrefix))
package redisstore
