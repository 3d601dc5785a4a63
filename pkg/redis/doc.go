// Package redis connects to the Redis server backing the queue's redisstore
// driver.
//
// Config is populated from REDIS_* environment variables. Connect retries the
// initial ping so a worker started alongside Redis waits for it instead of
// crashing. Healthcheck checks that the server answers and accepts scripted
// writes, since every redisstore transition is a Lua script.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := redisstore.New(client, redisstore.WithKeyPrefix(cfg.KeyPrefix))
//	check := redis.Healthcheck(client, cfg.KeyPrefix)
package redis
