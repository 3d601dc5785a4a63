package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/queuekit/pkg/config"
	"github.com/dmitrymomot/queuekit/pkg/httpserver"
	"github.com/dmitrymomot/queuekit/pkg/logger"
	mongoconn "github.com/dmitrymomot/queuekit/pkg/mongo"
	"github.com/dmitrymomot/queuekit/pkg/pg"
	"github.com/dmitrymomot/queuekit/pkg/queue"
	"github.com/dmitrymomot/queuekit/pkg/queue/mongostore"
	"github.com/dmitrymomot/queuekit/pkg/queue/pgstore"
	"github.com/dmitrymomot/queuekit/pkg/queue/redisstore"
	redisconn "github.com/dmitrymomot/queuekit/pkg/redis"
)

const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverRedis    = "redis"
	driverMongo    = "mongo"
)

var errUnknownDriver = errors.New("unknown queue driver")

// backend is an opened queue driver with its readiness check and cleanup
type backend struct {
	store   queue.Store
	check   httpserver.Check
	migrate func(context.Context) error
	close   func()
}

// openBackend connects the driver named by QUEUE_DRIVER
func openBackend(ctx context.Context, driver string, log *slog.Logger) (*backend, error) {
	log = log.With(logger.Component("backend"), slog.String("driver", driver))

	switch driver {
	case driverMemory:
		log.WarnContext(ctx, "memory driver keeps jobs in process, they are lost on exit")
		return &backend{
			store:   queue.NewMemoryStorage(),
			check:   httpserver.NewCheck(driverMemory, func(context.Context) error { return nil }),
			migrate: func(context.Context) error { return nil },
			close:   func() {},
		}, nil

	case driverPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			store: pgstore.New(pool),
			check: httpserver.NewCheck(driverPostgres, pg.Healthcheck(pool)),
			migrate: func(ctx context.Context) error {
				return pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log)
			},
			close: pool.Close,
		}, nil

	case driverRedis:
		var cfg redisconn.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redisconn.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:   redisstore.New(client, redisstore.WithKeyPrefix(cfg.KeyPrefix)),
			check:   httpserver.NewCheck(driverRedis, redisconn.Healthcheck(client, cfg.KeyPrefix)),
			migrate: func(context.Context) error { return nil },
			close: func() {
				if err := client.Close(); err != nil {
					log.Error("failed to close redis client", logger.Error(err))
				}
			},
		}, nil

	case driverMongo:
		var cfg mongoconn.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		db, err := mongoconn.NewWithDatabase(ctx, cfg, "")
		if err != nil {
			return nil, err
		}
		client := db.Client()
		store := mongostore.New(db)
		return &backend{
			store:   store,
			check:   httpserver.NewCheck(driverMongo, mongoconn.Healthcheck(client)),
			migrate: store.EnsureIndexes,
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Error("failed to disconnect mongodb client", logger.Error(err))
				}
			},
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", errUnknownDriver, driver)
}
