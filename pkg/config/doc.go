// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for struct parsing. Every component in this
// module declares its settings as a struct with `env` tags (queue.Config,
// pg.Config, redis.Config, mongo.Config, httpserver.Config,
// archive.Config) and loads it through Load:
//
//	if err := config.LoadEnv(envFile); err != nil {
//		return err
//	}
//
//	var cfg queue.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Each configuration type is parsed once per process and cached. WithPrefix
// loads the same type under a variable prefix and caches it separately;
// WithEnvironment parses from an explicit map and bypasses the cache, which is
// what tests use. ResetCache and ForceReload drop cached values.
//
// Errors are sentinel values for errors.Is: ErrParsingConfig,
// ErrLoadingEnvFile and ErrNilPointer.
package config
