package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache stores one parsed copy per configuration type and prefix
type cache struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	globalCache = &cache{values: make(map[string]any)}

	defaultEnvLoaded sync.Once
)

// Option adjusts how Load parses the environment
type Option func(*env.Options)

// WithPrefix prepends prefix to every variable name, so one struct type can be
// loaded for several components (e.g. "EMAILS_" and "REPORTS_" workers).
func WithPrefix(prefix string) Option {
	return func(o *env.Options) {
		o.Prefix = prefix
	}
}

// WithEnvironment parses from the given map instead of the process environment.
// Results are not cached.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) {
		o.Environment = vars
	}
}

// LoadEnv loads one or more .env files into the process environment.
// Variables already set in the environment take precedence; earlier files win over later ones.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// MustLoadEnv works like LoadEnv but panics on failure
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(fmt.Sprintf("Failed to load env files: %v", err))
	}
}

// Load parses environment variables into v based on its `env` field tags.
// The default .env file is read once per process if present. Each configuration
// type (and prefix) is parsed once; later calls return the cached copy.
//
//	var cfg queue.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	var envOpts env.Options
	for _, opt := range opts {
		opt(&envOpts)
	}

	if envOpts.Environment != nil {
		return parse(v, envOpts)
	}

	key := cacheKey[T](envOpts.Prefix)

	globalCache.mu.RLock()
	cached, ok := globalCache.values[key]
	globalCache.mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	// Parse under the write lock so concurrent first loads run env.Parse once
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	if cached, ok := globalCache.values[key]; ok {
		*v = cached.(T)
		return nil
	}
	if err := parse(v, envOpts); err != nil {
		return err
	}
	globalCache.values[key] = *v
	return nil
}

// MustLoad works like Load but panics if configuration loading fails
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

// ForceReload parses v again, replacing the cached copy
func ForceReload[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	var envOpts env.Options
	for _, opt := range opts {
		opt(&envOpts)
	}

	globalCache.mu.Lock()
	delete(globalCache.values, cacheKey[T](envOpts.Prefix))
	globalCache.mu.Unlock()

	return Load(v, opts...)
}

// ResetCache forgets every cached configuration
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	globalCache.values = make(map[string]any)
}

func parse[T any](v *T, opts env.Options) error {
	if err := env.ParseWithOptions(v, opts); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// cacheKey identifies T loaded with prefix
func cacheKey[T any](prefix string) string {
	t := reflect.TypeFor[T]()
	return prefix + "|" + t.String()
}
