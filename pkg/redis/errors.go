package redis

import "errors"

// Failure modes of the server backing the queue's redisstore driver
var (
	// ErrEmptyConnectionURL is returned by Connect when REDIS_URL is blank
	ErrEmptyConnectionURL = errors.New("redis: empty connection URL")

	// ErrInvalidConnectionURL is returned by Connect when the URL does not parse
	ErrInvalidConnectionURL = errors.New("redis: invalid connection URL")

	// ErrNotReady is returned by Connect when no ping succeeds within the attempts
	ErrNotReady = errors.New("redis: server did not become ready")

	// ErrUnreachable is reported by Healthcheck when the server does not answer a ping
	ErrUnreachable = errors.New("redis: server unreachable")

	// ErrScriptingUnavailable is reported by Healthcheck when EVAL is refused.
	// Every queue state change runs as a Lua script.
	ErrScriptingUnavailable = errors.New("redis: Lua scripting unavailable")

	// ErrReadOnly is reported by Healthcheck when the server is a read-only replica
	ErrReadOnly = errors.New("redis: server is read-only, queue writes need the primary")
)
