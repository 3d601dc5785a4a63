package redis

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// writeCheck exercises the two capabilities redisstore depends on: EVAL and writes
var writeCheck = redis.NewScript(`return redis.call('SET', KEYS[1], '1', 'PX', 1000)`)

// Healthcheck returns a readiness check for a queue server.
// It pings, then runs a short lived write through a script under keyPrefix.
// Failures are reported as ErrUnreachable, ErrReadOnly or ErrScriptingUnavailable.
func Healthcheck(client redis.UniversalClient, keyPrefix string) func(context.Context) error {
	key := keyPrefix + "healthcheck"
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrUnreachable, err)
		}
		if err := writeCheck.Run(ctx, client, []string{key}).Err(); err != nil {
			return classifyScriptErr(err)
		}
		return nil
	}
}

// classifyScriptErr maps a failed health write onto the failure modes above
func classifyScriptErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "READONLY"):
		return errors.Join(ErrReadOnly, err)
	case strings.Contains(msg, "NOSCRIPT"), strings.Contains(msg, "unknown command"), strings.Contains(msg, "ERR Error running script"):
		return errors.Join(ErrScriptingUnavailable, err)
	default:
		return errors.Join(ErrUnreachable, err)
	}
}
