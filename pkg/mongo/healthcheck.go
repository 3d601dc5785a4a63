package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Healthcheck returns a readiness check that requires a writable primary.
// It reports ErrNoPrimary when only secondaries answer and ErrUnreachable otherwise.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		err := client.Ping(ctx, readpref.Primary())
		if err == nil {
			return nil
		}
		if client.Ping(ctx, readpref.Nearest()) == nil {
			return errors.Join(ErrNoPrimary, err)
		}
		return errors.Join(ErrUnreachable, err)
	}
}
