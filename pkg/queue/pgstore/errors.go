package pgstore

import (
	"errors"

	"github.com/dmitrymomot/queuekit/pkg/pg"
)

// ErrSchemaMissing is joined to storage errors raised because the queue_jobs table does not exist
var ErrSchemaMissing = errors.New("queue/pgstore: queue_jobs table missing, apply Migrations first")

func wrapErr(err error) error {
	if pg.IsUndefinedTableError(err) {
		return errors.Join(ErrSchemaMissing, err)
	}
	return err
}
