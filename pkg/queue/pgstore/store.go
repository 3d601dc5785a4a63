package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

var _ queue.Store = (*Store)(nil)

// DB is the subset of *pgxpool.Pool the store uses; a pgx.Tx satisfies it too
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements queue.Store on PostgreSQL.
// Reservation is a conditional UPDATE, so concurrent sweeps never claim the same row.
type Store struct {
	db  DB
	now func() time.Time
}

// Option configures the Store
type Option func(*Store)

// WithClock sets the time source used for every timestamp the store writes
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store over db. The caller owns the pool lifecycle
// and must apply Migrations before use.
func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
