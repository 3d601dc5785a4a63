package mongo

import "errors"

// Failure modes of the deployment backing the queue's mongostore driver
var (
	// ErrConnect is returned when New exhausts its attempts
	ErrConnect = errors.New("mongo: could not connect to the queue database")

	// ErrDatabaseNotSet is returned when neither the config nor the caller names a database
	ErrDatabaseNotSet = errors.New("mongo: queue database name is not set")

	// ErrUnreachable is reported by Healthcheck when no member of the deployment answers
	ErrUnreachable = errors.New("mongo: queue database unreachable")

	// ErrNoPrimary is reported by Healthcheck when members answer but none accepts writes.
	// Reservations are writes, so sweeps stall until a primary is elected.
	ErrNoPrimary = errors.New("mongo: no writable primary for queue reservations")
)
