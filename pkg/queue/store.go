package queue

import (
	"context"
	"fmt"
	"time"
)

// DefaultFailedJobsLimit is the page size used when FailedJobs is called with limit <= 0
const DefaultFailedJobsLimit = 50

// Dispatcher accepts newly created job records
type Dispatcher interface {
	// Add persists a new record and returns its id.
	// Input is normalized, never rejected; only storage faults produce an error.
	Add(ctx context.Context, task string, payload Payload, opts ...EnqueueOption) (int64, error)
}

// Reserver exposes the primitives a sweep is built from.
// Every transition out of processing is conditional: calls against a record
// that is no longer processing are no-ops returning false.
type Reserver interface {
	// Eligible returns ids of records that may run at now, ordered by priority
	// descending then id ascending. Empty queue means all queues; limit <= 0 means no limit.
	Eligible(ctx context.Context, queue string, now time.Time, limit int) ([]int64, error)

	// Reserve atomically moves an eligible record to processing.
	// Returns nil when another worker won the race or the record is gone.
	Reserve(ctx context.Context, id int64, now time.Time, owner string) (*Record, error)

	// Complete marks a processing record as completed
	Complete(ctx context.Context, id int64, attempts int) (bool, error)

	// Release returns a processing record to pending, runnable again at availableAt
	Release(ctx context.Context, id int64, attempts int, availableAt time.Time) (bool, error)

	// Fail marks a processing record as failed with the exception message
	Fail(ctx context.Context, id int64, attempts int, exception string) (bool, error)

	// Stuck returns processing records reserved before the given instant
	Stuck(ctx context.Context, reservedBefore time.Time) ([]*Record, error)
}

// Finder looks up single records
type Finder interface {
	// Find returns the record with id in any status, nil when absent
	Find(ctx context.Context, id int64) (*Record, error)
}

// StatsReader reports per status counts
type StatsReader interface {
	// Stats counts records per status. Empty queue means all queues.
	// An unknown queue yields zero counts.
	Stats(ctx context.Context, queue string) (Stats, error)
}

// FailedJobStore gives operators access to terminally failed records
type FailedJobStore interface {
	// FailedJobs pages through failed records, most recently failed first
	FailedJobs(ctx context.Context, limit, offset int) ([]*Record, error)

	// FailedJob returns the record when it exists and is failed, nil otherwise
	FailedJob(ctx context.Context, id int64) (*Record, error)

	// RetryFailedJob moves one failed record back to pending.
	// Returns false when the record is absent or not failed.
	RetryFailedJob(ctx context.Context, id int64) (bool, error)

	// RetryAllFailedJobs moves every failed record, optionally of one queue, back to pending
	RetryAllFailedJobs(ctx context.Context, queue string) (int, error)
}

// Maintainer removes records that are no longer useful
type Maintainer interface {
	// PurgeOldJobs removes completed and failed records last updated more than olderThan ago
	PurgeOldJobs(ctx context.Context, olderThan time.Duration) (int, error)

	// PurgeFailedJobs removes failed records, optionally of one queue
	PurgeFailedJobs(ctx context.Context, queue string) (int, error)

	// Cleanup removes every completed and failed record regardless of age
	Cleanup(ctx context.Context) (int, error)
}

// Store is the full storage driver contract
type Store interface {
	Dispatcher
	Reserver
	Finder
	StatsReader
	FailedJobStore
	Maintainer
}

// EnqueueOption configures a single Add call
type EnqueueOption func(*EnqueueOptions)

// EnqueueOptions is the accumulated input of an Add call
type EnqueueOptions struct {
	Queue    string
	Priority int
	Delay    time.Duration
	Options  Options
}

func defaultEnqueueOptions() EnqueueOptions {
	return EnqueueOptions{
		Queue:    DefaultQueueName,
		Priority: int(PriorityDefault),
		Options:  DefaultOptions(),
	}
}

// WithQueue sets the target queue. Empty names keep the default queue.
func WithQueue(queue string) EnqueueOption {
	return func(o *EnqueueOptions) {
		if queue != "" {
			o.Queue = queue
		}
	}
}

// WithPriority sets the priority. Values outside 0-10 are clamped on insert.
func WithPriority(p int) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.Priority = p
	}
}

// WithDelay postpones the first run. Non-positive delays run immediately.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.Delay = d
	}
}

func WithMaxAttempts(n int) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.Options.MaxAttempts = n
	}
}

func WithTimeout(d time.Duration) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.Options.Timeout = d
	}
}

func WithBackoff(strategy BackoffStrategy) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.Options.Backoff = strategy
	}
}

// WithRetryDelay sets the base delay fed to the backoff strategy
func WithRetryDelay(d time.Duration) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.Options.RetryDelay = d
	}
}

func WithTags(tags ...string) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.Options.Tags = append(o.Options.Tags, tags...)
	}
}

// WithOptions overlays the non-zero fields of opts
func WithOptions(opts Options) EnqueueOption {
	return func(o *EnqueueOptions) {
		if opts.MaxAttempts > 0 {
			o.Options.MaxAttempts = opts.MaxAttempts
		}
		if opts.Timeout > 0 {
			o.Options.Timeout = opts.Timeout
		}
		if opts.Backoff != "" {
			o.Options.Backoff = opts.Backoff
		}
		if opts.RetryDelay > 0 {
			o.Options.RetryDelay = opts.RetryDelay
		}
		if len(opts.Tags) > 0 {
			o.Options.Tags = append(o.Options.Tags, opts.Tags...)
		}
	}
}

// ApplyEnqueueOptions folds opts over the defaults
func ApplyEnqueueOptions(opts ...EnqueueOption) EnqueueOptions {
	o := defaultEnqueueOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// NewRecord builds a normalized record ready for insertion. ID is left for the driver.
// The status is delayed when a positive delay is requested, pending otherwise.
func NewRecord(task string, payload Payload, now time.Time, opts ...EnqueueOption) (*Record, error) {
	if task == "" {
		return nil, ErrEmptyTaskName
	}

	raw, err := EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", task, err)
	}

	o := ApplyEnqueueOptions(opts...)
	now = now.UTC()

	rec := &Record{
		Task:        task,
		Payload:     raw,
		Queue:       o.Queue,
		Priority:    ClampPriority(o.Priority),
		Status:      StatusPending,
		AvailableAt: now,
		Options:     o.Options.normalize(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if o.Delay > 0 {
		rec.Status = StatusDelayed
		rec.AvailableAt = now.Add(o.Delay)
	}
	return rec, nil
}
