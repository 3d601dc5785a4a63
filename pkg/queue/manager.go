package queue

import (
	"context"
	"time"
)

// Manager presents one operational surface over a Store and an optional Runner.
// Every method delegates to the store or the sweeper without adding policy.
type Manager struct {
	store   Store
	runner  Runner
	sweeper *Sweeper
}

// ManagerOption configures a Manager
type ManagerOption func(*managerOptions)

type managerOptions struct {
	runner      Runner
	sweeperOpts []SweeperOption
}

// WithRunner sets the executor used by sweeps. Without one, sweeps return ErrRunnerNil.
func WithRunner(r Runner) ManagerOption {
	return func(o *managerOptions) {
		o.runner = r
	}
}

// WithSweeperOptions passes options through to the underlying Sweeper
func WithSweeperOptions(opts ...SweeperOption) ManagerOption {
	return func(o *managerOptions) {
		o.sweeperOpts = append(o.sweeperOpts, opts...)
	}
}

// NewManager creates a manager over store
func NewManager(store Store, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	m := &Manager{store: store, runner: options.runner}
	if options.runner != nil {
		sw, err := NewSweeper(store, options.runner, options.sweeperOpts...)
		if err != nil {
			return nil, err
		}
		m.sweeper = sw
	}
	return m, nil
}

// Store returns the underlying driver
func (m *Manager) Store() Store {
	return m.store
}

// Runner returns the configured executor, or nil
func (m *Manager) Runner() Runner {
	return m.runner
}

func (m *Manager) Add(ctx context.Context, task string, payload Payload, opts ...EnqueueOption) (int64, error) {
	return m.store.Add(ctx, task, payload, opts...)
}

// Process sweeps every eligible record of queue once; empty queue means all queues
func (m *Manager) Process(ctx context.Context, queue string) (BatchResult, error) {
	if m.sweeper == nil {
		return BatchResult{}, ErrRunnerNil
	}
	return m.sweeper.Process(ctx, queue)
}

// ProcessJobs sweeps at most maxJobs records of queue
func (m *Manager) ProcessJobs(ctx context.Context, queue string, maxJobs int) (BatchResult, error) {
	return m.ProcessBatch(ctx, BatchOptions{Size: maxJobs, Queue: queue})
}

func (m *Manager) ProcessBatch(ctx context.Context, opts BatchOptions) (BatchResult, error) {
	if m.sweeper == nil {
		return BatchResult{}, ErrRunnerNil
	}
	return m.sweeper.ProcessBatch(ctx, opts)
}

// RecoverStuckJobs reclaims records stuck in processing past the job timeout
func (m *Manager) RecoverStuckJobs(ctx context.Context) (int, error) {
	if m.sweeper == nil {
		return 0, ErrRunnerNil
	}
	return m.sweeper.RecoverStuck(ctx)
}

func (m *Manager) Job(ctx context.Context, id int64) (*Record, error) {
	return m.store.Find(ctx, id)
}

func (m *Manager) Stats(ctx context.Context, queue string) (Stats, error) {
	return m.store.Stats(ctx, queue)
}

func (m *Manager) FailedJobs(ctx context.Context, limit, offset int) ([]*Record, error) {
	return m.store.FailedJobs(ctx, limit, offset)
}

func (m *Manager) FailedJob(ctx context.Context, id int64) (*Record, error) {
	return m.store.FailedJob(ctx, id)
}

func (m *Manager) RetryFailedJob(ctx context.Context, id int64) (bool, error) {
	return m.store.RetryFailedJob(ctx, id)
}

func (m *Manager) RetryAllFailedJobs(ctx context.Context, queue string) (int, error) {
	return m.store.RetryAllFailedJobs(ctx, queue)
}

func (m *Manager) PurgeOldJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return m.store.PurgeOldJobs(ctx, olderThan)
}

func (m *Manager) PurgeFailedJobs(ctx context.Context, queue string) (int, error) {
	return m.store.PurgeFailedJobs(ctx, queue)
}

// Cleanup removes every completed and failed record regardless of age
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	return m.store.Cleanup(ctx)
}
