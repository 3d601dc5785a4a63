package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/queuekit/pkg/logger"
)

// DefaultSettleTimeout bounds the write that stores a job's outcome
const DefaultSettleTimeout = 10 * time.Second

// BatchOptions bounds a sweep
type BatchOptions struct {
	// Size caps the number of executed records; <= 0 means unbounded
	Size int
	// Queue restricts the sweep to one queue; empty means all queues
	Queue string
	// MaxExecutionTime is a soft budget checked between executions; <= 0 means unbounded
	MaxExecutionTime time.Duration
}

// BatchResult summarizes a sweep
type BatchResult struct {
	Processed     int           `json:"processed"`
	Successful    int           `json:"successful"`
	Failed        int           `json:"failed"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Sweeper selects eligible records and runs them in priority order,
// applying the retry policy to every failed execution.
type Sweeper struct {
	store      Reserver
	runner     Runner
	backoff    Backoff
	jitter     bool
	jobTimeout time.Duration
	settleTTL  time.Duration
	owner      string
	logger     Logger
	now        func() time.Time
}

// SweeperOption configures a Sweeper
type SweeperOption func(*Sweeper)

// WithSweepBackoff sets the delay calculator for retries
func WithSweepBackoff(b Backoff) SweeperOption {
	return func(s *Sweeper) {
		s.backoff = b
	}
}

// WithRetryJitter toggles jitter on retry delays. Enabled by default.
func WithRetryJitter(enabled bool) SweeperOption {
	return func(s *Sweeper) {
		s.jitter = enabled
	}
}

// WithJobTimeout enables stuck job recovery: records processing for longer
// than d are reclaimed as failed attempts at the start of every sweep.
func WithJobTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithSettleTimeout bounds the store write that records a job's outcome.
// The write runs detached from the sweep context so a shutdown does not lose finished work.
func WithSettleTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.settleTTL = d
		}
	}
}

// WithOwner sets the identity written into reserved records
func WithOwner(owner string) SweeperOption {
	return func(s *Sweeper) {
		if owner != "" {
			s.owner = owner
		}
	}
}

func WithSweepLogger(l Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used for eligibility and retry scheduling
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper creates a sweeper reserving from store and executing with runner
func NewSweeper(store Reserver, runner Runner, opts ...SweeperOption) (*Sweeper, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if runner == nil {
		return nil, ErrRunnerNil
	}

	s := &Sweeper{
		store:     store,
		runner:    runner,
		backoff:   DefaultBackoff,
		jitter:    true,
		settleTTL: DefaultSettleTimeout,
		owner:     uuid.NewString(),
		logger:    NopLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Owner returns the identity this sweeper reserves records under
func (s *Sweeper) Owner() string {
	return s.owner
}

// Process runs every eligible record of queue (all queues when empty) once
func (s *Sweeper) Process(ctx context.Context, queue string) (BatchResult, error) {
	return s.ProcessBatch(ctx, BatchOptions{Queue: queue})
}

// ProcessBatch runs eligible records until Size executions or MaxExecutionTime elapse.
// The budget is checked before each reservation; a running job is never interrupted.
// Job failures are recorded on the record; only storage faults are returned.
func (s *Sweeper) ProcessBatch(ctx context.Context, opts BatchOptions) (res BatchResult, err error) {
	start := s.now()
	defer func() { res.ExecutionTime = s.now().Sub(start) }()

	if s.jobTimeout > 0 {
		if _, err := s.RecoverStuck(ctx); err != nil {
			return res, err
		}
	}

	ids, err := s.store.Eligible(ctx, opts.Queue, start, opts.Size)
	if err != nil {
		return res, fmt.Errorf("select eligible jobs: %w", err)
	}

	for _, id := range ids {
		if opts.Size > 0 && res.Processed >= opts.Size {
			break
		}
		if opts.MaxExecutionTime > 0 && s.now().Sub(start) >= opts.MaxExecutionTime {
			break
		}
		if ctx.Err() != nil {
			break
		}

		rec, err := s.store.Reserve(ctx, id, s.now(), s.owner)
		if err != nil {
			return res, fmt.Errorf("reserve job %d: %w", id, err)
		}
		if rec == nil {
			continue
		}

		ok, err := s.run(ctx, rec)
		if err != nil {
			return res, err
		}
		res.Processed++
		if ok {
			res.Successful++
		} else {
			res.Failed++
		}
	}

	return res, nil
}

// RecoverStuck reclaims processing records reserved longer than the job timeout ago,
// counting each as a failed attempt. Returns the number of reclaimed records.
func (s *Sweeper) RecoverStuck(ctx context.Context) (int, error) {
	if s.jobTimeout <= 0 {
		return 0, nil
	}

	stuck, err := s.store.Stuck(ctx, s.now().Add(-s.jobTimeout))
	if err != nil {
		return 0, fmt.Errorf("select stuck jobs: %w", err)
	}

	recovered := 0
	for _, rec := range stuck {
		settled, err := s.settleFailure(ctx, rec, ErrJobTimedOut)
		if err != nil {
			return recovered, err
		}
		if settled {
			recovered++
		}
	}
	return recovered, nil
}

// run executes one reserved record and stores the outcome.
// Both the job and the outcome write survive sweep cancellation, so a shutdown
// lets the job finish and never leaves it in processing.
func (s *Sweeper) run(ctx context.Context, rec *Record) (bool, error) {
	detached := context.WithoutCancel(ctx)
	execErr := s.runner.Execute(detached, rec)

	settleCtx, cancel := context.WithTimeout(detached, s.settleTTL)
	defer cancel()

	if execErr == nil {
		if _, err := s.store.Complete(settleCtx, rec.ID, rec.Attempts+1); err != nil {
			return false, fmt.Errorf("complete job %d: %w", rec.ID, err)
		}
		return true, nil
	}

	if _, err := s.settleFailure(settleCtx, rec, execErr); err != nil {
		return false, err
	}
	return false, nil
}

// settleFailure either schedules a retry or marks rec failed, depending on remaining attempts
func (s *Sweeper) settleFailure(ctx context.Context, rec *Record, cause error) (bool, error) {
	attempts := rec.Attempts + 1
	ref := rec.Ref()

	if attempts >= rec.Options.MaxAttempts {
		ok, err := s.store.Fail(ctx, rec.ID, attempts, cause.Error())
		if err != nil {
			return false, fmt.Errorf("fail job %d: %w", rec.ID, err)
		}
		if ok {
			s.logger.Error(ctx, "job failed permanently", ref,
				logger.Attempt(attempts),
				logger.Error(cause),
			)
		}
		return ok, nil
	}

	delay := s.backoff.CalculateDelay(rec.Options.Backoff, rec.Options.RetryDelay, attempts, s.jitter)
	ok, err := s.store.Release(ctx, rec.ID, attempts, s.now().Add(delay))
	if err != nil {
		return false, fmt.Errorf("release job %d: %w", rec.ID, err)
	}
	if ok {
		s.logger.Debug(ctx, "job scheduled for retry", ref,
			logger.Attempt(attempts),
			logger.Duration(delay),
			logger.Error(cause),
		)
	}
	return ok, nil
}
