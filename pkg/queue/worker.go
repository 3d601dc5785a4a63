package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/queuekit/pkg/logger"
)

// Archiver stores failed records of one queue before they are purged
type Archiver interface {
	Archive(ctx context.Context, queue string, records []*Record) error
}

// Worker runs sweeps on a fixed interval and performs periodic maintenance
type Worker struct {
	manager  *Manager
	queues   []string
	workerID string
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	// Configuration
	pollInterval        time.Duration
	batchSize           int
	maxExecutionTime    time.Duration
	maintenanceInterval time.Duration
	retention           time.Duration
	archiver            Archiver
	logger              *slog.Logger

	// State management
	cancel   context.CancelFunc
	stopping atomic.Bool
	sweeps   atomic.Int64

	// Last storage error per source: "maintenance" or "sweep:<queue>"
	errMu sync.Mutex
	errs  map[string]error
}

const maintenanceSource = "maintenance"

func sweepSource(queue string) string { return "sweep:" + queue }

// NewWorker creates a worker sweeping through manager.
// The manager must have a Runner, otherwise every sweep would fail.
func NewWorker(manager *Manager, opts ...WorkerOption) (*Worker, error) {
	if manager == nil {
		return nil, ErrStoreNil
	}
	if manager.Runner() == nil {
		return nil, ErrRunnerNil
	}

	options := &workerOptions{
		queues:              []string{DefaultQueueName},
		pollInterval:        5 * time.Second,
		batchSize:           100,
		maxExecutionTime:    55 * time.Second,
		concurrency:         1,
		maintenanceInterval: time.Hour,
		retention:           7 * 24 * time.Hour,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	workerID := uuid.NewString()
	return &Worker{
		manager:             manager,
		queues:              options.queues,
		workerID:            workerID,
		sem:                 make(chan struct{}, options.concurrency),
		pollInterval:        options.pollInterval,
		batchSize:           options.batchSize,
		maxExecutionTime:    options.maxExecutionTime,
		maintenanceInterval: options.maintenanceInterval,
		retention:           options.retention,
		archiver:            options.archiver,
		errs:                make(map[string]error),
		logger: options.logger.With(
			logger.Component("worker"),
			logger.WorkerID(workerID),
		),
	}, nil
}

// Start begins sweeping in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopping.Store(false)
	w.wg.Add(1)
	w.mu.Unlock()

	go w.run(runCtx)

	w.logger.Info("worker started",
		slog.Any("queues", w.queues),
		slog.Int("concurrency", cap(w.sem)),
		logger.Duration(w.pollInterval))

	return nil
}

// Stop cancels the loop and waits for running sweeps to finish their current job
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return ErrWorkerNotStarted
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	w.cancel()
	w.cancel = nil

	w.logger.Info("worker stopping, waiting for active sweeps to complete")
	w.wg.Wait()
	w.logger.Info("worker stopped", slog.Int64("sweeps", w.sweeps.Load()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// Healthy reports whether the last sweep of every queue and the last maintenance pass succeeded.
// Returns the joined failures otherwise. A source clears only on its own next success.
func (w *Worker) Healthy() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()

	if len(w.errs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(w.errs))
	for _, source := range slices.Sorted(maps.Keys(w.errs)) {
		errs = append(errs, fmt.Errorf("%s: %w", source, w.errs[source]))
	}
	return errors.Join(errs...)
}

// Info returns the worker identity
func (w *Worker) Info() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID, hostname, os.Getpid()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var maintenance <-chan time.Time
	if w.maintenanceInterval > 0 {
		mt := time.NewTicker(w.maintenanceInterval)
		defer mt.Stop()
		maintenance = mt.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-maintenance:
			err := w.maintain(ctx)
			if ctx.Err() != nil {
				continue
			}
			w.recordErr(maintenanceSource, err)
			if err != nil {
				w.logger.Error("maintenance failed", logger.Error(err))
			}
		case <-ticker.C:
			for _, q := range w.queues {
				if !w.dispatchSweep(ctx, q) {
					break
				}
			}
		}
	}
}

// dispatchSweep starts a sweep of queue when a slot is free.
// Returns false when the worker is stopping.
func (w *Worker) dispatchSweep(ctx context.Context, queue string) bool {
	select {
	case w.sem <- struct{}{}:
	default:
		w.logger.Debug("all sweep slots busy, skipping queue", logger.Queue(queue))
		return true
	}

	// Use stopMu to ensure we don't add to WaitGroup after Stop() starts
	w.stopMu.Lock()
	if w.stopping.Load() {
		w.stopMu.Unlock()
		<-w.sem
		return false
	}
	w.wg.Add(1)
	w.stopMu.Unlock()

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.sweep(ctx, queue)
	}()
	return true
}

func (w *Worker) sweep(ctx context.Context, queue string) {
	res, err := w.manager.ProcessBatch(ctx, BatchOptions{
		Size:             w.batchSize,
		Queue:            queue,
		MaxExecutionTime: w.maxExecutionTime,
	})
	w.sweeps.Add(1)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.recordErr(sweepSource(queue), err)
		w.logger.Error("sweep failed", logger.Queue(queue), logger.Error(err))
		return
	}
	w.recordErr(sweepSource(queue), nil)

	if res.Processed > 0 {
		w.logger.Info("sweep finished",
			logger.Queue(queue),
			logger.Count(res.Processed),
			slog.Int("successful", res.Successful),
			slog.Int("failed", res.Failed),
			logger.Duration(res.ExecutionTime))
	}
}

// maintain archives failed records past retention, then purges all terminal records past retention
func (w *Worker) maintain(ctx context.Context) error {
	if w.archiver != nil {
		if err := w.archiveExpired(ctx); err != nil {
			return err
		}
	}

	removed, err := w.manager.PurgeOldJobs(ctx, w.retention)
	if err != nil {
		return fmt.Errorf("purge old jobs: %w", err)
	}
	if removed > 0 {
		w.logger.Info("purged old jobs", logger.Count(removed), logger.Duration(w.retention))
	}
	return nil
}

func (w *Worker) archiveExpired(ctx context.Context) error {
	cutoff := time.Now().Add(-w.retention)
	byQueue := make(map[string][]*Record)

	for offset := 0; ; offset += DefaultFailedJobsLimit {
		page, err := w.manager.FailedJobs(ctx, DefaultFailedJobsLimit, offset)
		if err != nil {
			return fmt.Errorf("list failed jobs: %w", err)
		}
		for _, rec := range page {
			if rec.UpdatedAt.Before(cutoff) {
				byQueue[rec.Queue] = append(byQueue[rec.Queue], rec)
			}
		}
		if len(page) < DefaultFailedJobsLimit {
			break
		}
	}

	var errs []error
	for queue, recs := range byQueue {
		if err := w.archiver.Archive(ctx, queue, recs); err != nil {
			errs = append(errs, fmt.Errorf("archive queue %q: %w", queue, err))
		}
	}
	return errors.Join(errs...)
}

// recordErr stores err as the state of source. A nil err clears it.
func (w *Worker) recordErr(source string, err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()

	if err == nil {
		delete(w.errs, source)
		return
	}
	w.errs[source] = err
}
