package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues              []string
	pollInterval        time.Duration
	batchSize           int
	maxExecutionTime    time.Duration
	concurrency         int
	maintenanceInterval time.Duration
	retention           time.Duration
	archiver            Archiver
	logger              *slog.Logger
}

// WithQueues sets which queues the worker sweeps. Empty names are ignored.
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		filtered := make([]string, 0, len(queues))
		for _, q := range queues {
			if q != "" {
				filtered = append(filtered, q)
			}
		}
		if len(filtered) > 0 {
			o.queues = filtered
		}
	}
}

// WithPollInterval sets how often the worker starts a sweep
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithBatchSize caps the records executed per queue per sweep
func WithBatchSize(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMaxExecutionTime sets the soft time budget of each sweep
func WithMaxExecutionTime(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.maxExecutionTime = d
		}
	}
}

// WithConcurrency sets how many queue sweeps may run at the same time
func WithConcurrency(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMaintenance purges terminal records older than retention every interval.
// A zero interval disables maintenance.
func WithMaintenance(interval, retention time.Duration) WorkerOption {
	return func(o *workerOptions) {
		o.maintenanceInterval = max(interval, 0)
		if retention > 0 {
			o.retention = retention
		}
	}
}

// WithArchiver saves failed records before maintenance purges them
func WithArchiver(a Archiver) WorkerOption {
	return func(o *workerOptions) {
		o.archiver = a
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
