package queue

import (
	"log/slog"
	"time"
)

// SchedulerOption is a functional option for configuring a scheduler
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	checkInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// WithCheckInterval sets how often the scheduler looks for due occurrences
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithSchedulerLogger sets the logger for the scheduler
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSchedulerClock sets the time source schedules are evaluated against
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(o *schedulerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// SchedulerTaskOption configures the dispatches of one recurring task
type SchedulerTaskOption func(*schedulerTaskOptions)

type schedulerTaskOptions struct {
	payload Payload
	enqueue []EnqueueOption
}

// WithTaskQueue sets the queue every occurrence is dispatched to
func WithTaskQueue(queue string) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		o.enqueue = append(o.enqueue, WithQueue(queue))
	}
}

// WithTaskPriority sets the priority of every occurrence, clamped to 0-10
func WithTaskPriority(p Priority) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		o.enqueue = append(o.enqueue, WithPriority(int(ClampPriority(int(p)))))
	}
}

// WithTaskMaxAttempts caps the attempts of every occurrence
func WithTaskMaxAttempts(n int) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		if n > 0 {
			o.enqueue = append(o.enqueue, WithMaxAttempts(n))
		}
	}
}

// WithTaskPayload sets the payload sent with every occurrence
func WithTaskPayload(p Payload) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		o.payload = p
	}
}
