package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/queuekit/pkg/logger"
)

// Scheduler dispatches recurring tasks through a Dispatcher.
// Every task keeps one future occurrence queued as a delayed record; once that
// occurrence is due the next one is dispatched. Occurrences missed while the
// scheduler was down collapse into a single one.
// Dispatches are not deduplicated across processes: run one scheduler per deployment.
type Scheduler struct {
	dispatcher Dispatcher
	tasks      map[string]*scheduledTask
	mu         sync.RWMutex
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

type scheduledTask struct {
	name     string
	schedule Schedule
	payload  Payload
	enqueue  []EnqueueOption
	pending  *time.Time // occurrence already dispatched
}

// NewScheduler creates a scheduler dispatching through d, usually a Store or a Manager
func NewScheduler(d Dispatcher, opts ...SchedulerOption) (*Scheduler, error) {
	if d == nil {
		return nil, ErrNoDispatcher
	}

	options := &schedulerOptions{
		checkInterval: 30 * time.Second,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		dispatcher: d,
		tasks:      make(map[string]*scheduledTask),
		interval:   options.checkInterval,
		logger:     options.logger.With(logger.Component("scheduler")),
		now:        options.now,
	}, nil
}

// AddTask registers task to be dispatched on schedule
func (s *Scheduler) AddTask(task string, schedule Schedule, opts ...SchedulerTaskOption) error {
	if task == "" {
		return ErrEmptyTaskName
	}
	if schedule == nil {
		return ErrScheduleNil
	}

	var taskOpts schedulerTaskOptions
	for _, opt := range opts {
		opt(&taskOpts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task]; exists {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, task)
	}
	s.tasks[task] = &scheduledTask{
		name:     task,
		schedule: schedule,
		payload:  taskOpts.payload,
		enqueue:  taskOpts.enqueue,
	}

	s.logger.Info("registered recurring task",
		logger.Task(task),
		slog.String("schedule", schedule.String()))
	return nil
}

// RemoveTask stops dispatching task. An occurrence already queued still runs.
func (s *Scheduler) RemoveTask(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task]; ok {
		delete(s.tasks, task)
		s.logger.Info("removed recurring task", logger.Task(task))
	}
}

// ListTasks returns the registered task names in lexical order
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.tasks))
}

// Start checks the tasks immediately and then every check interval until ctx is done.
// Returns ctx.Err() on shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	count := len(s.tasks)
	s.mu.RUnlock()
	if count == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkTasks(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.checkTasks(ctx)
		}
	}
}

// Run returns a function suitable for errgroup. Shutdown through ctx is not an error.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func (s *Scheduler) checkTasks(ctx context.Context) {
	s.mu.RLock()
	tasks := slices.Collect(maps.Values(s.tasks))
	s.mu.RUnlock()

	now := s.now()
	for _, task := range tasks {
		if err := s.dispatchIfDue(ctx, task, now); err != nil && ctx.Err() == nil {
			s.logger.Error("failed to dispatch recurring task",
				logger.Task(task.name),
				logger.Error(err))
		}
	}
}

// dispatchIfDue queues the next occurrence of task once the previous one is due
func (s *Scheduler) dispatchIfDue(ctx context.Context, task *scheduledTask, now time.Time) error {
	s.mu.RLock()
	pending := task.pending
	s.mu.RUnlock()

	if pending != nil && pending.After(now) {
		return nil
	}

	var next time.Time
	if pending != nil {
		next = task.schedule.Next(*pending)
	}
	if !next.After(now) {
		next = task.schedule.Next(now)
	}

	opts := append(slices.Clone(task.enqueue), WithDelay(next.Sub(now)))
	id, err := s.dispatcher.Add(ctx, task.name, task.payload, opts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	task.pending = &next
	s.mu.Unlock()

	s.logger.Debug("dispatched recurring task",
		logger.Task(task.name),
		logger.JobID(id),
		slog.Time("scheduled_for", next))
	return nil
}
