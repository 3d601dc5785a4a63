package queue

import (
	"context"
	"time"
)

// DispatcherResolver returns the dispatcher to use at call time, or nil when none is available
type DispatcherResolver func() Dispatcher

// SyncRunner executes a task in process. *Executor implements it.
type SyncRunner interface {
	ExecuteSync(ctx context.Context, task string, payload Payload) bool
}

// Bus is the application entry point for sending jobs.
// It is built once at bootstrap and passed to the code that dispatches work;
// there is no package level instance.
type Bus struct {
	dispatcher Dispatcher
	resolve    DispatcherResolver
	sync       SyncRunner
}

// BusOption configures a Bus
type BusOption func(*Bus)

// WithBusDispatcher sets the dispatcher used by Dispatch
func WithBusDispatcher(d Dispatcher) BusOption {
	return func(b *Bus) {
		b.dispatcher = d
	}
}

// WithDispatcherResolver sets a callback consulted when no dispatcher is set directly
func WithDispatcherResolver(fn DispatcherResolver) BusOption {
	return func(b *Bus) {
		b.resolve = fn
	}
}

// WithSyncRunner sets the executor used by DispatchSync
func WithSyncRunner(r SyncRunner) BusOption {
	return func(b *Bus) {
		b.sync = r
	}
}

// NewBus creates a bus
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithDispatcher returns a copy of the bus that always dispatches to d.
// The receiver is left untouched, so a test can swap in a double without
// affecting other users of the original bus.
func (b *Bus) WithDispatcher(d Dispatcher) *Bus {
	c := *b
	c.dispatcher = d
	return &c
}

// Dispatcher resolves the active dispatcher: the explicit one first, then the resolver callback.
// Returns nil when neither yields a dispatcher.
func (b *Bus) Dispatcher() Dispatcher {
	if b.dispatcher != nil {
		return b.dispatcher
	}
	if b.resolve != nil {
		return b.resolve()
	}
	return nil
}

// Task returns a handle for dispatching the named task
func (b *Bus) Task(name string) *TaskHandle {
	return &TaskHandle{bus: b, task: name}
}

// For returns a handle for job type T, named the same way RegisterType names it
func For[T any](b *Bus) *TaskHandle {
	var zero T
	return b.Task(TaskName(zero))
}

// TaskHandle sends one task type through a bus
type TaskHandle struct {
	bus  *Bus
	task string
}

// Name returns the task identifier
func (h *TaskHandle) Name() string {
	return h.task
}

// Dispatch enqueues the task with default options.
// Fails with ErrNoDispatcher when the bus has no active dispatcher.
func (h *TaskHandle) Dispatch(ctx context.Context, payload Payload, opts ...EnqueueOption) (int64, error) {
	d := h.bus.Dispatcher()
	if d == nil {
		return 0, ErrNoDispatcher
	}
	return d.Add(ctx, h.task, payload, opts...)
}

// DispatchSync runs the task immediately in process, bypassing any store.
// Returns false when the job fails or the bus has no sync runner.
func (h *TaskHandle) DispatchSync(ctx context.Context, payload Payload) bool {
	if h.bus.sync == nil {
		return false
	}
	return h.bus.sync.ExecuteSync(ctx, h.task, payload)
}

// pending resolves the bus dispatcher when the builder dispatches, not when it is created
func (h *TaskHandle) pending() *PendingDispatch {
	return newLazyPendingDispatch(h.bus.Dispatcher, h.task)
}

// OnQueue starts a pending dispatch targeting queue
func (h *TaskHandle) OnQueue(queue string) *PendingDispatch {
	return h.pending().OnQueue(queue)
}

// WithPriority starts a pending dispatch with priority n, clamped to 0-10
func (h *TaskHandle) WithPriority(n int) *PendingDispatch {
	return h.pending().Priority(n)
}

// Later starts a pending dispatch delayed by d
func (h *TaskHandle) Later(d time.Duration) *PendingDispatch {
	return h.pending().Delay(d)
}
