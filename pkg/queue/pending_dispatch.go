package queue

import (
	"context"
	"sync"
	"time"
)

// PendingDispatch accumulates options for one task and sends them in a single Add call.
// Configuration methods return the same builder for chaining. It is not reusable:
// a second Dispatch returns ErrAlreadyDispatched.
type PendingDispatch struct {
	mu      sync.Mutex
	task    string
	resolve func() Dispatcher
	opts    []EnqueueOption
	sent    bool
}

// NewPendingDispatch binds a builder to task and dispatcher.
// A nil dispatcher is accepted; Dispatch then fails with ErrNoDispatcher.
func NewPendingDispatch(dispatcher Dispatcher, task string) *PendingDispatch {
	return newLazyPendingDispatch(func() Dispatcher { return dispatcher }, task)
}

// newLazyPendingDispatch defers the dispatcher lookup to Dispatch
func newLazyPendingDispatch(resolve func() Dispatcher, task string) *PendingDispatch {
	return &PendingDispatch{task: task, resolve: resolve}
}

func (p *PendingDispatch) with(opt EnqueueOption) *PendingDispatch {
	p.mu.Lock()
	p.opts = append(p.opts, opt)
	p.mu.Unlock()
	return p
}

func (p *PendingDispatch) OnQueue(queue string) *PendingDispatch {
	return p.with(WithQueue(queue))
}

// Priority sets the priority, clamped to 0-10
func (p *PendingDispatch) Priority(n int) *PendingDispatch {
	return p.with(WithPriority(int(ClampPriority(n))))
}

func (p *PendingDispatch) Delay(d time.Duration) *PendingDispatch {
	return p.with(WithDelay(d))
}

func (p *PendingDispatch) MaxAttempts(n int) *PendingDispatch {
	return p.with(WithMaxAttempts(n))
}

func (p *PendingDispatch) Timeout(d time.Duration) *PendingDispatch {
	return p.with(WithTimeout(d))
}

func (p *PendingDispatch) Backoff(strategy BackoffStrategy) *PendingDispatch {
	return p.with(WithBackoff(strategy))
}

// RetryAfter sets the base retry delay
func (p *PendingDispatch) RetryAfter(d time.Duration) *PendingDispatch {
	return p.with(WithRetryDelay(d))
}

func (p *PendingDispatch) Tags(tags ...string) *PendingDispatch {
	return p.with(WithTags(tags...))
}

func (p *PendingDispatch) WithOptions(opts Options) *PendingDispatch {
	return p.with(WithOptions(opts))
}

// Dispatch performs exactly one Add call with the accumulated options
func (p *PendingDispatch) Dispatch(ctx context.Context, payload Payload) (int64, error) {
	p.mu.Lock()
	if p.sent {
		p.mu.Unlock()
		return 0, ErrAlreadyDispatched
	}
	p.sent = true
	opts := p.opts
	p.opts = nil
	p.mu.Unlock()

	d := p.resolve()
	if d == nil {
		return 0, ErrNoDispatcher
	}
	return d.Add(ctx, p.task, payload, opts...)
}
