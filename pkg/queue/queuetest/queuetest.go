// Package queuetest provides test doubles for code that dispatches jobs.
package queuetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

// Dispatched is one captured Add call
type Dispatched struct {
	Task    string
	Payload queue.Payload
	Options queue.EnqueueOptions
}

// Dispatcher records every Add call. Expectations set through the embedded mock
// are honoured when present; otherwise Add succeeds with sequential ids.
type Dispatcher struct {
	mock.Mock

	mu     sync.Mutex
	calls  []Dispatched
	nextID int64
	strict bool
}

// NewDispatcher returns a recording dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Strict makes Add consult mock expectations, failing the test on unexpected calls
func (d *Dispatcher) Strict() *Dispatcher {
	d.strict = true
	return d
}

func (d *Dispatcher) Add(ctx context.Context, task string, payload queue.Payload, opts ...queue.EnqueueOption) (int64, error) {
	d.mu.Lock()
	d.calls = append(d.calls, Dispatched{
		Task:    task,
		Payload: payload,
		Options: queue.ApplyEnqueueOptions(opts...),
	})
	d.nextID++
	id := d.nextID
	strict := d.strict
	d.mu.Unlock()

	if !strict {
		return id, nil
	}

	args := d.Called(ctx, task, payload)
	return args.Get(0).(int64), args.Error(1)
}

// Sent returns a copy of the captured calls in order
func (d *Dispatcher) Sent() []Dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Dispatched(nil), d.calls...)
}

// Last returns the most recent call and whether there was one
func (d *Dispatcher) Last() (Dispatched, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return Dispatched{}, false
	}
	return d.calls[len(d.calls)-1], true
}

// Reset forgets captured calls
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time. Pass the method value wherever a clock func is expected.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps the clock to t
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
