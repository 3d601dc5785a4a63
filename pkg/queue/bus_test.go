package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/queuekit/pkg/queue"
	"github.com/dmitrymomot/queuekit/pkg/queue/queuetest"
)

type sendInvoice struct{}

func (sendInvoice) Handle(context.Context, queue.Payload) error { return nil }

func TestBus_DispatchResolution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fails closed without dispatcher", func(t *testing.T) {
		t.Parallel()

		bus := queue.NewBus()
		_, err := bus.Task("emails.send").Dispatch(ctx, nil)
		assert.ErrorIs(t, err, queue.ErrNoDispatcher)

		_, err = bus.Task("emails.send").OnQueue("emails").Dispatch(ctx, nil)
		assert.ErrorIs(t, err, queue.ErrNoDispatcher)
	})

	t.Run("resolver callback", func(t *testing.T) {
		t.Parallel()

		registered := queuetest.NewDispatcher()
		bus := queue.NewBus(queue.WithDispatcherResolver(func() queue.Dispatcher { return registered }))

		id, err := bus.Task("emails.send").Dispatch(ctx, queue.Payload{"to": "a@b.c"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		last, ok := registered.Last()
		require.True(t, ok)
		assert.Equal(t, "emails.send", last.Task)
		assert.Equal(t, queue.Payload{"to": "a@b.c"}, last.Payload)
	})

	t.Run("resolver returning nil", func(t *testing.T) {
		t.Parallel()

		bus := queue.NewBus(queue.WithDispatcherResolver(func() queue.Dispatcher { return nil }))
		_, err := bus.Task("emails.send").Dispatch(ctx, nil)
		assert.ErrorIs(t, err, queue.ErrNoDispatcher)
	})

	t.Run("injected dispatcher takes precedence and is scoped", func(t *testing.T) {
		t.Parallel()

		registered := queuetest.NewDispatcher()
		fake := queuetest.NewDispatcher()
		bus := queue.NewBus(queue.WithDispatcherResolver(func() queue.Dispatcher { return registered }))
		scoped := bus.WithDispatcher(fake)

		_, err := scoped.Task("emails.send").WithPriority(9).Dispatch(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, fake.Sent(), 1)
		assert.Empty(t, registered.Sent())

		_, err = bus.Task("emails.send").Dispatch(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, registered.Sent(), 1, "original bus is unaffected")
		assert.Len(t, fake.Sent(), 1)
	})

	t.Run("store as dispatcher", func(t *testing.T) {
		t.Parallel()

		store := queue.NewMemoryStorage()
		bus := queue.NewBus(queue.WithBusDispatcher(store))

		id, err := bus.Task("reports.build").Later(time.Minute).Dispatch(ctx, nil)
		require.NoError(t, err)

		rec, err := store.Find(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusDelayed, rec.Status)
	})

	t.Run("builder resolves dispatcher when dispatching", func(t *testing.T) {
		t.Parallel()

		var current atomic.Pointer[queuetest.Dispatcher]
		bus := queue.NewBus(queue.WithDispatcherResolver(func() queue.Dispatcher {
			if d := current.Load(); d != nil {
				return d
			}
			return nil
		}))

		// Built during boot, before the application registers its store
		pending := bus.Task("emails.send").OnQueue("emails")

		registered := queuetest.NewDispatcher()
		current.Store(registered)

		_, err := pending.Dispatch(ctx, nil)
		require.NoError(t, err)
		require.Len(t, registered.Sent(), 1)
		assert.Equal(t, "emails", registered.Sent()[0].Options.Queue)
	})

	t.Run("storage fault surfaces", func(t *testing.T) {
		t.Parallel()

		fault := errors.New("connection reset")
		d := queuetest.NewDispatcher().Strict()
		d.On("Add", mock.Anything, "emails.send", mock.Anything).Return(int64(0), fault)

		bus := queue.NewBus(queue.WithBusDispatcher(d))
		_, err := bus.Task("emails.send").Dispatch(ctx, nil)
		assert.ErrorIs(t, err, fault)
		d.AssertExpectations(t)
	})
}

func TestBus_HandleBuilders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := queuetest.NewDispatcher()
	bus := queue.NewBus().WithDispatcher(fake)
	handle := queue.For[sendInvoice](bus)
	assert.Equal(t, "queue_test.sendInvoice", handle.Name())

	_, err := handle.OnQueue("billing").Dispatch(ctx, nil)
	require.NoError(t, err)
	_, err = handle.WithPriority(15).Dispatch(ctx, nil)
	require.NoError(t, err)
	_, err = handle.Later(30*time.Second).Dispatch(ctx, nil)
	require.NoError(t, err)

	calls := fake.Sent()
	require.Len(t, calls, 3)
	assert.Equal(t, "billing", calls[0].Options.Queue)
	assert.Equal(t, 10, calls[1].Options.Priority)
	assert.Equal(t, 30*time.Second, calls[2].Options.Delay)
	for _, c := range calls {
		assert.Equal(t, "queue_test.sendInvoice", c.Task)
	}
}

func TestBus_DispatchSync(t *testing.T) {
	t.Parallel()

	var captured queue.Payload
	r := queue.NewResolver()
	require.NoError(t, r.RegisterFunc("capture", func(_ context.Context, p queue.Payload) error {
		captured = p
		return nil
	}))
	exec, err := queue.NewExecutor(r)
	require.NoError(t, err)

	// No dispatcher configured: synchronous execution still works
	bus := queue.NewBus(queue.WithSyncRunner(exec))
	ok := bus.Task("capture").DispatchSync(context.Background(), queue.Payload{"id": 42})
	assert.True(t, ok)
	assert.Equal(t, queue.Payload{"id": 42}, captured)

	assert.False(t, bus.Task("ghost").DispatchSync(context.Background(), nil))
	assert.False(t, queue.NewBus().Task("capture").DispatchSync(context.Background(), nil))
}
