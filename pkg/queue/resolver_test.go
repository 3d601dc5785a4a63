package queue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

type welcomeEmail struct {
	handled bool
}

func (w *welcomeEmail) Handle(_ context.Context, _ queue.Payload) error {
	w.handled = true
	return nil
}

type notAJob struct{}

func TestResolver_Register(t *testing.T) {
	t.Parallel()

	r := queue.NewResolver()
	require.NoError(t, r.RegisterFunc("emails.send", func(context.Context, queue.Payload) error { return nil }))

	err := r.RegisterFunc("emails.send", func(context.Context, queue.Payload) error { return nil })
	assert.ErrorIs(t, err, queue.ErrTaskAlreadyRegistered)

	assert.ErrorIs(t, r.Register("", func() any { return nil }), queue.ErrEmptyTaskName)
	assert.ErrorIs(t, r.Register("nil.factory", nil), queue.ErrUnresolvableTask)
	assert.ErrorIs(t, r.RegisterFunc("nil.func", nil), queue.ErrUnresolvableTask)

	assert.Equal(t, []string{"emails.send"}, r.Tasks())
}

func TestResolver_RegisterType(t *testing.T) {
	t.Parallel()

	r := queue.NewResolver()
	name, err := queue.RegisterType[welcomeEmail](r)
	require.NoError(t, err)
	assert.Equal(t, "queue_test.welcomeEmail", name)
	assert.Equal(t, name, queue.TaskName(&welcomeEmail{}))

	first, err := r.Resolve(name)
	require.NoError(t, err)
	second, err := r.Resolve(name)
	require.NoError(t, err)

	// Every resolution yields a fresh instance
	require.NoError(t, first.Handle(context.Background(), nil))
	assert.True(t, first.(*welcomeEmail).handled)
	assert.False(t, second.(*welcomeEmail).handled)
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	r := queue.NewResolver()
	require.NoError(t, r.Register("not.a.job", func() any { return notAJob{} }))
	require.NoError(t, r.Register("nil.instance", func() any { return nil }))

	_, err := r.Resolve("missing")
	assert.ErrorIs(t, err, queue.ErrUnresolvableTask)

	_, err = r.Resolve("not.a.job")
	assert.ErrorIs(t, err, queue.ErrContractViolation)

	_, err = r.Resolve("nil.instance")
	assert.ErrorIs(t, err, queue.ErrUnresolvableTask)

	_, err = r.Resolve("")
	assert.ErrorIs(t, err, queue.ErrEmptyTaskName)
}

func TestResolver_Hook(t *testing.T) {
	t.Parallel()

	container := map[string]any{
		"billing.charge": queue.JobFunc(func(context.Context, queue.Payload) error { return nil }),
		"broken":         notAJob{},
	}
	hookErr := errors.New("container failure")

	r := queue.NewResolver(queue.WithResolveHook(func(task string) (any, error) {
		if task == "explode" {
			return nil, hookErr
		}
		return container[task], nil
	}))
	// Registered factories are ignored once a hook is installed
	require.NoError(t, r.RegisterFunc("local.only", func(context.Context, queue.Payload) error { return nil }))

	job, err := r.Resolve("billing.charge")
	require.NoError(t, err)
	assert.NotNil(t, job)

	_, err = r.Resolve("broken")
	assert.ErrorIs(t, err, queue.ErrContractViolation)

	_, err = r.Resolve("explode")
	assert.ErrorIs(t, err, queue.ErrUnresolvableTask)
	assert.ErrorIs(t, err, hookErr)

	_, err = r.Resolve("local.only")
	assert.ErrorIs(t, err, queue.ErrUnresolvableTask)
}

func TestTyped(t *testing.T) {
	t.Parallel()

	type invoice struct {
		ID     int64   `json:"id"`
		Amount float64 `json:"amount"`
	}

	var got invoice
	job := queue.Typed(func(_ context.Context, in invoice) error {
		got = in
		return nil
	})

	require.NoError(t, job.Handle(context.Background(), queue.Payload{"id": 9, "amount": 12.5}))
	assert.Equal(t, invoice{ID: 9, Amount: 12.5}, got)

	err := job.Handle(context.Background(), queue.Payload{"id": "nine"})
	assert.ErrorIs(t, err, queue.ErrPayloadDecode)
}
