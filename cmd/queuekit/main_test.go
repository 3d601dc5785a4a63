package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenBackend(t *testing.T) {
	t.Parallel()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		b, err := openBackend(context.Background(), driverMemory, discardLogger())
		require.NoError(t, err)
		defer b.close()

		assert.IsType(t, &queue.MemoryStorage{}, b.store)
		assert.Equal(t, driverMemory, b.check.Name)
		assert.NoError(t, b.check.Fn(context.Background()))
		assert.NoError(t, b.migrate(context.Background()))
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Parallel()
		_, err := openBackend(context.Background(), "sqlite", discardLogger())
		assert.ErrorIs(t, err, errUnknownDriver)
	})
}

func TestRegisterTasks(t *testing.T) {
	t.Parallel()
	resolver := queue.NewResolver()
	require.NoError(t, registerTasks(resolver, discardLogger()))
	assert.Contains(t, resolver.Tasks(), logTask)

	executor, err := queue.NewExecutor(resolver)
	require.NoError(t, err)
	assert.True(t, executor.ExecuteSync(context.Background(), logTask, queue.Payload{"hello": "world"}))
}

func TestRunWorker(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	resolver := queue.NewResolver()
	require.NoError(t, registerTasks(resolver, discardLogger()))
	executor, err := queue.NewExecutor(resolver)
	require.NoError(t, err)
	manager, err := queue.NewManager(store, queue.WithRunner(executor))
	require.NoError(t, err)
	worker, err := queue.NewWorker(manager,
		queue.WithPollInterval(10*time.Millisecond),
		queue.WithWorkerLogger(discardLogger()),
	)
	require.NoError(t, err)

	id, err := store.Add(context.Background(), logTask, queue.Payload{"n": 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWorker(ctx, worker, time.Second) }()

	require.Eventually(t, func() bool {
		rec, err := store.Find(context.Background(), id)
		return err == nil && rec != nil && rec.Status == queue.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "worker did not stop")
	}
}

func TestRootCommand(t *testing.T) {
	t.Parallel()
	root := newRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"work", "migrate"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}

func TestNewHeartbeat(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		s, err := newHeartbeat(queue.NewMemoryStorage(), queue.Config{}, discardLogger())
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("dispatches the log task", func(t *testing.T) {
		t.Parallel()

		store := queue.NewMemoryStorage()
		cfg := queue.Config{
			Queues:            []string{"ops", "default"},
			Heartbeat:         time.Minute,
			SchedulerInterval: 10 * time.Millisecond,
		}
		s, err := newHeartbeat(store, cfg, discardLogger())
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, []string{logTask}, s.ListTasks())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx)() }()

		require.Eventually(t, func() bool {
			stats, err := store.Stats(context.Background(), "ops")
			return err == nil && stats.Delayed == 1
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		assert.NoError(t, <-done)
	})
}

func TestSetupTracing(t *testing.T) {
	t.Parallel()

	t.Run("disabled is a no-op", func(t *testing.T) {
		t.Parallel()
		shutdown := setupTracing(appConfig{Service: "queuekit"}, discardLogger())
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("exporter logs finished spans", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanLogExporter{log: log}))
		_, span := tp.Tracer("test").Start(context.Background(), "queue.execute")
		span.End()
		require.NoError(t, tp.Shutdown(context.Background()))

		assert.Contains(t, buf.String(), `"span":"queue.execute"`)
		assert.Contains(t, buf.String(), `"trace_id"`)
	})
}

func TestTraceContextExtractor(t *testing.T) {
	t.Parallel()

	_, ok := traceContextExtractor(context.Background())
	assert.False(t, ok)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	attr, ok := traceContextExtractor(ctx)
	require.True(t, ok)
	assert.Equal(t, "trace", attr.Key)
	assert.Contains(t, attr.Value.String(), span.SpanContext().TraceID().String())
}
