package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newWorkerManager(t *testing.T, store queue.Store, resolver *queue.Resolver) *queue.Manager {
	t.Helper()
	exec, err := queue.NewExecutor(resolver)
	require.NoError(t, err)
	m, err := queue.NewManager(store, queue.WithRunner(exec))
	require.NoError(t, err)
	return m
}

type archiverFunc func(ctx context.Context, queue string, records []*queue.Record) error

func (f archiverFunc) Archive(ctx context.Context, queue string, records []*queue.Record) error {
	return f(ctx, queue, records)
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	_, err := queue.NewWorker(nil)
	assert.ErrorIs(t, err, queue.ErrStoreNil)

	noRunner, err := queue.NewManager(queue.NewMemoryStorage())
	require.NoError(t, err)
	_, err = queue.NewWorker(noRunner)
	assert.ErrorIs(t, err, queue.ErrRunnerNil)

	w, err := queue.NewWorker(newWorkerManager(t, queue.NewMemoryStorage(), queue.NewResolver()),
		queue.WithQueues("a", "", "b"),
		queue.WithPollInterval(time.Second),
		queue.WithBatchSize(10),
		queue.WithMaxExecutionTime(time.Second),
		queue.WithConcurrency(2),
		queue.WithMaintenance(0, time.Hour),
		queue.WithWorkerLogger(discardLogger),
	)
	require.NoError(t, err)

	id, _, pid := w.Info()
	assert.NotEmpty(t, id)
	assert.NotZero(t, pid)
}

func TestWorker_StartStop(t *testing.T) {
	t.Parallel()

	w, err := queue.NewWorker(newWorkerManager(t, queue.NewMemoryStorage(), queue.NewResolver()),
		queue.WithWorkerLogger(discardLogger))
	require.NoError(t, err)

	assert.ErrorIs(t, w.Stop(), queue.ErrWorkerNotStarted)

	require.NoError(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.Start(context.Background()), queue.ErrWorkerStarted)
	require.NoError(t, w.Stop())
	assert.ErrorIs(t, w.Stop(), queue.ErrWorkerNotStarted)

	// Restartable after a clean stop
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}

func TestWorker_ProcessesQueues(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStorage()
	resolver := queue.NewResolver()

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	require.NoError(t, resolver.RegisterFunc("count", func(_ context.Context, p queue.Payload) error {
		mu.Lock()
		defer mu.Unlock()
		q, _ := p["queue"].(string)
		seen[q]++
		return nil
	}))
	require.NoError(t, resolver.RegisterFunc("broken", func(context.Context, queue.Payload) error {
		return errors.New("always")
	}))

	ctx := context.Background()
	for _, q := range []string{"emails", "emails", "reports", "ignored"} {
		_, err := store.Add(ctx, "count", queue.Payload{"queue": q}, queue.WithQueue(q))
		require.NoError(t, err)
	}
	_, err := store.Add(ctx, "broken", nil, queue.WithQueue("emails"), queue.WithMaxAttempts(1))
	require.NoError(t, err)

	w, err := queue.NewWorker(newWorkerManager(t, store, resolver),
		queue.WithQueues("emails", "reports"),
		queue.WithPollInterval(10*time.Millisecond),
		queue.WithConcurrency(2),
		queue.WithWorkerLogger(discardLogger),
	)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(w.Run(gctx))

	assert.Eventually(t, func() bool {
		stats, err := store.Stats(ctx, "")
		return err == nil && stats.Completed == 3 && stats.Failed == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, g.Wait())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"emails": 2, "reports": 1}, seen)
	assert.NoError(t, w.Healthy())

	stats, err := store.Stats(ctx, "ignored")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
}

func TestWorker_MaintenanceArchivesAndPurges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var now atomic.Pointer[time.Time]
	past := time.Now().Add(-30 * 24 * time.Hour)
	now.Store(&past)
	clock := func() time.Time { return *now.Load() }

	store := queue.NewMemoryStorage(queue.WithMemoryClock(clock))
	resolver := queue.NewResolver()
	require.NoError(t, resolver.RegisterFunc("ok", func(context.Context, queue.Payload) error { return nil }))
	require.NoError(t, resolver.RegisterFunc("bad", func(context.Context, queue.Payload) error { return errors.New("bad") }))

	exec, err := queue.NewExecutor(resolver)
	require.NoError(t, err)
	m, err := queue.NewManager(store, queue.WithRunner(exec), queue.WithSweeperOptions(queue.WithClock(clock)))
	require.NoError(t, err)

	_, err = m.Add(ctx, "ok", nil)
	require.NoError(t, err)
	_, err = m.Add(ctx, "bad", nil, queue.WithQueue("billing"), queue.WithMaxAttempts(1))
	require.NoError(t, err)
	_, err = m.Process(ctx, "")
	require.NoError(t, err)

	// Back to the present: both terminal records are now a month old
	present := time.Now()
	now.Store(&present)

	var archived atomic.Int32
	var archivedQueue atomic.Value
	w, err := queue.NewWorker(m,
		queue.WithPollInterval(time.Hour),
		queue.WithMaintenance(10*time.Millisecond, 7*24*time.Hour),
		queue.WithArchiver(archiverFunc(func(_ context.Context, q string, recs []*queue.Record) error {
			archivedQueue.Store(q)
			archived.Add(int32(len(recs)))
			return nil
		})),
		queue.WithWorkerLogger(discardLogger),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	assert.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, w.Stop())

	assert.Equal(t, int32(1), archived.Load())
	assert.Equal(t, "billing", archivedQueue.Load())
}

func TestWorker_ArchiveFailureSkipsPurge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	past := time.Now().Add(-30 * 24 * time.Hour)
	var offset atomic.Int64
	clock := func() time.Time { return past.Add(time.Duration(offset.Load())) }

	store := queue.NewMemoryStorage(queue.WithMemoryClock(clock))
	resolver := queue.NewResolver()
	require.NoError(t, resolver.RegisterFunc("bad", func(context.Context, queue.Payload) error { return errors.New("bad") }))
	exec, err := queue.NewExecutor(resolver)
	require.NoError(t, err)
	m, err := queue.NewManager(store, queue.WithRunner(exec), queue.WithSweeperOptions(queue.WithClock(clock)))
	require.NoError(t, err)

	_, err = m.Add(ctx, "bad", nil, queue.WithMaxAttempts(1))
	require.NoError(t, err)
	_, err = m.Process(ctx, "")
	require.NoError(t, err)
	offset.Store(int64(30 * 24 * time.Hour))

	archiveErr := errors.New("bucket unavailable")
	w, err := queue.NewWorker(m,
		queue.WithPollInterval(time.Hour),
		queue.WithMaintenance(10*time.Millisecond, 24*time.Hour),
		queue.WithArchiver(archiverFunc(func(context.Context, string, []*queue.Record) error {
			return archiveErr
		})),
		queue.WithWorkerLogger(discardLogger),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	assert.Eventually(t, func() bool { return errors.Is(w.Healthy(), archiveErr) }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, w.Stop())

	assert.Equal(t, 1, store.Len(), "failed record kept when archiving fails")
}

func TestWorker_SweepSuccessKeepsMaintenanceError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	past := time.Now().Add(-30 * 24 * time.Hour)
	var offset atomic.Int64
	clock := func() time.Time { return past.Add(time.Duration(offset.Load())) }

	store := queue.NewMemoryStorage(queue.WithMemoryClock(clock))
	resolver := queue.NewResolver()
	require.NoError(t, resolver.RegisterFunc("bad", func(context.Context, queue.Payload) error { return errors.New("bad") }))
	require.NoError(t, resolver.RegisterFunc("ok", func(context.Context, queue.Payload) error { return nil }))
	exec, err := queue.NewExecutor(resolver)
	require.NoError(t, err)
	m, err := queue.NewManager(store, queue.WithRunner(exec), queue.WithSweeperOptions(queue.WithClock(clock)))
	require.NoError(t, err)

	_, err = m.Add(ctx, "bad", nil, queue.WithMaxAttempts(1))
	require.NoError(t, err)
	_, err = m.Process(ctx, "")
	require.NoError(t, err)
	offset.Store(int64(30 * 24 * time.Hour))

	archiveErr := errors.New("bucket unavailable")
	w, err := queue.NewWorker(m,
		queue.WithPollInterval(5*time.Millisecond),
		queue.WithMaintenance(200*time.Millisecond, 24*time.Hour),
		queue.WithArchiver(archiverFunc(func(context.Context, string, []*queue.Record) error {
			return archiveErr
		})),
		queue.WithWorkerLogger(discardLogger),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Stop() })
	require.Eventually(t, func() bool { return errors.Is(w.Healthy(), archiveErr) }, 2*time.Second, 5*time.Millisecond)

	id, err := m.Add(ctx, "ok", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		rec, err := m.Job(ctx, id)
		return err == nil && rec != nil && rec.Status == queue.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	err = w.Healthy()
	require.ErrorIs(t, err, archiveErr, "a successful sweep must not clear the maintenance failure")
	assert.Contains(t, err.Error(), "maintenance")
}
