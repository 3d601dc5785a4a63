package metrics_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/queuekit/pkg/queue"
	"github.com/dmitrymomot/queuekit/pkg/queue/metrics"
)

type countingLogger struct {
	queue.NopLogger
	errors  int
	metrics int
}

func (l *countingLogger) Error(context.Context, string, queue.JobRef, ...slog.Attr) { l.errors++ }

func (l *countingLogger) LogJobMetrics(context.Context, queue.JobMetrics) { l.metrics++ }

func TestLogger(t *testing.T) {
	t.Parallel()

	t.Run("records completions and failures", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewPedanticRegistry()
		next := &countingLogger{}
		l, err := metrics.NewLogger(next, reg)
		require.NoError(t, err)

		ctx := context.Background()
		ref := queue.JobRef{ID: 1, Queue: "emails", Task: "send"}

		l.LogJobMetrics(ctx, queue.JobMetrics{Ref: ref, Duration: 250 * time.Millisecond, Attempt: 1})
		l.LogJobMetrics(ctx, queue.JobMetrics{Ref: ref, Duration: time.Second, Attempt: 2})
		l.Error(ctx, "job failed permanently", ref)
		l.Debug(ctx, "job scheduled for retry", ref)

		assert.Equal(t, 2, next.metrics)
		assert.Equal(t, 1, next.errors)

		expected := `
# HELP queuekit_jobs_total Jobs executed by outcome
# TYPE queuekit_jobs_total counter
queuekit_jobs_total{outcome="completed",queue="emails",task="send"} 2
queuekit_jobs_total{outcome="failed",queue="emails",task="send"} 1
`
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "queuekit_jobs_total"))
		series, err := testutil.GatherAndCount(reg, "queuekit_job_duration_seconds")
		require.NoError(t, err)
		assert.Equal(t, 1, series)
	})

	t.Run("synchronous runs count both outcomes", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewPedanticRegistry()
		l, err := metrics.NewLogger(nil, reg)
		require.NoError(t, err)

		r := queue.NewResolver()
		require.NoError(t, r.RegisterFunc("audit", func(_ context.Context, p queue.Payload) error {
			if p["fail"] == true {
				return errors.New("audit sink down")
			}
			return nil
		}))
		exec, err := queue.NewExecutor(r, queue.WithExecutorLogger(l))
		require.NoError(t, err)

		ctx := context.Background()
		assert.True(t, exec.ExecuteSync(ctx, "audit", nil))
		assert.True(t, exec.ExecuteSync(ctx, "audit", queue.Payload{"fail": false}))
		assert.False(t, exec.ExecuteSync(ctx, "audit", queue.Payload{"fail": true}))

		expected := `
# HELP queuekit_jobs_total Jobs executed by outcome
# TYPE queuekit_jobs_total counter
queuekit_jobs_total{outcome="completed",queue="",task="audit"} 2
queuekit_jobs_total{outcome="failed",queue="",task="audit"} 1
`
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "queuekit_jobs_total"))
	})

	t.Run("errors without a task are not counted", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewPedanticRegistry()
		l, err := metrics.NewLogger(nil, reg)
		require.NoError(t, err)

		l.Error(context.Background(), "storage failure", queue.JobRef{})

		count, err := testutil.GatherAndCount(reg, "queuekit_jobs_total")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewPedanticRegistry()
		_, err := metrics.NewLogger(nil, reg)
		require.NoError(t, err)

		_, err = metrics.NewLogger(nil, reg)
		require.Error(t, err)
	})
}

type failingStats struct{}

func (failingStats) Stats(context.Context, string) (queue.Stats, error) {
	return queue.Stats{}, errors.New("connection refused")
}

func TestStatsCollector(t *testing.T) {
	t.Parallel()

	t.Run("exports counts per status", func(t *testing.T) {
		t.Parallel()

		store := queue.NewMemoryStorage()
		ctx := context.Background()
		_, err := store.Add(ctx, "send", nil, queue.WithQueue("emails"))
		require.NoError(t, err)
		_, err = store.Add(ctx, "send", nil, queue.WithQueue("emails"), queue.WithDelay(time.Hour))
		require.NoError(t, err)
		_, err = store.Add(ctx, "resize", nil, queue.WithQueue("images"))
		require.NoError(t, err)

		c := metrics.NewStatsCollector(store, "emails")

		expected := `
# HELP queuekit_jobs Stored job records by queue and status
# TYPE queuekit_jobs gauge
queuekit_jobs{queue="emails",status="completed"} 0
queuekit_jobs{queue="emails",status="delayed"} 1
queuekit_jobs{queue="emails",status="failed"} 0
queuekit_jobs{queue="emails",status="pending"} 1
queuekit_jobs{queue="emails",status="processing"} 0
# HELP queuekit_stats_error Set to 1 when reading queue statistics failed during the scrape
# TYPE queuekit_stats_error gauge
queuekit_stats_error{queue="emails"} 0
`
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
	})

	t.Run("aggregates all queues by default", func(t *testing.T) {
		t.Parallel()

		store := queue.NewMemoryStorage()
		ctx := context.Background()
		for _, q := range []string{"a", "b", "c"} {
			_, err := store.Add(ctx, "noop", nil, queue.WithQueue(q))
			require.NoError(t, err)
		}

		c := metrics.NewStatsCollector(store)

		expected := `
# HELP queuekit_jobs Stored job records by queue and status
# TYPE queuekit_jobs gauge
queuekit_jobs{queue="",status="completed"} 0
queuekit_jobs{queue="",status="delayed"} 0
queuekit_jobs{queue="",status="failed"} 0
queuekit_jobs{queue="",status="pending"} 3
queuekit_jobs{queue="",status="processing"} 0
`
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "queuekit_jobs"))
	})

	t.Run("reports store errors", func(t *testing.T) {
		t.Parallel()

		c := metrics.NewStatsCollector(failingStats{}, "emails")

		expected := `
# HELP queuekit_stats_error Set to 1 when reading queue statistics failed during the scrape
# TYPE queuekit_stats_error gauge
queuekit_stats_error{queue="emails"} 1
`
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "queuekit_stats_error"))
		assert.Equal(t, 1, testutil.CollectAndCount(c))
	})
}
