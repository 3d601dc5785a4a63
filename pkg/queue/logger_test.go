package queue_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/queuekit/pkg/logger"
	"github.com/dmitrymomot/queuekit/pkg/queue"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		out = append(out, entry)
	}
	return out
}

func TestSlogLogger(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := queue.NewSlogLogger(logger.New(logger.WithOutput(buf), logger.WithLevel(slog.LevelDebug)))
	ref := queue.JobRef{ID: 7, Queue: "emails", Task: "emails.send"}
	ctx := context.Background()

	log.Debug(ctx, "retrying", ref, logger.Attempt(2))
	log.Error(ctx, "gave up", ref)
	log.LogJobMetrics(ctx, queue.JobMetrics{Ref: ref, Duration: 250 * time.Millisecond, Attempt: 1})

	entries := decodeLines(t, buf)
	require.Len(t, entries, 3)

	assert.Equal(t, "DEBUG", entries[0]["level"])
	assert.Equal(t, float64(7), entries[0]["job_id"])
	assert.Equal(t, "emails", entries[0]["queue"])
	assert.Equal(t, "emails.send", entries[0]["task"])
	assert.Equal(t, float64(2), entries[0]["attempt"])
	assert.Equal(t, "queue", entries[0]["component"])

	assert.Equal(t, "ERROR", entries[1]["level"])

	assert.Equal(t, "job completed", entries[2]["msg"])
	assert.Equal(t, float64(250*time.Millisecond), entries[2]["duration"])
	assert.Equal(t, float64(1), entries[2]["attempt"])
}

func TestJobContextExtractor(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(logger.WithOutput(buf), logger.WithContextExtractors(queue.JobContextExtractor))

	log.InfoContext(context.Background(), "outside")
	ctx := queue.ContextWithJob(context.Background(), queue.JobRef{ID: 3, Queue: "reports", Task: "reports.build"})
	log.InfoContext(ctx, "inside")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0], "job")

	job, ok := entries[1]["job"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), job["job_id"])
	assert.Equal(t, "reports", job["queue"])
	assert.Equal(t, "reports.build", job["task"])

	ref, ok := queue.JobFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), ref.ID)
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	var l queue.Logger = queue.NopLogger{}
	assert.NotPanics(t, func() {
		l.Debug(context.Background(), "x", queue.JobRef{})
		l.Error(context.Background(), "x", queue.JobRef{})
		l.LogJobMetrics(context.Background(), queue.JobMetrics{})
	})
}
