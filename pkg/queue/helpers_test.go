package queue_test

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type logEntry struct {
	level string
	msg   string
	ref   queue.JobRef
	attrs []slog.Attr
}

// recordingLogger captures Logger calls for assertions
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
	metrics []queue.JobMetrics
}

func (l *recordingLogger) Debug(_ context.Context, msg string, ref queue.JobRef, attrs ...slog.Attr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{"debug", msg, ref, attrs})
}

func (l *recordingLogger) Error(_ context.Context, msg string, ref queue.JobRef, attrs ...slog.Attr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{"error", msg, ref, attrs})
}

func (l *recordingLogger) LogJobMetrics(_ context.Context, m queue.JobMetrics) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metrics = append(l.metrics, m)
}

func (l *recordingLogger) errors() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == "error" {
			out = append(out, e)
		}
	}
	return out
}

func (l *recordingLogger) jobMetrics() []queue.JobMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]queue.JobMetrics(nil), l.metrics...)
}

func attrValue(attrs []slog.Attr, key string) (slog.Value, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return slog.Value{}, false
}

// orderRecorder is a job that appends the "name" payload field to a shared slice
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (o *orderRecorder) job() queue.JobFunc {
	return func(_ context.Context, p queue.Payload) error {
		o.mu.Lock()
		defer o.mu.Unlock()
		name, _ := p["name"].(string)
		o.order = append(o.order, name)
		return nil
	}
}

func (o *orderRecorder) seen() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.order...)
}
