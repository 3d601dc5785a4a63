package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/queuekit/pkg/logger"
)

// Logger receives execution events. Implementations must be safe for concurrent use.
type Logger interface {
	Debug(ctx context.Context, msg string, ref JobRef, attrs ...slog.Attr)
	Error(ctx context.Context, msg string, ref JobRef, attrs ...slog.Attr)
	LogJobMetrics(ctx context.Context, m JobMetrics)
}

// JobMetrics describes one successful execution
type JobMetrics struct {
	Ref      JobRef
	Duration time.Duration
	Attempt  int
}

// SlogLogger adapts *slog.Logger to Logger
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger wraps log, falling back to slog.Default when nil
func NewSlogLogger(log *slog.Logger) *SlogLogger {
	if log == nil {
		log = slog.Default()
	}
	return &SlogLogger{log: log.With(logger.Component("queue"))}
}

func (l *SlogLogger) Debug(ctx context.Context, msg string, ref JobRef, attrs ...slog.Attr) {
	l.log.LogAttrs(ctx, slog.LevelDebug, msg, append(refAttrs(ref), attrs...)...)
}

func (l *SlogLogger) Error(ctx context.Context, msg string, ref JobRef, attrs ...slog.Attr) {
	l.log.LogAttrs(ctx, slog.LevelError, msg, append(refAttrs(ref), attrs...)...)
}

func (l *SlogLogger) LogJobMetrics(ctx context.Context, m JobMetrics) {
	attrs := append(refAttrs(m.Ref),
		logger.Duration(m.Duration),
		logger.Attempt(m.Attempt),
	)
	l.log.LogAttrs(ctx, slog.LevelInfo, "job completed", attrs...)
}

func refAttrs(ref JobRef) []slog.Attr {
	attrs := make([]slog.Attr, 0, 5)
	if ref.ID != 0 {
		attrs = append(attrs, logger.JobID(ref.ID))
	}
	if ref.Queue != "" {
		attrs = append(attrs, logger.Queue(ref.Queue))
	}
	if ref.Task != "" {
		attrs = append(attrs, logger.Task(ref.Task))
	}
	return attrs
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(context.Context, string, JobRef, ...slog.Attr) {}
func (NopLogger) Error(context.Context, string, JobRef, ...slog.Attr) {}
func (NopLogger) LogJobMetrics(context.Context, JobMetrics)           {}

type jobCtxKey struct{}

// ContextWithJob stores ref in ctx; handlers see it during execution
func ContextWithJob(ctx context.Context, ref JobRef) context.Context {
	return context.WithValue(ctx, jobCtxKey{}, ref)
}

// JobFromContext returns the job being executed, if any
func JobFromContext(ctx context.Context) (JobRef, bool) {
	ref, ok := ctx.Value(jobCtxKey{}).(JobRef)
	return ref, ok
}

// JobContextExtractor is a logger.ContextExtractor that adds a "job" group
// to every record logged inside a running job.
func JobContextExtractor(ctx context.Context) (slog.Attr, bool) {
	ref, ok := JobFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.Group("job", refAttrs(ref)...), true
}
