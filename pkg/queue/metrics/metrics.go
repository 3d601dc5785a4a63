package metrics

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

const namespace = "queuekit"

// Job outcomes recorded in queuekit_jobs_total
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

var _ queue.Logger = (*Logger)(nil)

// Logger decorates a queue.Logger with prometheus job metrics.
// Successful executions feed the duration histogram; error events count as failures.
// Synchronous runs carry no queue and are labeled queue="".
type Logger struct {
	next     queue.Logger
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewLogger wraps next and registers its collectors with reg.
// A nil next discards log events; a nil reg falls back to prometheus.DefaultRegisterer.
func NewLogger(next queue.Logger, reg prometheus.Registerer) (*Logger, error) {
	if next == nil {
		next = queue.NopLogger{}
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	l := &Logger{
		next: next,
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Execution time of successful jobs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue", "task"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Jobs executed by outcome",
		}, []string{"queue", "task", "outcome"}),
	}

	for _, c := range []prometheus.Collector{l.duration, l.total} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Logger) Debug(ctx context.Context, msg string, ref queue.JobRef, attrs ...slog.Attr) {
	l.next.Debug(ctx, msg, ref, attrs...)
}

func (l *Logger) Error(ctx context.Context, msg string, ref queue.JobRef, attrs ...slog.Attr) {
	if ref.Task != "" {
		l.total.WithLabelValues(ref.Queue, ref.Task, OutcomeFailed).Inc()
	}
	l.next.Error(ctx, msg, ref, attrs...)
}

func (l *Logger) LogJobMetrics(ctx context.Context, m queue.JobMetrics) {
	l.duration.WithLabelValues(m.Ref.Queue, m.Ref.Task).Observe(m.Duration.Seconds())
	l.total.WithLabelValues(m.Ref.Queue, m.Ref.Task, OutcomeCompleted).Inc()
	l.next.LogJobMetrics(ctx, m)
}
