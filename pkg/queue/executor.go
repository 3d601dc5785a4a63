package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/queuekit/pkg/logger"
)

const tracerName = "github.com/dmitrymomot/queuekit/pkg/queue"

// payloadSummaryLimit bounds the payload excerpt written to error logs
const payloadSummaryLimit = 256

// Runner executes one reserved record; the sweep depends only on this
type Runner interface {
	Execute(ctx context.Context, rec *Record) error
}

// Executor resolves and runs jobs. It keeps no per-job state and is safe for concurrent use.
type Executor struct {
	resolver *Resolver
	logger   Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger collaborator
func WithExecutorLogger(l Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithExecutorClock sets the time source used to measure durations
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an executor over resolver
func NewExecutor(resolver *Resolver, opts ...ExecutorOption) (*Executor, error) {
	if resolver == nil {
		return nil, ErrResolverNil
	}

	e := &Executor{
		resolver: resolver,
		logger:   NopLogger{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Resolver returns the resolver the executor draws jobs from
func (e *Executor) Resolver() *Resolver {
	return e.resolver
}

// Execute runs rec and returns the job's error, a resolution error or a recovered panic.
// It does not decide between retry and failure; that belongs to the sweep.
func (e *Executor) Execute(ctx context.Context, rec *Record) error {
	payload, err := DecodePayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("job %d: %w", rec.ID, err)
	}

	ref := rec.Ref()
	attempt := rec.Attempts + 1

	ctx, span := e.tracer.Start(ctx, "queue.execute",
		trace.WithAttributes(
			attribute.Int64("queue.job.id", rec.ID),
			attribute.String("queue.job.task", rec.Task),
			attribute.String("queue.name", rec.Queue),
			attribute.Int("queue.job.attempt", attempt),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := e.now()
	err = e.run(ContextWithJob(ctx, ref), rec.Task, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")

	e.logger.LogJobMetrics(ctx, JobMetrics{
		Ref:      ref,
		Duration: e.now().Sub(start),
		Attempt:  attempt,
	})
	return nil
}

// ExecuteSync runs task in process without touching any store.
// Every failure is logged and reported as false; a success is reported
// through LogJobMetrics with an empty queue, like any other completion.
func (e *Executor) ExecuteSync(ctx context.Context, task string, payload Payload) bool {
	if payload == nil {
		payload = Payload{}
	}
	ref := JobRef{Task: task}

	ctx, span := e.tracer.Start(ctx, "queue.execute_sync",
		trace.WithAttributes(attribute.String("queue.job.task", task)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := e.now()
	if err := e.run(ContextWithJob(ctx, ref), task, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error(ctx, "synchronous job failed", ref,
			slog.String("payload", summarizePayload(payload)),
			logger.Error(err),
		)
		return false
	}
	span.SetStatus(codes.Ok, "")

	e.logger.LogJobMetrics(ctx, JobMetrics{
		Ref:      ref,
		Duration: e.now().Sub(start),
		Attempt:  1,
	})
	return true
}

func (e *Executor) run(ctx context.Context, task string, payload Payload) (err error) {
	job, err := e.resolver.Resolve(task)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrJobPanicked, task, r)
		}
	}()

	return job.Handle(ctx, payload)
}

func summarizePayload(p Payload) string {
	raw, err := EncodePayload(p)
	if err != nil {
		return fmt.Sprintf("<%d keys, not encodable>", len(p))
	}
	if len(raw) > payloadSummaryLimit {
		return string(raw[:payloadSummaryLimit]) + "..."
	}
	return string(raw)
}
