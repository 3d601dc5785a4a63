package main

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/queuekit/pkg/logger"
)

// spanLogExporter writes finished spans to the process log at debug level
type spanLogExporter struct {
	log *slog.Logger
}

func (e spanLogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.log.LogAttrs(ctx, slog.LevelDebug, "span finished",
			slog.String("span", s.Name()),
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.String("span_id", s.SpanContext().SpanID().String()),
			slog.String("status", s.Status().Code.String()),
			logger.Duration(s.EndTime().Sub(s.StartTime())),
		)
	}
	return nil
}

func (spanLogExporter) Shutdown(context.Context) error { return nil }

// setupTracing installs an SDK tracer provider as the otel global when app.Tracing is set.
// The returned func flushes and stops it; it is a no-op when tracing is off.
func setupTracing(app appConfig, log *slog.Logger) func(context.Context) error {
	if !app.Tracing {
		return func(context.Context) error { return nil }
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(sdkresource.NewSchemaless(attribute.String("service.name", app.Service))),
		sdktrace.WithBatcher(spanLogExporter{log: log}),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// traceContextExtractor adds the active trace and span ids to every record logged inside a span
func traceContextExtractor(ctx context.Context) (slog.Attr, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return slog.Attr{}, false
	}
	return logger.Group("trace",
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	), true
}
