package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName identifies spans emitted by this service
const TracerName = "github.com/upb/character-chat"

// Tracer returns the service tracer from the global provider. Without a
// configured provider the spans are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// DisableTracing installs a no-op provider, replacing any registered one
func DisableTracing() {
	otel.SetTracerProvider(noop.NewTracerProvider())
}

// StartSpan starts a span named after a pipeline stage
func StartSpan(ctx context.Context, tracer trace.Tracer, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Tracer()
	}
	return tracer.Start(ctx, "rag."+stage, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
