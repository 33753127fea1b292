package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan opens a span for one call crossing the host/kernel
// boundary. Every span this client creates is SpanKindInternal: there
// is no inbound server role here, only a caller driving a child
// process through its own request/response loop.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SetSpanError records err on span and marks it failed.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks span as having completed successfully.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Attribute keys attached to a Client.Request span.
var (
	AttrRequestTag = attribute.Key("jsiihost.request.tag")
	AttrRequestID  = attribute.Key("jsiihost.request.id")
	AttrDurationMs = attribute.Key("jsiihost.duration_ms")
)
