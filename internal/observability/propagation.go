package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceParentKey = "traceparent"
	traceStateKey  = "tracestate"
)

// TraceContext is the W3C trace-context pair carried alongside a
// request whenever it crosses a boundary the OpenTelemetry SDK can't
// instrument directly — the kernel wire protocol has no tracing
// fields of its own, so a generated binding that wants end-to-end
// correlation threads this through its own side channel instead (a
// callback's cookie, say).
type TraceContext struct {
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// ExtractTraceContext reads ctx's current span into a TraceContext,
// or a zero value if tracing is disabled.
func ExtractTraceContext(ctx context.Context) TraceContext {
	if !Enabled() {
		return TraceContext{}
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{
		TraceParent: carrier.Get(traceParentKey),
		TraceState:  carrier.Get(traceStateKey),
	}
}

// InjectTraceContext resumes ctx under the span tc describes, or
// returns ctx unchanged if tc carries nothing.
func InjectTraceContext(ctx context.Context, tc TraceContext) context.Context {
	if tc.TraceParent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{
		traceParentKey: tc.TraceParent,
		traceStateKey:  tc.TraceState,
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// GetTraceID reports ctx's current trace id, or "" if none.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID reports ctx's current span id, or "" if none.
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}
