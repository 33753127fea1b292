package observability

import (
	"context"
	"errors"
	"testing"
)

func TestDisabledProviderIsNoopAndSafe(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if Enabled() {
		t.Fatal("expected Enabled() false")
	}

	ctx, span := StartSpan(context.Background(), "jsiihost.request",
		AttrRequestTag.String("invoke"))
	SetSpanError(span, errors.New("boom"))
	span.End()

	if GetTraceID(ctx) != "" {
		t.Fatal("expected no trace id from a no-op span")
	}
}

func TestTraceContextPropagationIsNoopWhenDisabled(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("init: %v", err)
	}

	// With tracing disabled, extraction yields an empty carrier and
	// injection of an empty carrier is a no-op — both must be safe.
	tc := ExtractTraceContext(context.Background())
	if tc.TraceParent != "" {
		t.Fatalf("expected empty trace context when disabled, got %+v", tc)
	}

	ctx := InjectTraceContext(context.Background(), TraceContext{})
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
}
