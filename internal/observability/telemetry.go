// Package observability wires each top-level Client.Request call into
// an OpenTelemetry span and, when enabled, an OTLP/HTTP exporter.
// Nothing about the kernel wire protocol carries tracing fields of its
// own (see propagation.go); this package only instruments the host
// side of a call.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config selects how spans are exported.
type Config struct {
	Enabled     bool
	Exporter    string  // "otlp-http" (default) or "noop"
	Endpoint    string  // e.g. "localhost:4318"
	ServiceName string
	SampleRate  float64 // 0 < rate < 1; anything outside that range always-samples
}

// shutdownGrace bounds how long Shutdown waits for the exporter to
// flush its last batch.
const shutdownGrace = 5 * time.Second

// tracerState is the process-wide tracer Init swaps in. Readers go
// through Tracer()/Enabled() rather than holding a reference, so a
// later Init call (a config reload) takes effect for every caller.
type tracerState struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	enabled  bool
}

var (
	mu      sync.RWMutex
	current = &tracerState{tracer: trace.NewNoopTracerProvider().Tracer("")}
)

// Init builds and installs the process-wide tracer from cfg. Disabled
// configs (the default, until a caller opts in) install a no-op
// tracer so every span-creating call site stays branchless.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		swap(&tracerState{tracer: trace.NewNoopTracerProvider().Tracer("")})
		return nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion("1.0.0"),
	))
	if err != nil {
		return fmt.Errorf("jsiihost: build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	swap(&tracerState{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		enabled:  true,
	})
	return nil
}

// newExporter picks the span exporter named by cfg.Exporter. "noop"
// exists so a caller can exercise span creation in tests without
// standing up an OTLP collector.
func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "otlp-http", "otlp":
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
	case "noop":
		return discardExporter{}, nil
	default:
		return nil, fmt.Errorf("jsiihost: unknown trace exporter %q", cfg.Exporter)
	}
}

func samplerFor(rate float64) sdktrace.Sampler {
	if rate <= 0 || rate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

func swap(s *tracerState) {
	mu.Lock()
	current = s
	mu.Unlock()
}

// Shutdown flushes and releases the currently installed tracer
// provider. A no-op if tracing was never enabled.
func Shutdown(ctx context.Context) error {
	mu.RLock()
	provider := current.provider
	mu.RUnlock()
	if provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	return provider.Shutdown(ctx)
}

// Tracer returns the process-wide tracer.
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return current.tracer
}

// Enabled reports whether the last Init call installed a live
// exporter.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return current.enabled
}

// discardExporter drops every span handed to it.
type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discardExporter) Shutdown(context.Context) error                            { return nil }
