package logging

import (
	"log/slog"
	"os"
)

// InitStructured swaps the operational logger's handler between plain
// text (readable on a terminal, the default) and JSON (one object per
// line, for a collector that wants to index it), and applies level.
func InitStructured(format, level string) {
	SetLevelFromString(level)
	opLogger.Store(slog.New(newHandler(format)))
}

// newHandler builds the slog.Handler InitStructured and the package's
// own init install: "json" for a structured sink, anything else
// (including "") for plain text.
func newHandler(format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: levelVar}
	if format == "json" {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

// OpWithTrace returns the operational logger with trace/span id fields
// attached, for a log line emitted while a request span is active.
func OpWithTrace(traceID, spanID string) *slog.Logger {
	if traceID == "" {
		return Op()
	}
	fields := []any{"trace_id", traceID}
	if spanID != "" {
		fields = append(fields, "span_id", spanID)
	}
	return Op().With(fields...)
}
