// Package metrics exposes the client's runtime observability data
// through a Prometheus registry: counters and histograms for requests,
// callback depth, kernel restarts, and marshal errors.
//
// # Concurrency
//
// Record* functions are called from the protocol engine's request path
// and must stay cheap; Prometheus collectors are already safe for
// concurrent use, so no additional locking is needed here.
package metrics

import "time"

var startTime = time.Now()

// StartTime returns when this process's metrics were initialized.
func StartTime() time.Time {
	return startTime
}

// RecordRequest records one completed Client.Request call.
func RecordRequest(tag string, durationMs int64, success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	promMetrics.requestsTotal.WithLabelValues(tag, status).Inc()
	promMetrics.requestDuration.WithLabelValues(tag).Observe(float64(durationMs))
}

// RecordCallback records one dispatched callback's nesting depth.
func RecordCallback(depth int) {
	if promMetrics == nil {
		return
	}
	promMetrics.callbacksTotal.Inc()
	promMetrics.callbackDepth.Observe(float64(depth))
}

// RecordKernelRestart records the exit-monitor observing an unexpected
// kernel exit.
func RecordKernelRestart() {
	if promMetrics == nil {
		return
	}
	promMetrics.kernelRestartsTotal.Inc()
}

// RecordMarshalError records a host<->wire value translation failure.
func RecordMarshalError(direction string) {
	if promMetrics == nil {
		return
	}
	promMetrics.marshalErrorsTotal.WithLabelValues(direction).Inc()
}

// IncActiveRequests increments the in-flight request gauge.
func IncActiveRequests() {
	if promMetrics == nil {
		return
	}
	promMetrics.activeRequests.Inc()
}

// DecActiveRequests decrements the in-flight request gauge.
func DecActiveRequests() {
	if promMetrics == nil {
		return
	}
	promMetrics.activeRequests.Dec()
}
