package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// collectors wraps the Prometheus collectors backing this package's
// Record* functions.
type collectors struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	callbacksTotal      prometheus.Counter
	callbackDepth       prometheus.Histogram
	kernelRestartsTotal prometheus.Counter
	marshalErrorsTotal  *prometheus.CounterVec
	activeRequests      prometheus.Gauge
	uptime              prometheus.GaugeFunc
}

// defaultBuckets are request-duration buckets in milliseconds, sized
// for a local child-process round trip rather than a network call.
var defaultBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

var promMetrics *collectors

// Init initializes the Prometheus registry under namespace. Safe to
// call at most once; RecordRequest/RecordCallback/etc. are no-ops
// until this has run.
func Init(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	c := &collectors{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of kernel requests by tag and outcome",
			},
			[]string{"tag", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_milliseconds",
				Help:      "Duration of kernel requests in milliseconds",
				Buckets:   buckets,
			},
			[]string{"tag"},
		),

		callbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callbacks_total",
				Help:      "Total number of callback interrupts dispatched",
			},
		),

		callbackDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "callback_depth",
				Help:      "Nesting depth observed when a callback is dispatched",
				Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
			},
		),

		kernelRestartsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kernel_restarts_total",
				Help:      "Total number of unexpected kernel process exits",
			},
		),

		marshalErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "marshal_errors_total",
				Help:      "Total number of host<->wire marshal failures by direction",
			},
			[]string{"direction"}, // to-wire, from-wire
		),

		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_requests",
				Help:      "Number of Client.Request calls currently in flight",
			},
		),
	}

	c.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since this client's metrics were initialized",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.callbacksTotal,
		c.callbackDepth,
		c.kernelRestartsTotal,
		c.marshalErrorsTotal,
		c.activeRequests,
		c.uptime,
	)

	promMetrics = c
}

// Handler returns an HTTP handler for Prometheus scraping. Returns a
// 503 responder if Init has not been called.
func Handler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry, for custom collectors, or
// nil if Init has not been called.
func Registry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
