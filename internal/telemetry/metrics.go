package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	EnvelopesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "broadcaster",
			Name:      "envelopes_received_total",
			Help:      "Envelopes decoded from the input stream, by body type.",
		},
		[]string{"type"},
	)

	EnvelopesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "broadcaster",
			Name:      "envelopes_sent_total",
			Help:      "Envelopes written to the output stream, by body type.",
		},
		[]string{"type"},
	)

	DecodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "broadcaster",
			Name:      "decode_errors_total",
			Help:      "Input lines discarded because they did not decode.",
		},
	)

	TicksDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "broadcaster",
			Name:      "ticks_dropped_total",
			Help:      "Ticks not enqueued because the event queue was full.",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "broadcaster",
			Name:      "event_queue_depth",
			Help:      "Events waiting for the consumer.",
		},
	)

	KnownValues = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "broadcaster",
			Name:      "known_values",
			Help:      "Distinct values this node has observed.",
		},
	)

	GossipValuesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "broadcaster",
			Name:      "gossip_values_sent_total",
			Help:      "Values placed in outgoing gossip, split into unknown and repair portions.",
		},
		[]string{"portion"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "broadcaster",
			Name:      "handler_duration_seconds",
			Help:      "Time spent handling one event on the consumer.",
			// 10us .. ~160ms
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		},
		[]string{"event"},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "broadcaster",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "broadcaster",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		EnvelopesReceived, EnvelopesSent, DecodeErrors, TicksDropped,
		QueueDepth, KnownValues, GossipValuesSent, HandlerDuration,
		buildInfo, uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// Instrument runs fn and records its latency under the provided "event" label.
// Example:
//
//	err := telemetry.Instrument("tick", func() error { return h.HandleTick(out) })
func Instrument(event string, fn func() error) error {
	start := time.Now()
	err := fn()
	HandlerDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
	return err
}
