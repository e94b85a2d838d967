package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/causalmesh/go-causalmesh/metrics"
)

const (
	subsystem  = "server"
	protoLabel = "protocol"
)

var (
	targetQueue = metrics.NewGauge(
		"target_queue",
		subsystem,
		"target size of the queue",
		[]string{protoLabel},
	)
	queue = metrics.NewGauge(
		"queue",
		subsystem,
		"actual size of the queue",
		[]string{protoLabel},
	)
	targetRps = metrics.NewGauge(
		"rps",
		subsystem,
		"target messages per second",
		[]string{protoLabel},
	)
	streams = metrics.NewCounter(
		"streams",
		subsystem,
		"inbound streams counter",
		[]string{protoLabel, "state"},
	)
	messages = metrics.NewCounter(
		"messages",
		subsystem,
		"messages counter",
		[]string{protoLabel, "direction", "result"},
	)
	sendLatency = metrics.NewHistogramWithBuckets(
		"send_latency_seconds",
		subsystem,
		"latency of writing a message to the stream",
		[]string{protoLabel},
		prometheus.ExponentialBuckets(0.001, 2, 12),
	)
	handlerLatency = metrics.NewHistogramWithBuckets(
		"handler_latency_seconds",
		subsystem,
		"latency of processing a received message",
		[]string{protoLabel},
		prometheus.ExponentialBuckets(0.001, 2, 12),
	)
)

func newTracker(protocol string) *tracker {
	return &tracker{
		targetQueue:    targetQueue.WithLabelValues(protocol),
		queue:          queue.WithLabelValues(protocol),
		targetRps:      targetRps.WithLabelValues(protocol),
		accepted:       streams.WithLabelValues(protocol, "accepted"),
		dropped:        streams.WithLabelValues(protocol, "dropped"),
		received:       messages.WithLabelValues(protocol, "in", "ok"),
		rejected:       messages.WithLabelValues(protocol, "in", "failed"),
		sent:           messages.WithLabelValues(protocol, "out", "ok"),
		sendFailed:     messages.WithLabelValues(protocol, "out", "failed"),
		sendLatency:    sendLatency.WithLabelValues(protocol),
		handlerLatency: handlerLatency.WithLabelValues(protocol),
	}
}

type tracker struct {
	targetQueue                 prometheus.Gauge
	queue                       prometheus.Gauge
	targetRps                   prometheus.Gauge
	accepted, dropped           prometheus.Counter
	received, rejected          prometheus.Counter
	sent, sendFailed            prometheus.Counter
	sendLatency, handlerLatency prometheus.Observer
}
