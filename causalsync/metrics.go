package causalsync

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/causalmesh/go-causalmesh/metrics"
)

const namespace = "causalsync"

var (
	requests = metrics.NewCounter(
		"requests",
		namespace,
		"Requests issued to remotes by outcome",
		[]string{"outcome"},
	)
	requestsSent      = requests.WithLabelValues("sent")
	requestsCompleted = requests.WithLabelValues("completed")
	requestsRejected  = requests.WithLabelValues("rejected")
	requestsFailed    = requests.WithLabelValues("send_failed")

	cancels = metrics.NewCounter(
		"cancels",
		namespace,
		"Requests cancelled by reason",
		[]string{"reason"},
	)

	opsFetched = metrics.NewCounter(
		"ops_fetched",
		namespace,
		"Ops received from remotes and persisted",
		[]string{},
	).WithLabelValues()

	pendingOps = metrics.NewGauge(
		"pending_ops",
		namespace,
		"Ops requested but not yet received",
		[]string{},
	).WithLabelValues()

	responseLatency = metrics.NewHistogramWithBuckets(
		"response_latency_seconds",
		namespace,
		"Time until a response arrives",
		[]string{},
		prometheus.ExponentialBuckets(0.001, 2, 16),
	).WithLabelValues()

	served = metrics.NewCounter(
		"served",
		namespace,
		"Requests served to remotes by result",
		[]string{"result"},
	)
	servedResponses = served.WithLabelValues("response")
	servedRejects   = served.WithLabelValues("reject")
	servedCancelled = served.WithLabelValues("cancelled")
)
