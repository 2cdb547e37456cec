package extract

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCompletionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "extract_completion_latency_ms",
		Help:    "Latency of one model completion",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
	})

	metricFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extract_failures_total",
		Help: "Extraction failures by stage",
	}, []string{"stage"})

	metricRPCReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extract_rpc_reconnects_total",
		Help: "Successful re-dials of the extractor sidecar",
	})
)
