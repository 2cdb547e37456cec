package tools

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_tool_calls_total",
		Help: "Tool executions by tool and outcome",
	}, []string{"tool", "outcome"})

	metricToolLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_tool_latency_ms",
		Help:    "Tool execution latency",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 10),
	}, []string{"tool"})
)
