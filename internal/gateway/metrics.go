package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agent_ws_connections",
		Help: "Open frontend websocket connections",
	})

	metricInbound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_ws_inbound_total",
		Help: "Inbound frontend messages by type",
	}, []string{"type"})
)
