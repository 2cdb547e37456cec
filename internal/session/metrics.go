package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "agent_sessions_active",
	Help: "Sessions created and not yet ended",
})
