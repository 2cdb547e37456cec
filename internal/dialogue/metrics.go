package dialogue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_turns_total",
		Help: "User turns by outcome",
	}, []string{"outcome"})

	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_state_transitions_total",
		Help: "Dialogue state transitions",
	}, []string{"from", "to"})

	metricExtractionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_extraction_errors_total",
		Help: "Extractor calls that failed or timed out",
	})

	metricPromptsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_prompts_suppressed_total",
		Help: "Prompts not repeated because the same prompt was just asked",
	})

	metricBookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_bookings_total",
		Help: "Booking creation attempts by outcome",
	}, []string{"outcome"})
)
