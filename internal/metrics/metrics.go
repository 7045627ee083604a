// Package metrics holds the Prometheus instrumentation for the
// interview service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InterviewsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rehearse_interviews_started_total",
		Help: "Interviews whose door-opening sequence began.",
	})

	InterviewsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rehearse_interviews_ended_total",
		Help: "Interviews ended, labeled by outcome (completed or abandoned).",
	}, []string{"outcome"})

	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rehearse_turns_total",
		Help: "Turns appended to interview histories, labeled by kind (ai or user).",
	}, []string{"kind"})

	RepeatRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rehearse_repeat_requests_total",
		Help: "Question repeats, silence-driven and service-driven.",
	})

	DecisionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rehearse_decision_failures_total",
		Help: "Turn decisions that failed and fell back to re-listening.",
	})

	DecisionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rehearse_decision_seconds",
		Help:    "Latency of decision service turn calls.",
		Buckets: prometheus.DefBuckets,
	})

	ActiveInterviews = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rehearse_active_interviews",
		Help: "Interviews currently connected over WebSocket.",
	})
)
