package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbiter",
		Subsystem: "scheduler",
		Name:      "rounds_total",
		Help:      "Number of rounds by outcome",
	}, []string{"outcome"})

	submissionsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbiter",
		Subsystem: "scheduler",
		Name:      "submissions_total",
		Help:      "Number of scored submissions by termination reason",
	}, []string{"termination"})

	scoresMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "arbiter",
		Subsystem: "scheduler",
		Name:      "score",
		Help:      "Distribution of round scores",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	phaseLatencyMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arbiter",
		Subsystem: "scheduler",
		Name:      "phase_duration_seconds",
		Help:      "Latency of round phases",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"phase"})
)

// timePhase observes the duration of a phase when the returned func runs.
func timePhase(phase Phase) func() {
	start := time.Now()
	return func() {
		phaseLatencyMetric.WithLabelValues(phase.String()).Observe(time.Since(start).Seconds())
	}
}
