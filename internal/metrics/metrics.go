// Package metrics provides Prometheus metrics for ingestion runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesTotal counts messages by terminal outcome.
	// Labels: outcome (persisted-new, persisted-updated, skipped-duplicate, ...)
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "pipeline",
			Name:      "messages_total",
			Help:      "Total number of messages processed by outcome",
		},
		[]string{"outcome"},
	)

	// RunsTotal counts pipeline runs.
	// Labels: result (success, errors, fatal, skipped)
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by result",
		},
		[]string{"result"},
	)

	// RunDuration tracks how long a run takes end to end.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tracker",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// LastRunTimestamp is the unix time the last run finished.
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tracker",
			Subsystem: "pipeline",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last finished run",
		},
	)

	// LLMRequestsTotal counts model calls.
	// Labels: stage (classification, extraction), result (success, fallback)
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of LLM requests by stage and result",
		},
		[]string{"stage", "result"},
	)
)

// Run result labels
const (
	RunSuccess = "success"
	RunErrors  = "errors"
	RunFatal   = "fatal"
	RunSkipped = "skipped"
)

// ObserveRun records a finished run
func ObserveRun(result string, elapsed time.Duration, finished time.Time) {
	RunsTotal.WithLabelValues(result).Inc()
	RunDuration.Observe(elapsed.Seconds())
	LastRunTimestamp.Set(float64(finished.Unix()))
}

// ObserveLLM records one model call for a stage
func ObserveLLM(stage string, fellBack bool) {
	result := "success"
	if fellBack {
		result = "fallback"
	}
	LLMRequestsTotal.WithLabelValues(stage, result).Inc()
}
