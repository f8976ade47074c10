package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	frameforge = "frameforge"

	statusLabel    = "status"
	stageLabel     = "stage"
	operationLabel = "operation"
	resultLabel    = "result"
)

var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: frameforge,
		Name:      "jobs_total",
		Help:      "number of jobs that reached a terminal status",
	},
	[]string{statusLabel},
)

var stageDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: frameforge,
		Name:      "stage_duration_seconds",
		Help:      "time spent in each pipeline stage",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
	},
	[]string{stageLabel},
)

var bestEffortFailuresMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: frameforge,
		Name:      "best_effort_failures_total",
		Help:      "number of swallowed publish and notification failures",
	},
	[]string{operationLabel},
)

var messagesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: frameforge,
		Name:      "messages_total",
		Help:      "number of queue messages handled by the consumer, by result",
	},
	[]string{resultLabel},
)

func observeJob(status string) {
	jobsTotalMetric.With(prometheus.Labels{statusLabel: status}).Inc()
}

func observeStage(stage string, d time.Duration) {
	stageDurationMetric.With(prometheus.Labels{stageLabel: stage}).Observe(d.Seconds())
}

func observeBestEffortFailure(operation string) {
	bestEffortFailuresMetric.With(prometheus.Labels{operationLabel: operation}).Inc()
}

// ObserveMessage counts one consumed message by how it was handled.
func ObserveMessage(result string) {
	messagesTotalMetric.With(prometheus.Labels{resultLabel: result}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsTotalMetric)
	prometheus.MustRegister(stageDurationMetric)
	prometheus.MustRegister(bestEffortFailuresMetric)
	prometheus.MustRegister(messagesTotalMetric)
}
