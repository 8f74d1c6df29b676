package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	InvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "celebtwin",
			Name:      "invocations_total",
			Help:      "Total number of inference process invocations",
		},
		[]string{"operation", "outcome"}, // outcome: ok / timeout / overflow / start_error / empty_output
	)

	InvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "celebtwin",
			Name:      "invocation_duration_seconds",
			Help:      "Inference process wall time in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"operation"},
	)

	InvocationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "celebtwin",
			Name:      "invocations_in_flight",
			Help:      "Inference processes currently running",
		},
	)

	PipelineFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "celebtwin",
			Name:      "pipeline_failures_total",
			Help:      "Pipeline failures by operation, last reached stage and error kind",
		},
		[]string{"operation", "stage", "kind"},
	)

	StagedBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "celebtwin",
			Name:      "staged_bytes_total",
			Help:      "Bytes written to the staging directory",
		},
		[]string{"operation"},
	)

	CleanupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "celebtwin",
			Name:      "cleanup_failures_total",
			Help:      "Staged files that could not be removed",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(InvocationsTotal)
	prometheus.MustRegister(InvocationDuration)
	prometheus.MustRegister(InvocationsInFlight)
	prometheus.MustRegister(PipelineFailuresTotal)
	prometheus.MustRegister(StagedBytesTotal)
	prometheus.MustRegister(CleanupFailuresTotal)
	pipelineMetricsRegistered = true
}
