package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	fanoutTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecrank",
			Name:      "fanout_tasks_total",
			Help:      "Fanout embedding tasks by pool and outcome",
		},
		[]string{"pool", "status"},
	)

	fanoutInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vecrank",
			Name:      "fanout_tasks_in_flight",
			Help:      "Fanout embedding tasks currently running",
		},
		[]string{"pool"},
	)

	fanoutTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecrank",
			Name:      "fanout_task_duration_seconds",
			Help:      "Duration of a single fanout embedding task",
			Buckets:   []float64{0.005, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"pool"},
	)
)

var fanoutMetricsRegistered bool

// RegisterFanoutMetrics registers fanout metrics. Must be called once from main.
func RegisterFanoutMetrics() {
	if fanoutMetricsRegistered {
		return
	}
	prometheus.MustRegister(fanoutTasksTotal)
	prometheus.MustRegister(fanoutInFlight)
	prometheus.MustRegister(fanoutTaskDuration)
	fanoutMetricsRegistered = true
}

// FanoutRecorder implements fanout.Recorder on top of the package collectors.
type FanoutRecorder struct{}

// TaskStarted increments the in-flight gauge.
func (FanoutRecorder) TaskStarted(pool string) {
	fanoutInFlight.WithLabelValues(pool).Inc()
}

// TaskFinished decrements the in-flight gauge and records the outcome.
func (FanoutRecorder) TaskFinished(pool string, ok bool, d time.Duration) {
	fanoutInFlight.WithLabelValues(pool).Dec()
	status := "success"
	if !ok {
		status = "fallback"
	}
	fanoutTasksTotal.WithLabelValues(pool, status).Inc()
	fanoutTaskDuration.WithLabelValues(pool).Observe(d.Seconds())
}
