package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Execution results used as the "result" label.
const (
	ResultFinished = "finished"
	ResultFailed   = "failed"
)

// Metrics bundles executor metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ExecutionsTotal   *prometheus.CounterVec
	TasksCancelled    *prometheus.CounterVec
	AlarmsFiltered    *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	QueueDepth        *prometheus.GaugeVec
}

// New constructs metrics registered on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellexec_executions_total",
				Help: "Total command executions by executor, action and result",
			},
			[]string{"pid", "action", "result"},
		),
		TasksCancelled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellexec_tasks_cancelled_total",
				Help: "Total pending trigger tasks cancelled before execution",
			},
			[]string{"pid"},
		),
		AlarmsFiltered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellexec_alarms_filtered_total",
				Help: "Total alarm updates rejected by the filter",
			},
			[]string{"pid"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellexec_execution_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pid"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shellexec_queue_depth",
				Help: "Pending trigger tasks per executor",
			},
			[]string{"pid"},
		),
	}

	m.registry.MustRegister(
		m.ExecutionsTotal,
		m.TasksCancelled,
		m.AlarmsFiltered,
		m.ExecutionDuration,
		m.QueueDepth,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveExecution records one command execution.
func (m *Metrics) ObserveExecution(pid, action string, finished bool, duration time.Duration) {
	if m == nil {
		return
	}

	result := ResultFailed
	if finished {
		result = ResultFinished
	}

	m.ExecutionsTotal.WithLabelValues(pid, action, result).Inc()
	m.ExecutionDuration.WithLabelValues(pid).Observe(duration.Seconds())
}

// TaskCancelled records a pending task removed before execution.
func (m *Metrics) TaskCancelled(pid string) {
	if m == nil {
		return
	}

	m.TasksCancelled.WithLabelValues(pid).Inc()
}

// AlarmFiltered records an alarm update rejected by the filter.
func (m *Metrics) AlarmFiltered(pid string) {
	if m == nil {
		return
	}

	m.AlarmsFiltered.WithLabelValues(pid).Inc()
}

// SetQueueDepth publishes the number of pending tasks.
func (m *Metrics) SetQueueDepth(pid string, depth int) {
	if m == nil {
		return
	}

	m.QueueDepth.WithLabelValues(pid).Set(float64(depth))
}
