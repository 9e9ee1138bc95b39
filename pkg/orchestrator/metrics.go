package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by all orchestrators of a process. Create them once per
// registerer.
type Metrics struct {
	ActiveSessions   *prometheus.GaugeVec
	Turns            *prometheus.CounterVec
	ModelInvocations *prometheus.CounterVec
	ModelDuration    *prometheus.HistogramVec
	ToolInvocations  *prometheus.CounterVec
	Handoffs         *prometheus.CounterVec
	Completions      *prometheus.CounterVec
	PublishFailures  *prometheus.CounterVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions currently running",
		}, []string{"domain"}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of user turns handled",
		}, []string{"domain"}),
		ModelInvocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_invocations_total",
			Help:      "Total number of model invocations",
		}, []string{"domain", "outcome"}),
		ModelDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_invocation_duration_seconds",
			Help:      "Model invocation duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"domain"}),
		ToolInvocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Total number of tool invocations",
		}, []string{"domain", "tool", "outcome"}),
		Handoffs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Total number of role handoffs",
		}, []string{"domain", "from", "to"}),
		Completions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Total number of sessions that completed their task",
		}, []string{"domain"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Total number of lifecycle events that could not be published",
		}, []string{"topic"}),
	}
}
