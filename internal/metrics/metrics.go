package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dispatch"

// Metrics holds the collectors for webhook intake and agent runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	WebhooksTotal    *prometheus.CounterVec
	AgentRunsTotal   *prometheus.CounterVec
	AgentTokensTotal *prometheus.CounterVec
	AgentRunDuration *prometheus.HistogramVec
	AgentRunsActive  prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		WebhooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Inbound webhook requests by platform and outcome status",
		}, []string{"platform", "status"}),
		AgentRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Completed agent runs by agent and outcome",
		}, []string{"agent", "outcome"}),
		AgentTokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_tokens_total",
			Help:      "Reasoning tokens consumed by agent",
		}, []string{"agent"}),
		AgentRunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_run_duration_seconds",
			Help:      "Wall clock duration of agent runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"agent"}),
		AgentRunsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_runs_active",
			Help:      "Agent runs currently in flight",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordWebhook(platform, status string) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(platform, status).Inc()
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.AgentRunsActive.Inc()
}

func (m *Metrics) RunFinished(agent string, success bool, tokens int, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.AgentRunsActive.Dec()
	m.AgentRunsTotal.WithLabelValues(agent, outcome).Inc()
	if tokens > 0 {
		m.AgentTokensTotal.WithLabelValues(agent).Add(float64(tokens))
	}
	m.AgentRunDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}
