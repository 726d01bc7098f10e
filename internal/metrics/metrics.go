// Package metrics exposes quiz engine counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements app.Metrics.
type Collector struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	answers           *prometheus.CounterVec
	staleTimers       *prometheus.CounterVec
	renderFailures    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "sessions_started_total",
			Help:      "Quiz sessions started",
		}),
		sessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "sessions_completed_total",
			Help:      "Quiz sessions completed, by reason",
		}, []string{"reason"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "trivia",
			Name:      "sessions_active",
			Help:      "Quiz sessions that have not completed yet",
		}),
		answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "answers_total",
			Help:      "Answers processed, by outcome",
		}, []string{"outcome"}),
		staleTimers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "stale_timers_total",
			Help:      "Timer callbacks ignored because the session moved on",
		}, []string{"timer"}),
		renderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "render_failures_total",
			Help:      "Transport calls that failed, by operation",
		}, []string{"operation"}),
	}
}

func (c *Collector) SessionStarted() {
	c.sessionsStarted.Inc()
	c.activeSessions.Inc()
}

func (c *Collector) SessionCompleted(reason string) {
	c.sessionsCompleted.WithLabelValues(reason).Inc()
	c.activeSessions.Dec()
}

func (c *Collector) AnswerProcessed(outcome string) {
	c.answers.WithLabelValues(outcome).Inc()
}

func (c *Collector) StaleTimerFired(kind string) {
	c.staleTimers.WithLabelValues(kind).Inc()
}

func (c *Collector) RenderFailed(operation string) {
	c.renderFailures.WithLabelValues(operation).Inc()
}
