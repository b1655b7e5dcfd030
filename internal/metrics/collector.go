// Package metrics exposes Prometheus instrumentation for the submission
// pipeline. A nil *Collector is valid and records nothing, which keeps test
// wiring free of registry setup.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every metric the runner and clients record.
type Collector struct {
	attemptsTotal    *prometheus.CounterVec
	stepsTotal       prometheus.Counter
	decisionsTotal   *prometheus.CounterVec
	modelCallSeconds prometheus.Histogram
	resolverCalls    prometheus.Counter
	resolverWait     prometheus.Histogram
	jobsTotal        *prometheus.CounterVec
}

// NewCollector registers the metric set on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "submitflow",
			Name:      "attempts_total",
			Help:      "Directory submission attempts by final status.",
		}, []string{"status"}),
		stepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "submitflow",
			Name:      "steps_total",
			Help:      "Decision loop steps executed.",
		}),
		decisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "submitflow",
			Name:      "decisions_total",
			Help:      "Model decisions by status.",
		}, []string{"status"}),
		modelCallSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "submitflow",
			Name:      "model_call_seconds",
			Help:      "Wall time of one vision model call.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		resolverCalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "submitflow",
			Name:      "resolver_calls_total",
			Help:      "Element grounding service calls.",
		}),
		resolverWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "submitflow",
			Name:      "resolver_wait_seconds",
			Help:      "Time spent blocked on the resolver rate limit.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "submitflow",
			Name:      "jobs_total",
			Help:      "Jobs by final status.",
		}, []string{"status"}),
	}
}

func (c *Collector) AttemptFinished(status string) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) StepExecuted() {
	if c == nil {
		return
	}
	c.stepsTotal.Inc()
}

func (c *Collector) DecisionMade(status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.decisionsTotal.WithLabelValues(status).Inc()
	c.modelCallSeconds.Observe(elapsed.Seconds())
}

func (c *Collector) ResolverCalled(waited time.Duration) {
	if c == nil {
		return
	}
	c.resolverCalls.Inc()
	c.resolverWait.Observe(waited.Seconds())
}

func (c *Collector) JobFinished(status string) {
	if c == nil {
		return
	}
	c.jobsTotal.WithLabelValues(status).Inc()
}
