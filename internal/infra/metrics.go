package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors the core reports into. A nil
// *Metrics is safe to use everywhere; every method no-ops on nil so tests
// can skip metric wiring entirely.
type Metrics struct {
	JobsEnqueued    *prometheus.CounterVec
	JobsCompleted   prometheus.Counter
	JobsFailed      prometheus.Counter
	QueueDepth      prometheus.Gauge
	JobLatency      prometheus.Histogram
	ProviderRetries *prometheus.CounterVec
	Fallbacks       *prometheus.CounterVec
	GuardViolations *prometheus.CounterVec
}

// NewMetrics registers the core collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyforge_jobs_enqueued_total",
			Help: "Jobs admitted to the scheduler, by tier.",
		}, []string{"tier"}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyforge_jobs_completed_total",
			Help: "Jobs that finished with a bundle.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyforge_jobs_failed_total",
			Help: "Jobs that finished with an error.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storyforge_queue_depth",
			Help: "Jobs currently queued across both tiers.",
		}),
		JobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storyforge_job_latency_seconds",
			Help:    "Wall-clock time from dequeue to final status.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ProviderRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyforge_provider_retries_total",
			Help: "Per-task retry attempts, by provider kind.",
		}, []string{"kind"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyforge_provider_fallbacks_total",
			Help: "Fallback transitions between provider kinds.",
		}, []string{"from", "to"}),
		GuardViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyforge_guard_violations_total",
			Help: "Guardrail violations recorded, by stage.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.JobsEnqueued, m.JobsCompleted, m.JobsFailed,
		m.QueueDepth, m.JobLatency,
		m.ProviderRetries, m.Fallbacks, m.GuardViolations,
	)
	return m
}

func (m *Metrics) IncEnqueued(tier string) {
	if m != nil {
		m.JobsEnqueued.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) IncCompleted() {
	if m != nil {
		m.JobsCompleted.Inc()
	}
}

func (m *Metrics) IncFailed() {
	if m != nil {
		m.JobsFailed.Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) ObserveJobSeconds(s float64) {
	if m != nil {
		m.JobLatency.Observe(s)
	}
}

func (m *Metrics) IncRetry(kind string) {
	if m != nil {
		m.ProviderRetries.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncFallback(from, to string) {
	if m != nil {
		m.Fallbacks.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncGuardViolation(stage string) {
	if m != nil {
		m.GuardViolations.WithLabelValues(stage).Inc()
	}
}
