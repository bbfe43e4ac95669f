package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLMMetrics exposes counters/histograms for provider calls and orchestration outcomes.
type LLMMetrics struct {
	invocationsTotal *prometheus.CounterVec
	invokeLatency    *prometheus.HistogramVec
	outcomesTotal    *prometheus.CounterVec
	fallbacksTotal   *prometheus.CounterVec
	repairsTotal     *prometheus.CounterVec
}

func NewLLMMetrics(reg prometheus.Registerer) *LLMMetrics {
	m := &LLMMetrics{
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident",
			Subsystem: "llm",
			Name:      "invocations_total",
			Help:      "Total provider invocations by outcome",
		}, []string{"provider", "outcome"}),
		invokeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "incident",
			Subsystem: "llm",
			Name:      "invoke_latency_seconds",
			Help:      "Latency of provider invocations",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 15, 20, 30},
		}, []string{"provider"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident",
			Subsystem: "orchestrator",
			Name:      "outcomes_total",
			Help:      "Terminal orchestrator states by request kind",
		}, []string{"kind", "state"}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident",
			Subsystem: "orchestrator",
			Name:      "fallbacks_total",
			Help:      "Rule-based fallback analyses by reason",
		}, []string{"reason"}),
		repairsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident",
			Subsystem: "validator",
			Name:      "failures_total",
			Help:      "Responses rejected by the validator by error class",
		}, []string{"class"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.invocationsTotal, m.invokeLatency, m.outcomesTotal, m.fallbacksTotal, m.repairsTotal)
	return m
}

func (m *LLMMetrics) ObserveInvocation(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.invocationsTotal.WithLabelValues(provider, outcome).Inc()
	m.invokeLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *LLMMetrics) ObserveOutcome(kind, state string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(kind, state).Inc()
}

func (m *LLMMetrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacksTotal.WithLabelValues(reason).Inc()
}

func (m *LLMMetrics) ObserveValidationFailure(class string) {
	if m == nil {
		return
	}
	m.repairsTotal.WithLabelValues(class).Inc()
}
