package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for provider and dispatch activity.
type Metrics struct {
	requests    *prometheus.CounterVec
	cost        *prometheus.CounterVec
	chars       *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	budgetUsage *prometheus.GaugeVec
	dispatches  *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingoroute_provider_requests_total",
				Help: "Total number of provider invocations",
			},
			[]string{"provider", "outcome"},
		),
		cost: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingoroute_provider_cost_total",
				Help: "Total cost charged per provider",
			},
			[]string{"provider"},
		),
		chars: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingoroute_provider_chars_total",
				Help: "Total characters sent to each provider",
			},
			[]string{"provider"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lingoroute_provider_latency_seconds",
				Help:    "Provider call latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),
		budgetUsage: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lingoroute_provider_budget_usage_ratio",
				Help: "Fraction of the budget consumed in the current period (0.0-1.0+)",
			},
			[]string{"provider", "window"},
		),
		dispatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingoroute_dispatch_total",
				Help: "Total translation requests by result",
			},
			[]string{"result"},
		),
	}
}

// SetBudgetUsage publishes the provider's daily and monthly usage ratios.
func (m *Metrics) SetBudgetUsage(provider string, daily, monthly float64) {
	if m == nil {
		return
	}
	m.budgetUsage.WithLabelValues(provider, "daily").Set(daily)
	m.budgetUsage.WithLabelValues(provider, "monthly").Set(monthly)
}

// ObserveDispatch counts one finished request. Result is accepted, cached or degraded.
func (m *Metrics) ObserveDispatch(result string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(result).Inc()
}
