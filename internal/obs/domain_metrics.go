package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteComputedTotal counts quote computations by outcome.
	QuoteComputedTotal *prometheus.CounterVec
	// QuoteDuration records quote computation latency in milliseconds.
	QuoteDuration *prometheus.HistogramVec
	// DiscountRejectedTotal counts discounts refused by kind and reason code.
	DiscountRejectedTotal *prometheus.CounterVec
	// TaxProviderTotal counts tax rate lookups by source and outcome.
	TaxProviderTotal *prometheus.CounterVec
	// DraftOperationsTotal counts draft store operations by outcome.
	DraftOperationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteComputedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_computed_total",
			Help:      "Count of order quotes computed by outcome.",
		}, []string{"result"})
		QuoteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Latency of quote computation including rate lookups in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"result"})
		DiscountRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_rejected_total",
			Help:      "Count of rejected discounts by kind and reason.",
		}, []string{"kind", "code"})
		TaxProviderTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_provider_total",
			Help:      "Count of tax rate lookups by source and outcome.",
		}, []string{"source", "result"})
		DraftOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_operations_total",
			Help:      "Count of order draft operations by outcome.",
		}, []string{"op", "result"})

		register(reg, &QuoteComputedTotal)
		register(reg, &QuoteDuration)
		register(reg, &DiscountRejectedTotal)
		register(reg, &TaxProviderTotal)
		register(reg, &DraftOperationsTotal)
	})
}

// IncCounter increments vec with labels when the collector is registered.
func IncCounter(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// ObserveMillis records ms on vec with labels when the collector is registered.
func ObserveMillis(vec *prometheus.HistogramVec, ms float64, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Observe(ms)
}
