// Package observability collects the application's prometheus metrics behind
// a single registry so the HTTP layer can expose them on one endpoint.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every registered collector.
type Metrics struct {
	registry *prometheus.Registry

	ComparisonRequests *prometheus.CounterVec
	ComparisonDuration prometheus.Histogram
	SelectionsNoData   prometheus.Counter
	ResolverOutcomes   *prometheus.CounterVec
	RatesRefreshes     *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a private registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ComparisonRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriprice_comparison_requests_total",
			Help: "Comparison queries by outcome (ok, cached, invalid, error).",
		}, []string{"outcome"}),
		ComparisonDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agriprice_comparison_duration_seconds",
			Help:    "Wall time of comparison queries.",
			Buckets: prometheus.DefBuckets,
		}),
		SelectionsNoData: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agriprice_comparison_selections_nodata_total",
			Help: "Selections that degraded to noData.",
		}),
		ResolverOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriprice_resolver_records_total",
			Help: "Resolver record outcomes by provider, kind and outcome.",
		}, []string{"provider", "kind", "outcome"}),
		RatesRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriprice_rates_refreshes_total",
			Help: "Conversion table refreshes by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.ComparisonRequests,
		m.ComparisonDuration,
		m.SelectionsNoData,
		m.ResolverOutcomes,
		m.RatesRefreshes,
		collectors.NewGoCollector(),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveComparison records one comparison query.
func (m *Metrics) ObserveComparison(outcome string, elapsed time.Duration, noDataSelections int) {
	if m == nil {
		return
	}
	m.ComparisonRequests.WithLabelValues(outcome).Inc()
	m.ComparisonDuration.Observe(elapsed.Seconds())
	m.SelectionsNoData.Add(float64(noDataSelections))
}

// RecordResolverBatch folds one resolver batch report into the counters.
func (m *Metrics) RecordResolverBatch(provider, kind string, linked, created, unlinked, failed int) {
	if m == nil {
		return
	}
	m.ResolverOutcomes.WithLabelValues(provider, kind, "linked").Add(float64(linked))
	m.ResolverOutcomes.WithLabelValues(provider, kind, "created").Add(float64(created))
	m.ResolverOutcomes.WithLabelValues(provider, kind, "unlinked").Add(float64(unlinked))
	m.ResolverOutcomes.WithLabelValues(provider, kind, "failed").Add(float64(failed))
}

// RecordRatesRefresh records one conversion table refresh attempt.
func (m *Metrics) RecordRatesRefresh(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RatesRefreshes.WithLabelValues(outcome).Inc()
}
