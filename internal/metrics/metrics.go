// Package metrics holds the Prometheus collectors for every ledger pass.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics groups the ledger's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	QuotesSeen     *prometheus.CounterVec
	Rejections     *prometheus.CounterVec
	Upserts        *prometheus.CounterVec
	Settlements    *prometheus.CounterVec
	Reviews        *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	ClosingLines   *prometheus.CounterVec
	PassDuration   *prometheus.HistogramVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		QuotesSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_ledger_quotes_seen_total",
			Help: "Quotes evaluated by the edge engine",
		}, []string{"sport"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_ledger_rejections_total",
			Help: "Quotes rejected by the edge engine",
		}, []string{"sport", "reason"}),
		Upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_ledger_upserts_total",
			Help: "Opportunity upserts by result",
		}, []string{"sport", "result"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_ledger_settlements_total",
			Help: "Opportunities settled by outcome",
		}, []string{"sport", "outcome"}),
		Reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_ledger_reviews_flagged_total",
			Help: "Opportunities flagged for manual review",
		}, []string{"sport", "reason"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_ledger_provider_errors_total",
			Help: "Failed calls to external providers",
		}, []string{"provider", "sport"}),
		ClosingLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_ledger_closing_lines_total",
			Help: "Closing prices recorded",
		}, []string{"sport"}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edge_ledger_pass_duration_seconds",
			Help:    "Wall time of one pass",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass", "sport"}),
	}

	m.registry.MustRegister(
		m.QuotesSeen,
		m.Rejections,
		m.Upserts,
		m.Settlements,
		m.Reviews,
		m.ProviderErrors,
		m.ClosingLines,
		m.PassDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePass records how long a pass took
func (m *Metrics) ObservePass(pass, sport string, started time.Time) {
	m.PassDuration.WithLabelValues(pass, sport).Observe(time.Since(started).Seconds())
}

// Push sends the current values to a Pushgateway; batch passes call it
// before exiting. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
