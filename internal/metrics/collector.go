// Package metrics exports recorded ledger usage as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidbz/tokenledger/internal/config"
	"github.com/davidbz/tokenledger/internal/domain"
)

// Collector mirrors ledger activity into counters labelled by phase and model.
//
// Metrics:
//   - <ns>_tokens_total: tokens recorded, split by direction (input/output)
//   - <ns>_cost_usd_total: estimated cost in USD
//   - <ns>_calls_total: recorded calls
type Collector struct {
	registry *prometheus.Registry

	tokens *prometheus.CounterVec
	cost   *prometheus.CounterVec
	calls  *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics. If registry is
// nil a private registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "tokenledger"
	}

	c := &Collector{
		registry: registry,
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Tokens recorded by phase, model and direction",
			},
			[]string{"phase", "model", "direction"},
		),
		cost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_usd_total",
				Help:      "Estimated cost in USD by phase and model",
			},
			[]string{"phase", "model"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Recorded calls by phase and model",
			},
			[]string{"phase", "model"},
		),
	}

	registry.MustRegister(c.tokens, c.cost, c.calls)

	return c
}

// ObserveUsage implements domain.UsageObserver.
//
// Counters cannot decrease, so negative values accepted by a permissive
// ledger are not exported.
func (c *Collector) ObserveUsage(_ context.Context, entry domain.LogEntry) {
	if entry.InputTokens > 0 {
		c.tokens.WithLabelValues(entry.Phase, entry.Model, "input").Add(float64(entry.InputTokens))
	}
	if entry.OutputTokens > 0 {
		c.tokens.WithLabelValues(entry.Phase, entry.Model, "output").Add(float64(entry.OutputTokens))
	}
	if entry.Cost > 0 {
		c.cost.WithLabelValues(entry.Phase, entry.Model).Add(entry.Cost)
	}
	c.calls.WithLabelValues(entry.Phase, entry.Model).Inc()
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the scrape endpoint for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
