// Package metrics exposes orchestrator counters and histograms to
// Prometheus. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pario-ai/conduit/pkg/apierror"
)

// Collector holds the orchestrator's metric vectors on a private registry.
type Collector struct {
	registry        *prometheus.Registry
	calls           *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	coalesced       prometheus.Counter
	rateLimited     *prometheus.CounterVec
	retries         *prometheus.CounterVec
	failovers       *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
}

// New creates a Collector and registers its metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_calls_total",
			Help: "Logical calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_cache_lookups_total",
			Help: "Response cache lookups by result",
		}, []string{"result"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conduit_coalesced_calls_total",
			Help: "Calls that shared another caller's in-flight execution",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_rate_limited_total",
			Help: "Admissions denied by provider",
		}, []string{"provider"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_retries_total",
			Help: "Retries by provider and error kind",
		}, []string{"provider", "reason"}),
		failovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_failovers_total",
			Help: "Times a provider failed and the chain moved on",
		}, []string{"provider"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conduit_attempt_duration_seconds",
			Help:    "Latency of individual provider attempts",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "result"}),
	}

	c.registry.MustRegister(
		c.calls,
		c.cacheLookups,
		c.coalesced,
		c.rateLimited,
		c.retries,
		c.failovers,
		c.attemptDuration,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RegisterInFlight exposes a gauge read from fn on every scrape.
func (c *Collector) RegisterInFlight(fn func() int) {
	if c == nil {
		return
	}
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "conduit_inflight_executions",
		Help: "Coalesced executions currently running",
	}, func() float64 { return float64(fn()) }))
}

// ObserveCall counts a finished logical call.
func (c *Collector) ObserveCall(operation, outcome string) {
	if c == nil {
		return
	}
	c.calls.WithLabelValues(operation, outcome).Inc()
}

// CacheLookup counts a cache hit or miss.
func (c *Collector) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Coalesced counts a call served by another caller's execution.
func (c *Collector) Coalesced() {
	if c == nil {
		return
	}
	c.coalesced.Inc()
}

// RateLimited counts a denied admission.
func (c *Collector) RateLimited(provider string) {
	if c == nil {
		return
	}
	c.rateLimited.WithLabelValues(provider).Inc()
}

// Retry counts a retry after err.
func (c *Collector) Retry(provider string, err error) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(provider, apierror.KindOf(err).String()).Inc()
}

// Failover counts a provider failure that moved the chain on.
func (c *Collector) Failover(provider string) {
	if c == nil {
		return
	}
	c.failovers.WithLabelValues(provider).Inc()
}

// ObserveAttempt records one provider attempt's latency in seconds.
func (c *Collector) ObserveAttempt(provider string, seconds float64, err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = apierror.KindOf(err).String()
	}
	c.attemptDuration.WithLabelValues(provider, result).Observe(seconds)
}
