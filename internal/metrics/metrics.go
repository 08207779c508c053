// Package metrics provides Prometheus telemetry for calendar loads, day
// fetches and the two-tier cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load outcomes.
const (
	OutcomeLoaded  = "loaded"
	OutcomeFailed  = "failed"
	OutcomeAborted = "aborted"
	OutcomeCached  = "cached"
)

// Cache tiers.
const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
)

// Recorder is the metrics surface used by the engine packages.
type Recorder interface {
	RecordFetch(success bool)
	RecordCacheRequest(tier string, hit bool)
	RecordEvictions(n int)
	RecordLoad(d time.Duration, outcome string)
	RecordProgress(percent int)
}

// Collector records engine metrics into its own registry.
type Collector struct {
	registry *prometheus.Registry

	fetchTotal     *prometheus.CounterVec
	cacheRequests  *prometheus.CounterVec
	cacheEvictions prometheus.Counter
	loadDuration   prometheus.Histogram
	loadProgress   prometheus.Gauge
	loadsTotal     *prometheus.CounterVec
}

// NewCollector creates a collector. An empty namespace defaults to "ramadan".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "ramadan"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Day prayer-time fetches by result",
		},
		[]string{"result"},
	)

	c.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	c.cacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries removed from the persistent tier to free capacity",
		},
	)

	c.loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time taken to build a calendar",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	c.loadProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_progress",
			Help:      "Progress of the current calendar load (0-100)",
		},
	)

	c.loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Calendar loads by outcome",
		},
		[]string{"outcome"},
	)

	c.registry.MustRegister(
		c.fetchTotal,
		c.cacheRequests,
		c.cacheEvictions,
		c.loadDuration,
		c.loadProgress,
		c.loadsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordFetch(success bool) {
	result := "success"
	if !success {
		result = "fallback"
	}
	c.fetchTotal.WithLabelValues(result).Inc()
}

func (c *Collector) RecordCacheRequest(tier string, hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	c.cacheRequests.WithLabelValues(tier, result).Inc()
}

func (c *Collector) RecordEvictions(n int) {
	c.cacheEvictions.Add(float64(n))
}

func (c *Collector) RecordLoad(d time.Duration, outcome string) {
	if outcome == OutcomeLoaded || outcome == OutcomeFailed {
		c.loadDuration.Observe(d.Seconds())
	}
	c.loadsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordProgress(percent int) {
	c.loadProgress.Set(float64(percent))
}

// NoOpCollector discards everything.
type NoOpCollector struct{}

// NewNoOpCollector returns a recorder that discards all metrics.
func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordFetch(bool)                 {}
func (*NoOpCollector) RecordCacheRequest(string, bool)  {}
func (*NoOpCollector) RecordEvictions(int)              {}
func (*NoOpCollector) RecordLoad(time.Duration, string) {}
func (*NoOpCollector) RecordProgress(int)               {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = (*NoOpCollector)(nil)
)
