// Package metrics defines the Prometheus collectors shared by the cache,
// the mutation runner, the gateway decorators, and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stellarsave"

// Metrics holds every collector. A zero-registry Metrics (New(nil)) is fully
// usable; its collectors are simply not exported anywhere.
type Metrics struct {
	CacheRequests      *prometheus.CounterVec
	CacheFetches       *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	CacheEntries       prometheus.Gauge

	Mutations *prometheus.CounterVec

	GatewayCalls   *prometheus.CounterVec
	GatewayLatency *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg when reg is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache reads by query kind and result (hit, stale, miss).",
		}, []string{"kind", "result"}),
		CacheFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Fetches issued by the cache by query kind and outcome.",
		}, []string{"kind", "outcome"}),
		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Entries marked stale by query kind.",
		}, []string{"kind"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held by the cache.",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Mutations by name and outcome (committed, rolled_back, rejected).",
		}, []string{"name", "outcome"}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Contract invocations by method and error kind (ok on success).",
		}, []string{"method", "outcome"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Contract invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route template, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheRequests,
			m.CacheFetches,
			m.CacheInvalidations,
			m.CacheEntries,
			m.Mutations,
			m.GatewayCalls,
			m.GatewayLatency,
			m.HTTPRequests,
			m.HTTPDuration,
		)
	}
	return m
}
