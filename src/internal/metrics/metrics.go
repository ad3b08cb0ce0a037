// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package metrics exposes Prometheus collectors for request verification and
// the signing certificate cache.
//
// All methods are safe to call on a nil *Recorder, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Recorder holds the collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	accepted      prometheus.Counter
	rejected      *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	breakerState  *prometheus.GaugeVec
}

// New creates a Recorder whose metric names start with namespace.
func New(namespace string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_accepted_total",
			Help:      "Total number of webhook requests that passed verification",
		}),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_rejected_total",
				Help:      "Total number of webhook requests rejected, by reason",
			},
			[]string{"reason"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "certificate_cache_lookups_total",
				Help:      "Signing certificate cache lookups, by result",
			},
			[]string{"result"},
		),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "certificate_fetch_duration_seconds",
			Help:      "Duration of signing certificate downloads",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "certificate_fetch_breaker_state",
				Help:      "Certificate fetch circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	r.registry.MustRegister(r.accepted, r.rejected, r.cacheLookups, r.fetchDuration, r.breakerState)
	return r
}

// Accepted counts a request that passed verification.
func (r *Recorder) Accepted() {
	if r == nil {
		return
	}
	r.accepted.Inc()
}

// Rejected counts a rejection with its reason.
func (r *Recorder) Rejected(reason string) {
	if r == nil {
		return
	}
	r.rejected.WithLabelValues(reason).Inc()
}

// CacheLookup counts a cache lookup with one of [CacheHit], [CacheMiss] or [CacheError].
func (r *Recorder) CacheLookup(result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveFetch records how long a certificate download took.
func (r *Recorder) ObserveFetch(d time.Duration) {
	if r == nil {
		return
	}
	r.fetchDuration.Observe(d.Seconds())
}

// BreakerState records the numeric state of the named circuit breaker.
func (r *Recorder) BreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(name).Set(float64(state))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
