// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviepicker_recommendations_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviepicker_playback_deliveries_total",
			Help: "Playback delivery outcomes by status and winning strategy",
		},
		[]string{"status", "strategy"},
	)

	StrategyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviepicker_playback_strategy_attempts_total",
			Help: "Playback strategy attempts by result (success, skip, fail)",
		},
		[]string{"strategy", "result"},
	)

	PlexRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviepicker_plex_request_duration_seconds",
			Help:    "Latency of requests to the Plex server",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "status"},
	)

	CatalogCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moviepicker_catalog_cache_hits_total",
		Help: "Catalog snapshot cache hits",
	})

	CatalogCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moviepicker_catalog_cache_misses_total",
		Help: "Catalog snapshot cache misses",
	})

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moviepicker_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	PassesPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moviepicker_passes_purged_total",
		Help: "Expired passed-movie records removed by the cleanup job",
	})
)
