// internal/router/metrics.go
package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docharbor_router_cache_hits_total",
		Help: "Connection cache hits.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docharbor_router_cache_misses_total",
		Help: "Connection cache misses.",
	})
	connOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docharbor_router_connection_opens_total",
		Help: "Underlying connection-open operations.",
	})
	evictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docharbor_router_evictions_total",
		Help: "Cache entries evicted (idle, LRU, or invalidation).",
	})
	cacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docharbor_router_cache_entries",
		Help: "Current number of cached connections.",
	})
)
