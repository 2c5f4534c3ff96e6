package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache reads served within the requested freshness window.",
	})
	metricMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache reads that found no usable entry.",
	})
	metricExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "cache",
		Name:      "expired_total",
		Help:      "Cache reads that found an entry older than the requested window.",
	})
	metricEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Entries displaced by capacity pressure.",
	})
	metricClears = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "cache",
		Name:      "cleared_total",
		Help:      "Entries removed by prefix invalidation.",
	})
	metricEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spyglass",
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Live entries currently stored.",
	})
)
