package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "tasks",
		Name:      "spawned_total",
		Help:      "Commands handed to the spawner.",
	})
	metricFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "tasks",
		Name:      "failed_total",
		Help:      "Commands that exited non-zero or could not be spawned.",
	})
	metricTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "spyglass",
		Subsystem: "tasks",
		Name:      "batch_timeouts_total",
		Help:      "Batches that closed on timeout with partial results.",
	})
	metricBatchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spyglass",
		Subsystem: "tasks",
		Name:      "batch_duration_seconds",
		Help:      "Wall time from batch submission to result delivery.",
		Buckets:   prometheus.DefBuckets,
	})
)
