package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DimensionRowsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_warehouse_dimension_rows_created_total",
			Help: "Total number of dimension rows inserted",
		},
		[]string{"table"},
	)

	UniqueRacesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_warehouse_unique_races_total",
			Help: "Total number of inserts that collided with a concurrent insert of the same natural key",
		},
		[]string{"table", "recovered"},
	)

	FactsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_warehouse_facts_total",
			Help: "Total number of trips processed, by whether the fact row was new",
		},
		[]string{"feed", "result"},
	)

	RecordsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_warehouse_records_skipped_total",
			Help: "Total number of malformed source records skipped",
		},
		[]string{"feed"},
	)

	SentinelFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connector_warehouse_sentinel_vessel_fallback_total",
			Help: "Total number of flat-file trips whose vessel was not found in the vessel directory",
		},
	)

	BatchCommitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_warehouse_batch_commit_duration_seconds",
			Help:    "Duration of batch commits",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"feed"},
	)

	FollowQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connector_warehouse_follow_queue_depth",
			Help: "Number of trips waiting to be reloaded from the replication log",
		},
	)
)
