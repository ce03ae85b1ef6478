package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsStored tracks accepted events per process
	EventsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_events_stored_total",
			Help: "Total number of events accepted and stored",
		},
		[]string{"process"},
	)

	// EventsSkipped tracks rejected events per process and reason
	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_events_skipped_total",
			Help: "Total number of events skipped (stale, duplicate, malformed)",
		},
		[]string{"process", "reason"},
	)

	// PagesFetched tracks indexer pages consumed per process
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_pages_fetched_total",
			Help: "Total number of indexer result pages fetched",
		},
		[]string{"process"},
	)

	// FetchCycleDuration tracks full fetch cycle latency
	FetchCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_fetch_cycle_seconds",
			Help:    "Duration of one fetch cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"process"},
	)

	// Watermark tracks the highest fully ingested block height per process
	Watermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_watermark_block_height",
			Help: "Highest block height fully ingested per process",
		},
		[]string{"process"},
	)

	// ChannelSends tracks notification deliveries per channel and outcome
	ChannelSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_channel_sends_total",
			Help: "Total number of channel delivery attempts",
		},
		[]string{"channel", "outcome"},
	)

	// MonitorChecks tracks gateway healthchecks per outcome
	MonitorChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_monitor_checks_total",
			Help: "Total number of gateway healthchecks executed",
		},
		[]string{"outcome"},
	)

	// MonitorAlerts tracks emitted alert transitions
	MonitorAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_monitor_alerts_total",
			Help: "Total number of down/recovery alerts emitted",
		},
		[]string{"kind"},
	)

	// HealthchecksPruned tracks history rows removed by retention
	HealthchecksPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_healthchecks_pruned_total",
			Help: "Total number of healthcheck records pruned",
		},
	)

	// DBConnectionPoolUsage tracks connection pool utilization percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
