// Package metrics declares the prometheus collectors the shard and
// router processes expose, each on its own registry so a process never
// picks up the default global registry's collectors by accident.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	matchDurationBuckets     = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1.0}
	fastStageDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01}
	matchAlgoDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}
	walAppendDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1}
)

// ShardRegistry is the set of collectors one shard process exposes,
// every one labeled with the shard's id so a single scrape target can be
// relabeled by `shard` when aggregated across the fleet.
type ShardRegistry struct {
	registry *prometheus.Registry
	shardID  string

	MatchDuration              *prometheus.HistogramVec
	OrderValidationDuration    *prometheus.HistogramVec
	OrderbookInsertionDuration *prometheus.HistogramVec
	MatchingAlgorithmDuration  *prometheus.HistogramVec
	WALAppendDuration          *prometheus.HistogramVec
	EventPublishDuration       *prometheus.HistogramVec

	MatchesTotal        *prometheus.CounterVec
	OrdersReceivedTotal *prometheus.CounterVec
	OrdersRejectedTotal *prometheus.CounterVec
	PublishDropsTotal   *prometheus.CounterVec
	WALSaturatedTotal   *prometheus.CounterVec
	WALForceFailures    *prometheus.CounterVec

	OrderbookDepth        *prometheus.GaugeVec
	OrderbookPriceLevels  *prometheus.GaugeVec
	RingBufferUtilization *prometheus.GaugeVec
}

// NewShardRegistry builds and registers every shard collector against a
// fresh, process-local registry.
func NewShardRegistry(shardID string) *ShardRegistry {
	reg := prometheus.NewRegistry()

	r := &ShardRegistry{
		registry: reg,
		shardID:  shardID,

		MatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "me_match_duration_seconds",
			Help:    "End-to-end latency from sequencer admission to handler completion.",
			Buckets: matchDurationBuckets,
		}, []string{"shard"}),

		OrderValidationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "me_order_validation_duration_seconds",
			Help:    "Time spent validating an admitted order.",
			Buckets: fastStageDurationBuckets,
		}, []string{"shard"}),

		OrderbookInsertionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "me_orderbook_insertion_duration_seconds",
			Help:    "Time spent enqueuing a residual order into the book.",
			Buckets: fastStageDurationBuckets,
		}, []string{"shard"}),

		MatchingAlgorithmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "me_matching_algorithm_duration_seconds",
			Help:    "Time spent inside the price-time priority matching loop.",
			Buckets: matchAlgoDurationBuckets,
		}, []string{"shard"}),

		WALAppendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "me_wal_append_duration_seconds",
			Help:    "Time spent appending records to the write-ahead log.",
			Buckets: walAppendDurationBuckets,
		}, []string{"shard"}),

		EventPublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "me_event_publish_duration_seconds",
			Help:    "Time spent handing a match event to the publisher.",
			Buckets: fastStageDurationBuckets,
		}, []string{"shard"}),

		MatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "me_matches_total",
			Help: "Total match events produced.",
		}, []string{"shard"}),

		OrdersReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "me_orders_received_total",
			Help: "Total orders admitted by the event handler.",
		}, []string{"shard", "side"}),

		OrdersRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "me_orders_rejected_total",
			Help: "Orders that never reached the book, by reason (validation, producer_reject, panic).",
		}, []string{"shard", "reason"}),

		PublishDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "me_publish_drops_total",
			Help: "Match events dropped because the publisher's buffer was full or the broker was unreachable.",
		}, []string{"shard"}),

		WALSaturatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "me_wal_saturated_total",
			Help: "Records skipped because the write-ahead log region is saturated.",
		}, []string{"shard"}),

		WALForceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "me_wal_force_failures_total",
			Help: "Failed attempts to force (msync) the write-ahead log.",
		}, []string{"shard"}),

		OrderbookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "me_orderbook_depth",
			Help: "Resting quantity summed across price levels on one side.",
		}, []string{"shard", "side"}),

		OrderbookPriceLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "me_orderbook_price_levels",
			Help: "Distinct price levels resting on one side.",
		}, []string{"shard", "side"}),

		RingBufferUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "me_ringbuffer_utilization_ratio",
			Help: "Fraction of the sequencer ring buffer currently occupied, in [0,1].",
		}, []string{"shard"}),
	}

	reg.MustRegister(
		r.MatchDuration,
		r.OrderValidationDuration,
		r.OrderbookInsertionDuration,
		r.MatchingAlgorithmDuration,
		r.WALAppendDuration,
		r.EventPublishDuration,
		r.MatchesTotal,
		r.OrdersReceivedTotal,
		r.OrdersRejectedTotal,
		r.PublishDropsTotal,
		r.WALSaturatedTotal,
		r.WALForceFailures,
		r.OrderbookDepth,
		r.OrderbookPriceLevels,
		r.RingBufferUtilization,
	)

	return r
}

// Handler returns the promhttp handler serving this registry's
// collectors in text exposition format.
func (r *ShardRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ShardID returns the shard id this registry's metrics are labeled with.
func (r *ShardRegistry) ShardID() string { return r.shardID }
