package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MasterBlocksProcessed tracks master blocks committed per network
	MasterBlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolwatch_master_blocks_processed_total",
			Help: "Total number of master blocks processed",
		},
		[]string{"network"},
	)

	// TransactionsFetched tracks transactions fetched from shard blocks
	TransactionsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolwatch_transactions_fetched_total",
			Help: "Total number of transactions fetched from shard blocks",
		},
		[]string{"network"},
	)

	// ChainCallsTotal tracks lite server calls per method
	ChainCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolwatch_chain_calls_total",
			Help: "Total number of lite server calls",
		},
		[]string{"network", "method"},
	)

	// ChainErrorsTotal tracks lite server errors per method
	ChainErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolwatch_chain_errors_total",
			Help: "Total number of lite server errors",
		},
		[]string{"network", "method"},
	)

	// ChainLatency tracks lite server call latency
	ChainLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poolwatch_chain_latency_seconds",
			Help:    "Lite server call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "method"},
	)

	// ParserErrorsTotal tracks parser failures, which are swallowed
	ParserErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolwatch_parser_errors_total",
			Help: "Total number of parser failures",
		},
		[]string{"parser"},
	)

	// RecordsProduced tracks records produced by tag
	RecordsProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolwatch_records_total",
			Help: "Total number of records produced by parsers",
		},
		[]string{"tag"},
	)

	// UnhandledRecordsTotal tracks records that no handler accepted
	UnhandledRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolwatch_unhandled_records_total",
			Help: "Total number of records without a registered handler",
		},
		[]string{"tag"},
	)

	// ActionsExecuted tracks deferred actions by result
	ActionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolwatch_actions_executed_total",
			Help: "Total number of deferred actions executed",
		},
		[]string{"result"},
	)

	// ChainLatestMaster tracks the master tip seen on chain
	ChainLatestMaster = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolwatch_chain_latest_master",
			Help: "Latest master block seqno of the chain",
		},
		[]string{"network"},
	)

	// IndexerLatestMaster tracks the committed master checkpoint
	IndexerLatestMaster = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolwatch_indexer_latest_master",
			Help: "Latest master block seqno committed by the indexer",
		},
		[]string{"network"},
	)

	// DBConnectionPoolUsage tracks open connections as a share of the pool limit
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "poolwatch_db_connection_pool_usage_percent",
			Help: "Open database connections as a percentage of the maximum",
		},
	)

	// KnownPools tracks the size of the known pool set
	KnownPools = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolwatch_known_pools",
			Help: "Number of pools in the known set",
		},
		[]string{"protocol"},
	)
)

// ObserveChainCall counts a chain call and returns a func that records its latency.
func ObserveChainCall(network, method string) func() {
	ChainCallsTotal.WithLabelValues(network, method).Inc()
	start := time.Now()
	return func() {
		ChainLatency.WithLabelValues(network, method).Observe(time.Since(start).Seconds())
	}
}
