package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Query engine metrics
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solidb_query_duration_seconds",
			Help:    "Query execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solidb_queries_total",
			Help: "Total number of queries executed, by outcome",
		},
		[]string{"outcome"},
	)

	SlowQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solidb_slow_queries_total",
			Help: "Total number of queries exceeding the slow query threshold",
		},
	)

	// Storage engine metrics
	WALAppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "solidb_wal_append_duration_seconds",
			Help:    "Time taken to append and fsync a WAL record",
			Buckets: prometheus.DefBuckets,
		},
	)

	WALRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solidb_wal_records_total",
			Help: "Total number of WAL records appended, by record type",
		},
		[]string{"type"},
	)

	DocumentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solidb_documents_total",
			Help: "Live document count by database and collection",
		},
		[]string{"database", "collection"},
	)

	// Transaction metrics
	TransactionsCommittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solidb_transactions_committed_total",
			Help: "Total number of committed transactions",
		},
	)

	TransactionsAbortedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solidb_transactions_aborted_total",
			Help: "Total number of aborted transactions, by reason",
		},
		[]string{"reason"},
	)

	TransactionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solidb_transaction_conflicts_total",
			Help: "Total number of transaction conflicts detected",
		},
	)

	ActiveTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "solidb_active_transactions",
			Help: "Number of currently active transactions",
		},
	)

	// Index maintenance metrics
	IndexOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solidb_index_ops_total",
			Help: "Total number of index maintenance operations, by index kind and op",
		},
		[]string{"kind", "op"},
	)

	// TTL reaper metrics
	TTLExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solidb_ttl_expired_total",
			Help: "Total number of documents removed by the TTL sweep worker",
		},
	)

	TTLSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "solidb_ttl_sweep_duration_seconds",
			Help:    "Duration of one TTL sweep cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cluster / shard coordinator metrics
	ScatterGatherFanout = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "solidb_scatter_gather_fanout_shards",
			Help:    "Number of shards contacted per scatter-gather query",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	ShardRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solidb_shard_request_duration_seconds",
			Help:    "Duration of one coordinator-to-shard HTTP request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// HTTP/driver API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solidb_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solidb_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	DriverConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "solidb_driver_connections_active",
			Help: "Number of active binary driver protocol connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		QueryDuration, QueriesTotal, SlowQueriesTotal,
		WALAppendDuration, WALRecordsTotal, DocumentsTotal,
		TransactionsCommittedTotal, TransactionsAbortedTotal, TransactionConflictsTotal, ActiveTransactions,
		IndexOpsTotal,
		TTLExpiredTotal, TTLSweepDuration,
		ScatterGatherFanout, ShardRequestDuration,
		APIRequestsTotal, APIRequestDuration, DriverConnectionsActive,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
