package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the indexer and query engine
// touch. Construct one per process with NewMetrics and thread it through
// both the batch driver and the monitoring API.
type Metrics struct {
	// Build (component D)
	BuildDuration     *prometheus.HistogramVec // labels: dataset
	PartitionsEmitted *prometheus.CounterVec   // labels: dataset
	LeavesByReason    *prometheus.CounterVec   // labels: dataset, reason
	RowsSkipped       *prometheus.CounterVec   // labels: dataset, kind (spatialerr.Kind)
	DuplicateEstimate *prometheus.GaugeVec     // labels: dataset (§9 diagnostic)

	// Query (component H)
	QueryCardinality     prometheus.Histogram
	QueryMBRTests         prometheus.Histogram
	QueryParallelThreads  prometheus.Histogram
	QueryDuration         *prometheus.HistogramVec // labels: dataset
	PartitionLoadFailures *prometheus.CounterVec   // labels: dataset

	// Batch driver (component I)
	BatchJobsTotal *prometheus.CounterVec // labels: kind (index|query), status
}

// NewMetrics registers and returns the full collector set against the
// default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		BuildDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spatialidx_build_duration_seconds",
				Help:    "Wall time to partition one dataset into its quadtree leaves.",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"dataset"},
		),
		PartitionsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spatialidx_partitions_emitted_total",
				Help: "Partition files written, by dataset.",
			},
			[]string{"dataset"},
		),
		LeavesByReason: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spatialidx_leaves_total",
				Help: "Quadtree leaves emitted, by termination reason.",
			},
			[]string{"dataset", "reason"},
		),
		RowsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spatialidx_rows_skipped_total",
				Help: "Task-CSV rows and geometries skipped, by error kind.",
			},
			[]string{"dataset", "kind"},
		),
		DuplicateEstimate: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spatialidx_duplicate_estimate",
				Help: "Sum(NumberGeometries) minus input count for the most recent build of a dataset (§9 reporting hook only).",
			},
			[]string{"dataset"},
		),
		QueryCardinality: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spatialidx_query_cardinality",
				Help:    "matches/T for each executed range query.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		QueryMBRTests: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spatialidx_query_mbr_tests",
				Help:    "Geometries loaded from candidate partitions per query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		QueryParallelThreads: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spatialidx_query_parallel_threads",
				Help:    "Realized worker count per query (1 in the sequential branch).",
				Buckets: prometheus.LinearBuckets(1, 1, 16),
			},
		),
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spatialidx_query_duration_seconds",
				Help:    "End-to-end wall time of one range query.",
				Buckets: []float64{.0001, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"dataset"},
		),
		PartitionLoadFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spatialidx_partition_load_failures_total",
				Help: "Candidate partitions excluded from a query because they failed to load.",
			},
			[]string{"dataset"},
		),
		BatchJobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spatialidx_batch_jobs_total",
				Help: "Batch jobs (indexing task rows, query dataset groups) processed by the batch driver, by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
	}
}

// RecordBuild records one completed partitioning job.
func (m *Metrics) RecordBuild(dataset string, duration time.Duration, partitions int) {
	m.BuildDuration.WithLabelValues(dataset).Observe(duration.Seconds())
	m.PartitionsEmitted.WithLabelValues(dataset).Add(float64(partitions))
}

// RecordLeaf records one quadtree leaf by its termination reason.
func (m *Metrics) RecordLeaf(dataset, reason string) {
	m.LeavesByReason.WithLabelValues(dataset, reason).Inc()
}

// RecordSkip records one skipped row or dataset under its taxonomy kind.
func (m *Metrics) RecordSkip(dataset, kind string) {
	m.RowsSkipped.WithLabelValues(dataset, kind).Inc()
}

// RecordQuery records the outcome of one range query.
func (m *Metrics) RecordQuery(dataset string, cardinality float64, mbrTests, parallelThreads int, duration time.Duration) {
	m.QueryCardinality.Observe(cardinality)
	m.QueryMBRTests.Observe(float64(mbrTests))
	m.QueryParallelThreads.Observe(float64(parallelThreads))
	m.QueryDuration.WithLabelValues(dataset).Observe(duration.Seconds())
}

// RecordBatchJob records one batch job's outcome: one indexing task row, or
// one query dataset group.
func (m *Metrics) RecordBatchJob(kind, status string) {
	m.BatchJobsTotal.WithLabelValues(kind, status).Inc()
}

// RecordDuplicateEstimate sets the most recent build's duplicate_estimate
// gauge for dataset (§4.N, reporting hook only).
func (m *Metrics) RecordDuplicateEstimate(dataset string, estimate int) {
	m.DuplicateEstimate.WithLabelValues(dataset).Set(float64(estimate))
}
