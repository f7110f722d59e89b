// Package metrics exposes Prometheus collectors for table reads, writes
// and merges.
//
// # Basic Usage
//
//	metrics.RowsRead.WithLabelValues("Events", metrics.StatusSuccess).Inc()
//
//	timer := metrics.NewTimer("merge")
//	runMerge()
//	timer.ObserveDuration()
//
// Collectors are registered on the default registry at package init.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// RowsRead counts rows fetched from container tables.
	// Labels: table, status (success/failure)
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zfits_rows_read_total",
			Help: "Total number of rows read from container tables",
		},
		[]string{"table", "status"},
	)

	// RowsWritten counts rows appended through table writers.
	// Labels: table, message_type
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zfits_rows_written_total",
			Help: "Total number of rows appended to output tables",
		},
		[]string{"table", "message_type"},
	)

	// RowsMerged counts rows emitted by multi-stream merges.
	RowsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zfits_rows_merged_total",
			Help: "Total number of rows emitted by merges",
		},
	)

	// CodecErrors counts record decode/encode failures.
	// Labels: direction (decode/encode), kind (error type)
	CodecErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zfits_codec_errors_total",
			Help: "Record decode and encode failures by error kind",
		},
		[]string{"direction", "kind"},
	)

	// TypeMismatches counts appends rejected because the table is locked to
	// another message type.
	TypeMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zfits_table_type_mismatches_total",
			Help: "Appends rejected because of a locked table type",
		},
	)

	// OperationLatency tracks whole-operation durations in seconds.
	// Labels: operation (dump/copy/merge)
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zfits_operation_duration_seconds",
			Help:    "Duration of pipeline operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"operation"},
	)

	// Throughput tracks the most recent rows-per-second rate.
	// Labels: operation
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zfits_throughput_rows_per_second",
			Help: "Current throughput in rows per second",
		},
		[]string{"operation"},
	)
)

// Timer measures one operation and reports it to OperationLatency.
type Timer struct {
	start     time.Time
	operation string
}

// NewTimer starts timing operation.
func NewTimer(operation string) *Timer {
	return &Timer{start: time.Now(), operation: operation}
}

// ObserveDuration records the elapsed time and returns it. Each call
// records the total time since NewTimer.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	OperationLatency.WithLabelValues(t.operation).Observe(d.Seconds())
	return d
}

// ThroughputTracker computes rows per second over reporting windows.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	operation string
}

// NewThroughputTracker creates a tracker labelled with operation.
func NewThroughputTracker(operation string) *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now(), operation: operation}
}

// Increment adds n to the row count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns rows per second since the last reset, publishes it
// to Throughput and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}
	rate := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.operation).Set(rate)
	return rate
}
