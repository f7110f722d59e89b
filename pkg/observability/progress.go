package observability

import (
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/metrics"
)

// Progress logs row counts of one operation at intervals and feeds the
// throughput gauge.
type Progress struct {
	logger      *zap.Logger
	operation   string
	throughput  *metrics.ThroughputTracker
	rows        int64
	errors      int64
	bytes       int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	now         func() time.Time
}

// NewProgress starts tracking operation.
func NewProgress(log *zap.Logger, operation string) *Progress {
	p := &Progress{
		logger:      logger.OrDefault(log, "progress").With(zap.String("operation", operation)),
		operation:   operation,
		throughput:  metrics.NewThroughputTracker(operation),
		logInterval: 30 * time.Second,
		now:         time.Now,
	}
	p.startTime = p.now()
	p.lastLogTime = p.startTime
	return p
}

// SetLogInterval sets the interval for progress logging
func (p *Progress) SetLogInterval(interval time.Duration) {
	p.logInterval = interval
}

// Row records one processed row of size bytes.
func (p *Progress) Row(size int) {
	p.rows++
	p.bytes += int64(size)
	p.throughput.Increment(1)

	if now := p.now(); now.Sub(p.lastLogTime) >= p.logInterval {
		p.log("processing progress", now)
		p.lastLogTime = now
	}
}

// Error records a failed row.
func (p *Progress) Error() {
	p.errors++
}

// Rows returns the number of rows recorded so far.
func (p *Progress) Rows() int64 {
	return p.rows
}

// Done logs the final statistics.
func (p *Progress) Done() {
	p.log("processing completed", p.now())
}

func (p *Progress) log(msg string, now time.Time) {
	elapsed := now.Sub(p.startTime)
	var rate float64
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(p.rows) / s
	}
	p.throughput.GetAndReset()

	p.logger.Info(msg,
		zap.Int64("rows", p.rows),
		zap.Int64("errors", p.errors),
		zap.Int64("bytes", p.bytes),
		zap.Float64("rows_per_second", rate),
		zap.Duration("elapsed", elapsed),
	)
}
