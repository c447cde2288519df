package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tzervas/context-mcp/internal/metrics"
)

// ProgressReporter displays real-time progress updates from the collector's
// live histogram snapshot.
type ProgressReporter struct {
	collector *metrics.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			snap := p.collector.Live()
			line := fmt.Sprintf("\rOps: %d | Elapsed: %s | Rate: %.1f ops/sec",
				snap.Total, snap.Elapsed.Truncate(time.Second), snap.OpsPerSec)
			if snap.Total > 0 {
				line += fmt.Sprintf(" | p50 %.1fms | p99 %.1fms",
					float64(snap.P50.Microseconds())/1000.0,
					float64(snap.P99.Microseconds())/1000.0)
			}
			fmt.Fprint(p.writer, line)
		case <-p.done:
			return
		}
	}
}
