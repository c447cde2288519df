package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tzervas/context-mcp/internal/metrics"
)

// syncedBuffer guards the progress writer against the reporter goroutine.
type syncedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressReporterPrintsSnapshot(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	for i := 0; i < 5; i++ {
		collector.Record("store", 30*time.Millisecond)
	}

	var buf syncedBuffer
	reporter := NewProgressReporter(collector, 10*time.Millisecond, &buf)
	reporter.Start()
	time.Sleep(60 * time.Millisecond)
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "Ops: 5") {
		t.Errorf("progress output missing op count: %q", out)
	}
	if !strings.Contains(out, "p99") {
		t.Errorf("progress output missing latency snapshot: %q", out)
	}
}

func TestProgressReporterStopIdempotent(t *testing.T) {
	reporter := NewProgressReporter(metrics.NewCollector(), time.Second, nil)
	reporter.Start()
	reporter.Stop()
	reporter.Stop()
}

func TestProgressReporterStartTwice(t *testing.T) {
	reporter := NewProgressReporter(metrics.NewCollector(), time.Second, nil)
	reporter.Start()
	reporter.Start()
	reporter.Stop()
}
