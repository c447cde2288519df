package metrics

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records timing samples keyed by operation label in a thread-safe
// manner. Samples for a label keep the order they were recorded in.
type Collector struct {
	mu      sync.Mutex
	samples map[string][]time.Duration
	order   []string
	live    *hdrhistogram.Histogram
	start   time.Time
}

// Summary represents derived statistics for one operation label.
type Summary struct {
	Label string `json:"label"`
	Count int    `json:"samples"`

	Min    time.Duration `json:"-"`
	Max    time.Duration `json:"-"`
	Mean   time.Duration `json:"-"`
	Median time.Duration `json:"-"`
	StdDev time.Duration `json:"-"`
	P95    time.Duration `json:"-"`
	P99    time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	MeanMs   float64 `json:"mean_ms"`
	MedianMs float64 `json:"median_ms"`
	StdDevMs float64 `json:"stddev_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// LiveSnapshot carries approximate run-wide figures for progress display.
type LiveSnapshot struct {
	Total     int64
	P50       time.Duration
	P99       time.Duration
	Elapsed   time.Duration
	OpsPerSec float64
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		samples: make(map[string][]time.Duration),
		live:    h,
		start:   time.Now(),
	}
}

// Start marks the beginning of the measured run for live throughput figures.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Record appends a sample to the label's sequence, creating it on first use.
// A negative duration is a programming error, not a runtime condition.
func (c *Collector) Record(label string, d time.Duration) {
	if d < 0 {
		panic(fmt.Sprintf("metrics: negative duration %s recorded for %q", d, label))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.samples[label]; !ok {
		c.order = append(c.order, label)
	}
	c.samples[label] = append(c.samples[label], d)

	us := d.Microseconds()
	if us < c.live.LowestTrackableValue() {
		us = c.live.LowestTrackableValue()
	}
	if us > c.live.HighestTrackableValue() {
		us = c.live.HighestTrackableValue()
	}
	_ = c.live.RecordValue(us)
}

// Summary computes statistics for one label. The second return value is false
// when the label has no samples.
func (c *Collector) Summary(label string) (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	samples, ok := c.samples[label]
	if !ok || len(samples) == 0 {
		return Summary{}, false
	}
	return summarize(label, samples), true
}

// Summaries returns statistics for every label in first-use order.
func (c *Collector) Summaries() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Summary, 0, len(c.order))
	for _, label := range c.order {
		if samples := c.samples[label]; len(samples) > 0 {
			out = append(out, summarize(label, samples))
		}
	}
	return out
}

// Labels returns the recorded labels in first-use order.
func (c *Collector) Labels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// Count returns the number of samples recorded under a label.
func (c *Collector) Count(label string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples[label])
}

// Merge appends the other collector's sample sequences label-by-label. Each
// label's internal order is preserved; ordering across the two collectors is
// unspecified. The caller must not merge two collectors into each other
// concurrently.
func (c *Collector) Merge(other *Collector) {
	if other == nil || other == c {
		return
	}

	other.mu.Lock()
	labels := append([]string(nil), other.order...)
	merged := make(map[string][]time.Duration, len(other.samples))
	for label, samples := range other.samples {
		merged[label] = append([]time.Duration(nil), samples...)
	}
	liveCopy := hdrhistogram.Import(other.live.Export())
	other.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, label := range labels {
		if _, ok := c.samples[label]; !ok {
			c.order = append(c.order, label)
		}
		c.samples[label] = append(c.samples[label], merged[label]...)
	}
	c.live.Merge(liveCopy)
}

// Live returns approximate run-wide figures from the HDR histogram. Suitable
// for progress display only; report summaries use the exact sequences.
func (c *Collector) Live() LiveSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := LiveSnapshot{
		Total:   c.live.TotalCount(),
		Elapsed: time.Since(c.start),
	}
	if snap.Total > 0 {
		snap.P50 = time.Duration(c.live.ValueAtQuantile(50)) * time.Microsecond
		snap.P99 = time.Duration(c.live.ValueAtQuantile(99)) * time.Microsecond
	}
	if snap.Elapsed > 0 && snap.Total > 0 {
		snap.OpsPerSec = float64(snap.Total) / snap.Elapsed.Seconds()
	}
	return snap
}

func summarize(label string, samples []time.Duration) Summary {
	n := len(samples)
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	mean := sum / time.Duration(n)

	var median time.Duration
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	// Sample standard deviation, computed in milliseconds to match the
	// units the threshold rules are written in.
	var stddev time.Duration
	if n > 1 {
		meanMs := asMs(mean)
		var sq float64
		for _, d := range samples {
			diff := asMs(d) - meanMs
			sq += diff * diff
		}
		stddev = time.Duration(math.Sqrt(sq/float64(n-1)) * float64(time.Millisecond))
	}

	s := Summary{
		Label:  label,
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   mean,
		Median: median,
		StdDev: stddev,
		P95:    percentile(sorted, 0.95),
		P99:    percentile(sorted, 0.99),
	}
	s.MinMs = asMs(s.Min)
	s.MaxMs = asMs(s.Max)
	s.MeanMs = asMs(s.Mean)
	s.MedianMs = asMs(s.Median)
	s.StdDevMs = asMs(s.StdDev)
	s.P95Ms = asMs(s.P95)
	s.P99Ms = asMs(s.P99)
	return s
}

// percentile takes the element at index floor(n*p) of the ascending sort.
// The threshold rules are calibrated against this definition; do not swap in
// an interpolating scheme.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func asMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
