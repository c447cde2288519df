// Package metrics accumulates per-operation timing samples and derives
// summary statistics for benchmark reports.
//
// The central [Collector] keeps the full ordered sample sequence for every
// operation label. Summaries are computed on demand from those sequences:
//
//	c := metrics.NewCollector()
//	c.Record("store", 12*time.Millisecond)
//	summary, ok := c.Summary("store")
//
// Percentiles use the index-based definition the downstream threshold rules
// are calibrated against: sort ascending and take the element at index
// floor(n*p). There is no interpolation, and a single-sample sequence reports
// p95 = p99 = mean = median = that sample with a standard deviation of zero.
//
// Alongside the exact sequences the collector feeds an HDR histogram used
// only for live progress display; report summaries never come from it.
//
// All methods are safe for concurrent use, so parallel benchmark phases can
// record without caller-side coordination.
package metrics
