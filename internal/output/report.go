// Package output renders benchmark results as text or JSON reports and
// provides the live progress reporter.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tzervas/context-mcp/internal/bench"
	"github.com/tzervas/context-mcp/internal/metrics"
	"github.com/tzervas/context-mcp/internal/threshold"
)

// Report is the final, renderable view of a benchmark run.
type Report struct {
	RunID       string              `json:"run_id"`
	StartedAt   time.Time           `json:"started_at"`
	DurationSec float64             `json:"duration_sec"`
	Phases      []bench.PhaseResult `json:"phases"`

	TotalStored  int     `json:"total_stored"`
	StoreRate    float64 `json:"store_throughput_per_sec"`
	StressRate   float64 `json:"stress_throughput_per_sec"`
	RAGResultAvg float64 `json:"rag_results_per_query"`

	Operations []metrics.Summary `json:"operations"`

	Issues        []string `json:"issues"`
	Optimizations []string `json:"optimizations"`
	OpErrors      []string `json:"op_errors,omitempty"`

	Verdict string `json:"verdict"`
}

// Build evaluates the rule table against the collector, merges in the
// findings phases raised directly, and assembles the report. Duplicate
// finding texts collapse at this point and only here.
func Build(result *bench.Result, collector *metrics.Collector, rules []threshold.Rule) Report {
	findings := threshold.Evaluate(rules, collector)
	findings = append(findings, result.Findings...)
	findings = threshold.Dedupe(findings)

	report := Report{
		RunID:        result.RunID,
		StartedAt:    result.StartedAt,
		DurationSec:  result.Duration.Seconds(),
		Phases:       result.Phases,
		TotalStored:  result.TotalStored,
		StoreRate:    result.StoreRate,
		StressRate:   result.StressRate,
		RAGResultAvg: result.RAGResultAvg,
		Operations:   collector.Summaries(),
		OpErrors:     result.OpErrors,
	}

	for _, f := range findings {
		switch f.Severity {
		case threshold.SeverityOptimization:
			report.Optimizations = append(report.Optimizations, f.Text)
		default:
			report.Issues = append(report.Issues, f.Text)
		}
	}

	switch {
	case result.FailedCount() > 0:
		report.Verdict = fmt.Sprintf("FAIL: %d of %d phases failed", result.FailedCount(), len(result.Phases))
	case len(report.Issues) > 0:
		report.Verdict = fmt.Sprintf("PASS WITH ISSUES: %d issue(s) found", len(report.Issues))
	default:
		report.Verdict = "PASS: all phases completed within thresholds"
	}

	return report
}

// PrintReport writes the human-readable report.
func PrintReport(w io.Writer, report Report) {
	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", report.RunID)
	fmt.Fprintf(w, "Started:           %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:          %.2fs\n", report.DurationSec)

	passed := 0
	for _, phase := range report.Phases {
		if phase.Passed {
			passed++
		}
	}
	fmt.Fprintf(w, "Phases:            %d passed, %d failed\n", passed, len(report.Phases)-passed)
	for _, phase := range report.Phases {
		if !phase.Passed {
			fmt.Fprintf(w, "  - %s: %s\n", phase.Name, phase.Error)
		}
	}

	fmt.Fprintln(w, "\nKey Metrics:")
	fmt.Fprintf(w, "  Stored Contexts:  %d\n", report.TotalStored)
	fmt.Fprintf(w, "  Store Rate:       %.0f ops/sec\n", report.StoreRate)
	if report.StressRate > 0 {
		fmt.Fprintf(w, "  Stress Rate:      %.0f ops/sec\n", report.StressRate)
	}
	if report.RAGResultAvg > 0 {
		fmt.Fprintf(w, "  RAG Results/Query: %.1f\n", report.RAGResultAvg)
	}

	if len(report.Operations) > 0 {
		fmt.Fprintln(w, "\nOperation Latency (ms):")
		fmt.Fprintf(w, "  %-16s %8s %9s %9s %9s %9s %9s %9s %8s\n",
			"operation", "samples", "min", "mean", "median", "p95", "p99", "max", "stddev")
		for _, op := range report.Operations {
			fmt.Fprintf(w, "  %-16s %8d %9.2f %9.2f %9.2f %9.2f %9.2f %9.2f %8.2f\n",
				op.Label, op.Count, op.MinMs, op.MeanMs, op.MedianMs, op.P95Ms, op.P99Ms, op.MaxMs, op.StdDevMs)
		}
	}

	if len(report.Issues) > 0 {
		fmt.Fprintln(w, "\nIssues:")
		for _, issue := range report.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}

	if len(report.Optimizations) > 0 {
		fmt.Fprintln(w, "\nOptimization Recommendations:")
		for _, opt := range report.Optimizations {
			fmt.Fprintf(w, "  - %s\n", opt)
		}
	}

	if len(report.OpErrors) > 0 {
		fmt.Fprintf(w, "\nFailed Operations: %d\n", len(report.OpErrors))
	}

	fmt.Fprintf(w, "\n%s\n", report.Verdict)
}

// PrintJSONReport writes the machine-readable report.
func PrintJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
