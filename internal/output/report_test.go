package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tzervas/context-mcp/internal/bench"
	"github.com/tzervas/context-mcp/internal/metrics"
	"github.com/tzervas/context-mcp/internal/threshold"
)

func sampleRun(t *testing.T) (*bench.Result, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollector()
	for _, d := range []time.Duration{5, 15, 25} {
		collector.Record("store", d*time.Millisecond)
	}
	collector.Record("query", 8*time.Millisecond)

	result := &bench.Result{
		RunID:     "01JX5N8Z9GQ4T2M7K3W6R1B0CD",
		StartedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Phases: []bench.PhaseResult{
			{Name: "store", Passed: true},
			{Name: "query", Passed: true},
		},
		TotalStored: 3,
		StoreRate:   42,
	}
	return result, collector
}

func TestBuildEvaluatesThresholds(t *testing.T) {
	result, collector := sampleRun(t)

	// store max is 25ms, so a 10ms rule fires.
	rules := []threshold.Rule{
		threshold.MustParse("store-max", threshold.SeverityIssue, "store:max > 10", ""),
		threshold.MustParse("query-max", threshold.SeverityIssue, "query:max > 20", ""),
	}
	report := Build(result, collector, rules)

	if len(report.Issues) != 1 {
		t.Fatalf("got %d issues, want 1: %v", len(report.Issues), report.Issues)
	}
	if !strings.Contains(report.Issues[0], "store") {
		t.Errorf("issue text = %q", report.Issues[0])
	}
	if !strings.HasPrefix(report.Verdict, "PASS WITH ISSUES") {
		t.Errorf("Verdict = %q", report.Verdict)
	}
}

func TestBuildMergesAndDedupesFindings(t *testing.T) {
	result, collector := sampleRun(t)
	result.Findings = []threshold.Finding{
		{Severity: threshold.SeverityOptimization, Text: "OPTIMIZATION: tune the cache"},
		{Severity: threshold.SeverityOptimization, Text: "OPTIMIZATION: tune the cache"},
	}

	report := Build(result, collector, nil)
	if len(report.Optimizations) != 1 {
		t.Fatalf("got %d optimizations, want 1 after dedupe: %v",
			len(report.Optimizations), report.Optimizations)
	}
	if len(report.Issues) != 0 {
		t.Errorf("unexpected issues: %v", report.Issues)
	}
}

func TestBuildVerdicts(t *testing.T) {
	result, collector := sampleRun(t)

	report := Build(result, collector, nil)
	if !strings.HasPrefix(report.Verdict, "PASS:") {
		t.Errorf("clean run verdict = %q", report.Verdict)
	}

	result.Phases = append(result.Phases, bench.PhaseResult{Name: "rag", Passed: false, Error: "boom"})
	report = Build(result, collector, nil)
	if !strings.HasPrefix(report.Verdict, "FAIL:") {
		t.Errorf("failed-phase verdict = %q", report.Verdict)
	}
}

func TestPrintReport(t *testing.T) {
	result, collector := sampleRun(t)
	report := Build(result, collector, threshold.DefaultRules())

	var buf bytes.Buffer
	PrintReport(&buf, report)
	out := buf.String()

	for _, want := range []string{
		"Benchmark Results",
		report.RunID,
		"Stored Contexts:  3",
		"Operation Latency",
		"store",
		"query",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q", want)
		}
	}
}

func TestPrintJSONReport(t *testing.T) {
	result, collector := sampleRun(t)
	report := Build(result, collector, threshold.DefaultRules())

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, report); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.RunID != report.RunID {
		t.Errorf("RunID = %q, want %q", decoded.RunID, report.RunID)
	}
	if len(decoded.Operations) != 2 {
		t.Errorf("got %d operations, want 2", len(decoded.Operations))
	}
}
