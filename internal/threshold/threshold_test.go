package threshold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tzervas/context-mcp/internal/metrics"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		severity  Severity
		wantError bool
	}{
		{name: "simple max rule", expr: "store:max > 10", severity: SeverityIssue},
		{name: "simple p95 rule", expr: "query:p95 <= 20.5", severity: SeverityOptimization},
		{name: "count rule", expr: "stress:count >= 100", severity: SeverityIssue},
		{name: "ratio rule", expr: "batch-50:mean / batch-5:mean > 1.5", severity: SeverityIssue},
		{name: "default severity", expr: "store:max > 10", severity: ""},
		{name: "empty expression", expr: "", severity: SeverityIssue, wantError: true},
		{name: "unknown aggregate", expr: "store:p85 > 10", severity: SeverityIssue, wantError: true},
		{name: "unknown operator", expr: "store:max >> 10", severity: SeverityIssue, wantError: true},
		{name: "missing value", expr: "store:max >", severity: SeverityIssue, wantError: true},
		{name: "count in ratio", expr: "a:count / b:count > 2", severity: SeverityIssue, wantError: true},
		{name: "bad severity", expr: "store:max > 10", severity: "warning", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.name, tt.severity, tt.expr, "")
			if (err != nil) != tt.wantError {
				t.Errorf("Parse() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestEvaluateRatioRule(t *testing.T) {
	rule := MustParse("batch-scaling", SeverityIssue, "batch-50:mean / batch-5:mean > 1.5", "")

	fire := metrics.NewCollector()
	fire.Record("batch-5", 5*time.Millisecond)
	fire.Record("batch-50", 8*time.Millisecond)

	findings := Evaluate([]Rule{rule}, fire)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding for ratio 1.6, got %d", len(findings))
	}
	if findings[0].Severity != SeverityIssue {
		t.Errorf("expected issue severity, got %s", findings[0].Severity)
	}

	calm := metrics.NewCollector()
	calm.Record("batch-5", 5*time.Millisecond)
	calm.Record("batch-50", 6*time.Millisecond)

	if findings := Evaluate([]Rule{rule}, calm); len(findings) != 0 {
		t.Errorf("expected no finding for ratio 1.2, got %d", len(findings))
	}
}

func TestEvaluateEmptyCollector(t *testing.T) {
	c := metrics.NewCollector()
	findings := Evaluate(DefaultRules(), c)
	if len(findings) != 0 {
		t.Errorf("expected no findings on an empty collector, got %d", len(findings))
	}
}

func TestEvaluateSkipsAbsentLabels(t *testing.T) {
	c := metrics.NewCollector()
	c.Record("store", 50*time.Millisecond)

	rules := []Rule{
		MustParse("missing", SeverityIssue, "query:max > 1", ""),
		MustParse("present", SeverityIssue, "store:max > 10", ""),
	}
	findings := Evaluate(rules, c)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if !strings.Contains(findings[0].Text, "store") {
		t.Errorf("unexpected finding text: %q", findings[0].Text)
	}
}

func TestEvaluatePreservesDeclarationOrder(t *testing.T) {
	c := metrics.NewCollector()
	c.Record("store", 50*time.Millisecond)
	c.Record("query", 50*time.Millisecond)

	rules := []Rule{
		MustParse("second", SeverityIssue, "query:max > 20", ""),
		MustParse("first", SeverityIssue, "store:max > 10", ""),
	}
	findings := Evaluate(rules, c)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if !strings.Contains(findings[0].Text, "query") || !strings.Contains(findings[1].Text, "store") {
		t.Errorf("findings out of declaration order: %v", findings)
	}
}

func TestEvaluateFixedMessage(t *testing.T) {
	c := metrics.NewCollector()
	c.Record("rag", 80*time.Millisecond)

	rule := MustParse("rag-cache", SeverityOptimization, "rag:max > 50", "OPTIMIZATION: cache embeddings")
	findings := Evaluate([]Rule{rule}, c)
	if len(findings) != 1 || findings[0].Text != "OPTIMIZATION: cache embeddings" {
		t.Fatalf("expected verbatim message finding, got %v", findings)
	}
}

func TestDedupe(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityOptimization, Text: "OPTIMIZATION: cache embeddings"},
		{Severity: SeverityIssue, Text: "ISSUE: slow store"},
		{Severity: SeverityOptimization, Text: "OPTIMIZATION: cache embeddings"},
	}

	deduped := Dedupe(findings)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 findings after dedupe, got %d", len(deduped))
	}
	if deduped[0].Text != "OPTIMIZATION: cache embeddings" || deduped[1].Text != "ISSUE: slow store" {
		t.Errorf("dedupe broke first-seen order: %v", deduped)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `rules:
  - name: store-max
    severity: issue
    expr: "store:max > 10"
  - name: batch-ratio
    expr: "batch-50:mean / batch-5:mean > 1.5"
    message: "OPTIMIZATION: batch better"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[1].Severity != SeverityIssue {
		t.Errorf("expected default severity issue, got %s", rules[1].Severity)
	}

	if _, err := LoadRules(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("rules:\n  - expr: \"store:p85 > 1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(bad); err == nil {
		t.Error("expected error for invalid rule expression")
	}
}
