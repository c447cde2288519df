// Package threshold evaluates declarative performance rules against
// collected benchmark statistics and produces diagnostic findings.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tzervas/context-mcp/internal/metrics"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityIssue        Severity = "issue"
	SeverityOptimization Severity = "optimization"
)

// Rule is a named predicate over one or two operations' summary statistics.
// Supported expression forms:
//
//	"store:max > 10"                     (aggregate in ms, count unitless)
//	"batch-50:mean / batch-5:mean > 1.5" (ratio of two aggregates)
//
// A rule over a label with no samples never fires. When Message is set it is
// used verbatim as the finding text (useful for fixed recommendations that
// deduplicate across passes); otherwise a text embedding the actual value is
// generated.
type Rule struct {
	Name     string
	Severity Severity
	Expr     string
	Message  string

	compiled *expr
}

// Finding is a tagged diagnostic record produced by a rule whose predicate
// held. Findings from a single pass preserve rule declaration order.
type Finding struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

type exprKind int

const (
	exprSimple exprKind = iota + 1
	exprRatio
)

type expr struct {
	kind     exprKind
	label    string
	agg      string
	denLabel string
	denAgg   string
	operator string
	value    float64
}

var (
	simplePattern = regexp.MustCompile(`^([A-Za-z0-9_-]+):(min|max|mean|median|stddev|p95|p99|count)\s*(<=|>=|==|<|>)\s*([0-9.]+)$`)
	ratioPattern  = regexp.MustCompile(`^([A-Za-z0-9_-]+):(min|max|mean|median|stddev|p95|p99)\s*/\s*([A-Za-z0-9_-]+):(min|max|mean|median|stddev|p95|p99)\s*(<=|>=|==|<|>)\s*([0-9.]+)$`)
)

// Parse builds a validated rule from an expression string.
func Parse(name string, severity Severity, exprStr, message string) (Rule, error) {
	switch severity {
	case SeverityIssue, SeverityOptimization:
	case "":
		severity = SeverityIssue
	default:
		return Rule{}, fmt.Errorf("rule %q: unsupported severity %q", name, severity)
	}

	compiled, err := compile(exprStr)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", name, err)
	}

	return Rule{
		Name:     name,
		Severity: severity,
		Expr:     strings.TrimSpace(exprStr),
		Message:  message,
		compiled: compiled,
	}, nil
}

// MustParse is Parse for statically known rules; it panics on error.
func MustParse(name string, severity Severity, exprStr, message string) Rule {
	r, err := Parse(name, severity, exprStr, message)
	if err != nil {
		panic(err)
	}
	return r
}

func compile(s string) (*expr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty rule expression")
	}

	if m := ratioPattern.FindStringSubmatch(s); m != nil {
		value, err := strconv.ParseFloat(m[6], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rule value %q: %v", m[6], err)
		}
		return &expr{
			kind:     exprRatio,
			label:    m[1],
			agg:      m[2],
			denLabel: m[3],
			denAgg:   m[4],
			operator: m[5],
			value:    value,
		}, nil
	}

	if m := simplePattern.FindStringSubmatch(s); m != nil {
		value, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rule value %q: %v", m[4], err)
		}
		return &expr{
			kind:     exprSimple,
			label:    m[1],
			agg:      m[2],
			operator: m[3],
			value:    value,
		}, nil
	}

	return nil, fmt.Errorf("invalid rule expression: %q (expected 'label:aggregate op value' or 'a:agg / b:agg op value')", s)
}

// Evaluate checks every rule against the collector in declaration order and
// returns a finding for each rule whose predicate holds. Rules referencing
// labels with no samples are skipped; an empty collector yields no findings.
// Evaluate never fails.
func Evaluate(rules []Rule, c *metrics.Collector) []Finding {
	if len(rules) == 0 || c == nil {
		return nil
	}

	var findings []Finding
	for _, r := range rules {
		ce := r.compiled
		if ce == nil {
			var err error
			ce, err = compile(r.Expr)
			if err != nil {
				continue
			}
		}

		actual, ok := resolve(ce, c)
		if !ok {
			continue
		}
		if !compare(actual, ce.operator, ce.value) {
			continue
		}
		findings = append(findings, Finding{
			Severity: r.Severity,
			Text:     findingText(r, ce, actual),
		})
	}
	return findings
}

// Dedupe removes findings whose text exactly matches an earlier one,
// preserving first-seen order. Applied when merging findings from multiple
// evaluation passes into a final report, never within a single pass.
func Dedupe(findings []Finding) []Finding {
	if len(findings) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(findings))
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if _, dup := seen[f.Text]; dup {
			continue
		}
		seen[f.Text] = struct{}{}
		out = append(out, f)
	}
	return out
}

func resolve(ce *expr, c *metrics.Collector) (float64, bool) {
	num, ok := aggregate(ce.label, ce.agg, c)
	if !ok {
		return 0, false
	}
	if ce.kind == exprSimple {
		return num, true
	}

	den, ok := aggregate(ce.denLabel, ce.denAgg, c)
	if !ok || den == 0 {
		return 0, false
	}
	return num / den, true
}

func aggregate(label, agg string, c *metrics.Collector) (float64, bool) {
	s, ok := c.Summary(label)
	if !ok {
		return 0, false
	}
	switch agg {
	case "min":
		return s.MinMs, true
	case "max":
		return s.MaxMs, true
	case "mean":
		return s.MeanMs, true
	case "median":
		return s.MedianMs, true
	case "stddev":
		return s.StdDevMs, true
	case "p95":
		return s.P95Ms, true
	case "p99":
		return s.P99Ms, true
	case "count":
		return float64(s.Count), true
	default:
		return 0, false
	}
}

func compare(actual float64, operator string, expected float64) bool {
	// Floating point comparison with a small epsilon.
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}

func findingText(r Rule, ce *expr, actual float64) string {
	if r.Message != "" {
		return r.Message
	}

	tag := "ISSUE"
	if r.Severity == SeverityOptimization {
		tag = "OPTIMIZATION"
	}

	if ce.kind == exprRatio {
		return fmt.Sprintf("%s: %s/%s %s ratio %.2fx crossed threshold '%s'",
			tag, ce.label, ce.denLabel, ce.agg, actual, r.Expr)
	}
	if ce.agg == "count" {
		return fmt.Sprintf("%s: %s count %.0f crossed threshold '%s'",
			tag, ce.label, actual, r.Expr)
	}
	return fmt.Sprintf("%s: %s %s latency %.2fms crossed threshold '%s'",
		tag, ce.label, ce.agg, actual, r.Expr)
}
