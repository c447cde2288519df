package threshold

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultRules returns the built-in rule table. The constants mirror the
// regression thresholds the report consumers are calibrated against.
func DefaultRules() []Rule {
	return []Rule{
		MustParse("store-max-latency", SeverityIssue, "store:max > 10", ""),
		MustParse("query-max-latency", SeverityIssue, "query:max > 20", ""),
		MustParse("query-caching", SeverityOptimization, "query:max > 20",
			"OPTIMIZATION: Add query indexing or caching for frequently accessed domains/tags"),
		MustParse("rag-embedding-cache", SeverityOptimization, "rag:max > 50",
			"OPTIMIZATION: Consider implementing embedding caching or incremental RAG updates"),
		MustParse("stress-max-latency", SeverityIssue, "stress:max > 100", ""),
		MustParse("stress-hot-paths", SeverityOptimization, "stress:max > 100",
			"OPTIMIZATION: Profile high-load scenarios and optimize hot paths"),
		MustParse("batch-scaling", SeverityIssue, "batch-50:mean / batch-5:mean > 1.5", ""),
		MustParse("batch-optimization", SeverityOptimization, "batch-50:mean / batch-5:mean > 1.5",
			"OPTIMIZATION: Implement batch query optimization in context-mcp"),
	}
}

type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name     string `yaml:"name"`
	Severity string `yaml:"severity"`
	Expr     string `yaml:"expr"`
	Message  string `yaml:"message"`
}

// LoadRules reads a YAML rule file:
//
//	rules:
//	  - name: store-max-latency
//	    severity: issue
//	    expr: "store:max > 10"
//
// Severity defaults to issue. Every rule is validated; the first invalid rule
// fails the load.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s declares no rules", path)
	}

	rules := make([]Rule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i)
		}
		rule, err := Parse(name, Severity(spec.Severity), spec.Expr, spec.Message)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
