package bench

import (
	"time"

	"github.com/tzervas/context-mcp/internal/extract"
	"github.com/tzervas/context-mcp/internal/threshold"
)

// PhaseResult records the outcome of one suite phase.
type PhaseResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// Result aggregates the outcome of a full suite run.
type Result struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"-"`
	Phases    []PhaseResult `json:"phases"`

	StoredIDs    []string              `json:"-"`
	TotalStored  int                   `json:"total_stored"`
	StoreRate    float64               `json:"store_throughput_per_sec"`
	StressRate   float64               `json:"stress_throughput_per_sec"`
	RAGResultAvg float64               `json:"rag_results_per_query"`
	OpErrors     []string              `json:"op_errors,omitempty"`
	StorageStats *extract.StorageStats `json:"storage_stats,omitempty"`

	// Findings raised directly by phases (cache occupancy), merged with
	// threshold findings in the report.
	Findings []threshold.Finding `json:"findings,omitempty"`
}

// PassedCount returns how many phases passed.
func (r *Result) PassedCount() int {
	n := 0
	for _, p := range r.Phases {
		if p.Passed {
			n++
		}
	}
	return n
}

// FailedCount returns how many phases failed.
func (r *Result) FailedCount() int {
	return len(r.Phases) - r.PassedCount()
}
