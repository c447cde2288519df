package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tzervas/context-mcp/internal/dataset"
	"github.com/tzervas/context-mcp/internal/metrics"
	"github.com/tzervas/context-mcp/internal/tracing"
)

// Caller executes a single tool invocation against the server under test.
// *rpc.Session satisfies it.
type Caller interface {
	CallTool(ctx context.Context, tool string, arguments map[string]any) (json.RawMessage, error)
}

// Options tunes a suite run.
type Options struct {
	// Payloads is the store-phase dataset. Empty falls back to the
	// synthetic generator.
	Payloads []dataset.Payload
	// StressOps is the number of store and of query operations in the
	// stress phase (so total ops is twice this).
	StressOps int
	// Workers fans the stress phase across goroutines sharing the session.
	Workers int
	// Rate caps stress operations per second. Zero means unpaced.
	Rate int
	// LogErrors echoes each failed operation to ErrWriter.
	LogErrors bool
	// ErrWriter receives operation failure lines. Nil discards them.
	ErrWriter io.Writer
	// Tracer emits one span per phase. Nil disables phase spans.
	Tracer trace.Tracer
}

// Suite runs the benchmark phases over one session and one collector.
type Suite struct {
	session   Caller
	collector *metrics.Collector
	opts      Options

	mu     sync.Mutex
	result Result
}

// New creates a Suite. The collector accumulates per-operation latencies and
// stays valid after Run for threshold evaluation and reporting.
func New(session Caller, collector *metrics.Collector, opts Options) *Suite {
	if opts.StressOps < 0 {
		opts.StressOps = 0
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if len(opts.Payloads) == 0 {
		opts.Payloads = dataset.Generate()
	}
	if opts.ErrWriter == nil {
		opts.ErrWriter = io.Discard
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("bench")
	}
	return &Suite{
		session:   session,
		collector: collector,
		opts:      opts,
	}
}

// Run executes every phase in order and returns the aggregate result. Phase
// failures are recorded, not returned; the only errors Run surfaces are
// context cancellation between phases.
func (s *Suite) Run(ctx context.Context) (*Result, error) {
	s.result = Result{
		RunID:     ulid.Make().String(),
		StartedAt: time.Now(),
	}
	s.collector.Start()

	phases := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"store", s.runStore},
		{"scalability", s.runScalability},
		{"query", s.runQuery},
		{"rag", s.runRAG},
		{"screen", s.runScreening},
		{"stress", s.runStress},
		{"temporal-stats", s.runTemporalStats},
		{"storage-stats", s.runStorageStats},
		{"cleanup", s.runCleanup},
	}

	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return &s.result, err
		}
		s.runPhase(ctx, phase.name, phase.fn)
	}

	s.result.Duration = time.Since(s.result.StartedAt)
	return &s.result, ctx.Err()
}

func (s *Suite) runPhase(ctx context.Context, name string, fn func(context.Context) error) {
	phaseCtx, span := tracing.StartPhaseSpan(ctx, s.opts.Tracer, name)
	err := fn(phaseCtx)
	tracing.EndSpan(span, err)

	pr := PhaseResult{Name: name, Passed: err == nil}
	if err != nil {
		pr.Error = err.Error()
		fmt.Fprintf(s.opts.ErrWriter, "phase %s failed: %v\n", name, err)
	}
	s.result.Phases = append(s.result.Phases, pr)
}

// timedCall measures one tool invocation and records it under label. The
// failure is noted in the result and returned for callers that care.
func (s *Suite) timedCall(ctx context.Context, label, tool string, args map[string]any) (json.RawMessage, error) {
	start := time.Now()
	result, err := s.session.CallTool(ctx, tool, args)
	elapsed := time.Since(start)
	if err != nil {
		s.noteOpError(label, err)
		return nil, err
	}
	s.collector.Record(label, elapsed)
	return result, nil
}

func (s *Suite) noteOpError(label string, err error) {
	s.mu.Lock()
	s.result.OpErrors = append(s.result.OpErrors, fmt.Sprintf("%s: %v", label, err))
	s.mu.Unlock()
	if s.opts.LogErrors {
		fmt.Fprintf(s.opts.ErrWriter, "operation %s failed: %v\n", label, err)
	}
}
