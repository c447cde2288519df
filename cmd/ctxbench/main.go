package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tzervas/context-mcp/internal/bench"
	"github.com/tzervas/context-mcp/internal/config"
	"github.com/tzervas/context-mcp/internal/dashboard"
	"github.com/tzervas/context-mcp/internal/dataset"
	"github.com/tzervas/context-mcp/internal/metrics"
	"github.com/tzervas/context-mcp/internal/output"
	"github.com/tzervas/context-mcp/internal/rpc"
	"github.com/tzervas/context-mcp/internal/threshold"
	"github.com/tzervas/context-mcp/internal/tracing"
)

const progressInterval = time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if cfg.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, cfg.Timeout)
		defer timeoutCancel()
	}

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	payloads, err := loadPayloads(ctx, cfg)
	if err != nil {
		return err
	}

	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}

	session, err := rpc.Start(ctx, cfg.ServerCommand, cfg.ServerArgs,
		rpc.WithName(cfg.ServerName),
		rpc.WithMaxReadAttempts(cfg.MaxReadAttempts),
		rpc.WithTracer(provider.Tracer()),
		rpc.WithStderr(os.Stderr),
	)
	if err != nil {
		return err
	}
	defer session.Stop()
	// A pending pipe read only unblocks when the server dies, so the deadline
	// and signal paths must stop the session directly rather than wait for
	// the deferred cleanup behind the blocked call.
	stopOnDone := context.AfterFunc(ctx, session.Stop)
	defer stopOnDone()

	collector := metrics.NewCollector()

	var dash *dashboard.Dashboard
	stopDash := func() {
		if dash != nil {
			dash.Stop()
			dash = nil
		}
	}
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.RunConfig{
			ServerCommand: cfg.ServerCommand,
			ServerName:    cfg.ServerName,
			StressOps:     cfg.StressOps,
			Workers:       cfg.Workers,
			Rate:          cfg.Rate,
			ConfigFile:    cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		defer stopDash()
	}

	var progress *output.ProgressReporter
	stopProgress := func() {
		if progress != nil {
			progress.Stop()
			fmt.Fprintln(os.Stdout)
			progress = nil
		}
	}
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, progressInterval, os.Stdout)
		progress.Start()
		defer stopProgress()
	}

	suite := bench.New(session, collector, bench.Options{
		Payloads:  payloads,
		StressOps: cfg.StressOps,
		Workers:   cfg.Workers,
		Rate:      cfg.Rate,
		LogErrors: cfg.LogErrors,
		ErrWriter: os.Stderr,
		Tracer:    provider.Tracer(),
	})

	result, runErr := suite.Run(ctx)
	report := output.Build(result, collector, rules)

	// Progress and dashboard write to the same terminal; stop them before
	// rendering the final report.
	stopProgress()
	stopDash()

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, report)
	}

	if runErr != nil {
		return runErr
	}
	if result.FailedCount() > 0 {
		return fmt.Errorf("%d benchmark phases failed", result.FailedCount())
	}
	return nil
}

// loadPayloads resolves the store-phase dataset: an explicit dataset file, an
// optionally refreshed data directory, or the synthetic generator.
func loadPayloads(ctx context.Context, cfg *config.Config) ([]dataset.Payload, error) {
	if cfg.Dataset != "" {
		return dataset.LoadFile(cfg.Dataset)
	}

	if cfg.Fetch {
		fetcher := dataset.NewFetcher(cfg.DataDir)
		if err := fetcher.Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: dataset fetch failed, falling back to synthetic data: %v\n", err)
			return nil, nil
		}
	}

	if cfg.DataDir != "" {
		if payloads, err := dataset.LoadDir(cfg.DataDir); err == nil {
			return payloads, nil
		}
	}

	// Nil lets the suite fall back to the generator.
	return nil, nil
}

func loadRules(cfg *config.Config) ([]threshold.Rule, error) {
	rules := threshold.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := threshold.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	for i, expr := range cfg.Thresholds {
		rule, err := threshold.Parse(fmt.Sprintf("cli-threshold-%d", i+1), threshold.SeverityIssue, expr, "")
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", expr, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
