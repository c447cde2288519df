package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ctxbench",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Server process flags
	flags.String("server-cmd", "", "Command that launches the tool server under test")
	flags.StringSlice("server-arg", nil, "Argument passed to the server command (repeatable)")
	flags.String("server-name", "", "Logical name for the server session in logs and traces")

	// Dataset flags
	flags.String("data-dir", "data", "Directory holding benchmark dataset files")
	flags.String("dataset", "", "Path to a JSON dataset file (defaults to synthetic payloads)")
	flags.Bool("fetch", false, "Refresh the dataset directory from upstream sources before the run")

	// Load control flags
	flags.Int("stress-ops", 50, "Number of store and query operations in the stress phase")
	flags.IntP("rate", "r", 0, "Stress phase operations per second limit (0 means unlimited)")
	flags.IntP("workers", "w", 4, "Number of concurrent stress workers")
	flags.Int("max-read-attempts", 20, "Max stdout lines inspected per call before timing out")
	flags.Duration("timeout", 30*time.Second, "Overall benchmark deadline (0 means none)")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted report")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("log-errors", false, "Log each failed operation to stderr")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Threshold flags
	flags.String("rules", "", "Path to YAML threshold rules file (defaults to built-in rules)")
	flags.StringSlice("threshold", nil, "Additional threshold expression (repeatable, e.g. 'query:p95 > 20')")

	// Tracing flags
	flags.Bool("trace", false, "Enable OpenTelemetry tracing")
	flags.String("trace-endpoint", "", "OTLP collector endpoint")
	flags.String("trace-protocol", "grpc", "OTLP transport: 'grpc' or 'http'")
	flags.String("trace-service-name", "", "Service name reported on spans")
	flags.Bool("trace-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("server-cmd") {
		val, err := fs.GetString("server-cmd")
		if err != nil {
			return err
		}
		cfg.ServerCommand = strings.TrimSpace(val)
	}
	if fs.Changed("server-arg") {
		val, err := fs.GetStringSlice("server-arg")
		if err != nil {
			return err
		}
		cfg.ServerArgs = val
	}
	if fs.Changed("server-name") {
		val, err := fs.GetString("server-name")
		if err != nil {
			return err
		}
		cfg.ServerName = strings.TrimSpace(val)
	}
	if fs.Changed("data-dir") {
		val, err := fs.GetString("data-dir")
		if err != nil {
			return err
		}
		cfg.DataDir = strings.TrimSpace(val)
	}
	if fs.Changed("dataset") {
		val, err := fs.GetString("dataset")
		if err != nil {
			return err
		}
		cfg.Dataset = strings.TrimSpace(val)
	}
	if fs.Changed("fetch") {
		val, err := fs.GetBool("fetch")
		if err != nil {
			return err
		}
		cfg.Fetch = val
	}
	if fs.Changed("stress-ops") {
		val, err := fs.GetInt("stress-ops")
		if err != nil {
			return err
		}
		cfg.StressOps = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("workers") {
		val, err := fs.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = val
	}
	if fs.Changed("max-read-attempts") {
		val, err := fs.GetInt("max-read-attempts")
		if err != nil {
			return err
		}
		cfg.MaxReadAttempts = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("rules") {
		val, err := fs.GetString("rules")
		if err != nil {
			return err
		}
		cfg.RulesFile = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("trace") {
		val, err := fs.GetBool("trace")
		if err != nil {
			return err
		}
		cfg.Tracing.Enabled = val
	}
	if fs.Changed("trace-endpoint") {
		val, err := fs.GetString("trace-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("trace-protocol") {
		val, err := fs.GetString("trace-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-service-name") {
		val, err := fs.GetString("trace-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("trace-insecure") {
		val, err := fs.GetBool("trace-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}
