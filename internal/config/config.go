package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	ServerCommand   string        `mapstructure:"server_command"`
	ServerArgs      []string      `mapstructure:"server_args"`
	ServerName      string        `mapstructure:"server_name"`
	DataDir         string        `mapstructure:"data_dir"`
	Dataset         string        `mapstructure:"dataset"`
	Fetch           bool          `mapstructure:"fetch"`
	StressOps       int           `mapstructure:"stress_ops"`
	Rate            int           `mapstructure:"rate"`
	Workers         int           `mapstructure:"workers"`
	MaxReadAttempts int           `mapstructure:"max_read_attempts"`
	Timeout         time.Duration `mapstructure:"timeout"`
	JSONOutput      bool          `mapstructure:"json_output"`
	Dashboard       bool          `mapstructure:"dashboard"`
	LogErrors       bool          `mapstructure:"log_errors"`
	RulesFile       string        `mapstructure:"rules_file"`
	Thresholds      []string      `mapstructure:"thresholds"`
	ConfigFile      string        `mapstructure:"-"`
	Tracing         TracingConfig `mapstructure:"tracing"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.ServerCommand) == "" {
		issues = append(issues, "server command is required (use --help for usage information)")
	}
	if c.StressOps < 0 {
		issues = append(issues, "stress-ops must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Workers < 1 {
		issues = append(issues, "workers must be >= 1")
	}
	if c.MaxReadAttempts < 1 {
		issues = append(issues, "max-read-attempts must be >= 1")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if c.Fetch && strings.TrimSpace(c.DataDir) == "" {
		issues = append(issues, "data-dir is required when fetch is enabled")
	}

	tracingIssues := validateTracingConfig(c.Tracing)
	if len(tracingIssues) > 0 {
		issues = append(issues, tracingIssues...)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateTracingConfig(tr TracingConfig) []string {
	var issues []string
	if !tr.Enabled {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(tr.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", tr.Protocol))
	}
	if tr.SampleRate < 0 || tr.SampleRate > 1.0 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", tr.SampleRate))
	}
	return issues
}
