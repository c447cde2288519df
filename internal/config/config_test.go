package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		ServerCommand:   "python",
		DataDir:         "data",
		StressOps:       50,
		Workers:         4,
		MaxReadAttempts: 20,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing server command",
			mutate:  func(c *Config) { c.ServerCommand = " " },
			wantSub: "server command is required",
		},
		{
			name:    "negative stress ops",
			mutate:  func(c *Config) { c.StressOps = -1 },
			wantSub: "stress-ops must be >= 0",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Rate = -1 },
			wantSub: "rate must be >= 0",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Workers = 0 },
			wantSub: "workers must be >= 1",
		},
		{
			name:    "zero read attempts",
			mutate:  func(c *Config) { c.MaxReadAttempts = 0 },
			wantSub: "max-read-attempts must be >= 1",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Timeout = -1 },
			wantSub: "timeout must be >= 0",
		},
		{
			name: "dashboard and json output",
			mutate: func(c *Config) {
				c.Dashboard = true
				c.JSONOutput = true
			},
			wantSub: "mutually exclusive",
		},
		{
			name: "fetch without data dir",
			mutate: func(c *Config) {
				c.Fetch = true
				c.DataDir = ""
			},
			wantSub: "data-dir is required",
		},
		{
			name: "bad tracing protocol",
			mutate: func(c *Config) {
				c.Tracing = TracingConfig{Enabled: true, Protocol: "udp"}
			},
			wantSub: "protocol must be 'grpc' or 'http'",
		},
		{
			name: "bad sample rate",
			mutate: func(c *Config) {
				c.Tracing = TracingConfig{Enabled: true, SampleRate: 1.5}
			},
			wantSub: "sample_rate must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestValidationErrorIssuesCopy(t *testing.T) {
	cfg := validConfig()
	cfg.Workers = 0
	cfg.StressOps = -1

	err := cfg.Validate()
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(verr.Issues()) != 2 {
		t.Errorf("Issues() length = %d, want 2", len(verr.Issues()))
	}
}
