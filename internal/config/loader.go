package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		DataDir:         "data",
		StressOps:       50,
		Workers:         4,
		MaxReadAttempts: 20,
		Timeout:         30 * time.Second,
		ConfigFile:      configPath,
		Tracing:         TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.ServerCommand = strings.TrimSpace(cfg.ServerCommand)
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	cfg.Dataset = strings.TrimSpace(cfg.Dataset)

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "servercommand", "server_command", "server-command", "server-cmd"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("serverCommand: %w", err)
		}
		cfg.ServerCommand = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "serverargs", "server_args", "server-args"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("serverArgs: %w", err)
		}
		cfg.ServerArgs = vals
	}

	if raw, ok := lookupSetting(settings, "servername", "server_name", "server-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("serverName: %w", err)
		}
		cfg.ServerName = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "datadir", "data_dir", "data-dir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("dataDir: %w", err)
		}
		cfg.DataDir = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "dataset"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("dataset: %w", err)
		}
		cfg.Dataset = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "fetch"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		cfg.Fetch = val
	}

	if raw, ok := lookupSetting(settings, "stressops", "stress_ops", "stress-ops"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("stressOps: %w", err)
		}
		cfg.StressOps = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		cfg.Workers = val
	}

	if raw, ok := lookupSetting(settings, "maxreadattempts", "max_read_attempts", "max-read-attempts"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("maxReadAttempts: %w", err)
		}
		cfg.MaxReadAttempts = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "rulesfile", "rules_file", "rules-file", "rules"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("rulesFile: %w", err)
		}
		cfg.RulesFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		if tracing.Protocol == "" {
			tracing.Protocol = cfg.Tracing.Protocol
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTracing(value interface{}) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}

	tracing := TracingConfig{SampleRate: 1.0}

	if raw, ok := lookupSetting(settings, "enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("enabled: %w", err)
		}
		tracing.Enabled = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("serviceName: %w", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sampleRate: %w", err)
		}
		tracing.SampleRate = val
	}

	return tracing, nil
}
