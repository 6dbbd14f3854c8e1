package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified
// path. It applies default values, validates the configuration, and
// returns any errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention GEMPROXY_SECTION_FIELD (e.g. GEMPROXY_AUDIT_BACKEND) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	// Audit overrides
	if val := os.Getenv("GEMPROXY_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = val
	}
	if val := os.Getenv("GEMPROXY_AUDIT_SQLITE_PATH"); val != "" {
		cfg.Audit.SQLite.Path = val
	}
	if val := os.Getenv("GEMPROXY_AUDIT_MAX_RECORDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.MaxRecords = i
		}
	}
	if val := os.Getenv("GEMPROXY_AUDIT_MAX_SNAPSHOTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.MaxSnapshots = i
		}
	}
	if val := os.Getenv("GEMPROXY_AUDIT_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.Retention.Days = i
		}
	}
	if val := os.Getenv("GEMPROXY_AUDIT_RETENTION_SCHEDULE"); val != "" {
		cfg.Audit.Retention.Schedule = val
	}

	// Optimizer overrides
	if val := os.Getenv("GEMPROXY_OPTIMIZER_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Optimizer.Enabled = b
		}
	}
	if val := os.Getenv("GEMPROXY_OPTIMIZER_MIN_WEIGHT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Optimizer.MinWeight = i
		}
	}
	if val := os.Getenv("GEMPROXY_OPTIMIZER_MAX_WEIGHT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Optimizer.MaxWeight = i
		}
	}
	if val := os.Getenv("GEMPROXY_OPTIMIZER_MIN_SAMPLES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Optimizer.MinSamples = i
		}
	}

	// Presets overrides
	if val := os.Getenv("GEMPROXY_PRESETS_BACKEND"); val != "" {
		cfg.Presets.Backend = val
	}
	if val := os.Getenv("GEMPROXY_PRESETS_SQLITE_PATH"); val != "" {
		cfg.Presets.SQLitePath = val
	}

	// Reload overrides
	if val := os.Getenv("GEMPROXY_RELOAD_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Reload.Enabled = b
		}
	}
	if val := os.Getenv("GEMPROXY_RELOAD_DEBOUNCE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Reload.Debounce = d
		}
	}

	// Telemetry overrides
	if val := os.Getenv("GEMPROXY_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GEMPROXY_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("GEMPROXY_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("GEMPROXY_TELEMETRY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
	if val := os.Getenv("GEMPROXY_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}
