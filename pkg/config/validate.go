package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for errors. It is called after
// defaults are applied, so required fields left empty by the user are
// already filled in.
func Validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Keys))
	for i, key := range cfg.Keys {
		if key.ID == "" {
			return fmt.Errorf("keys[%d]: id is required", i)
		}
		if seen[key.ID] {
			return fmt.Errorf("keys[%d]: duplicate key id %q", i, key.ID)
		}
		seen[key.ID] = true
		if key.Secret == "" {
			return fmt.Errorf("keys[%d] (%s): secret is required", i, key.ID)
		}
		if key.Weight < 0 {
			return fmt.Errorf("keys[%d] (%s): weight must be non-negative, got %d", i, key.ID, key.Weight)
		}
		if key.MaxRequestsPerMinute < 0 {
			return fmt.Errorf("keys[%d] (%s): max_requests_per_minute must be non-negative, got %d", i, key.ID, key.MaxRequestsPerMinute)
		}
	}

	switch cfg.Audit.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("audit.backend must be \"memory\" or \"sqlite\", got %q", cfg.Audit.Backend)
	}
	if cfg.Audit.Backend == "sqlite" && cfg.Audit.SQLite.Path == "" {
		return fmt.Errorf("audit.sqlite.path is required for the sqlite backend")
	}
	if cfg.Audit.MaxRecords < 0 {
		return fmt.Errorf("audit.max_records must be non-negative, got %d", cfg.Audit.MaxRecords)
	}
	if cfg.Audit.MaxSnapshots < 0 {
		return fmt.Errorf("audit.max_snapshots must be non-negative, got %d", cfg.Audit.MaxSnapshots)
	}
	if cfg.Audit.Retention.Days < 0 {
		return fmt.Errorf("audit.retention.days must be non-negative, got %d", cfg.Audit.Retention.Days)
	}
	if cfg.Audit.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Audit.Retention.Schedule); err != nil {
			return fmt.Errorf("audit.retention.schedule: invalid cron expression %q: %w", cfg.Audit.Retention.Schedule, err)
		}
	}

	if cfg.Optimizer.MinWeight <= 0 {
		return fmt.Errorf("optimizer.min_weight must be positive, got %d", cfg.Optimizer.MinWeight)
	}
	if cfg.Optimizer.MaxWeight < cfg.Optimizer.MinWeight {
		return fmt.Errorf("optimizer.max_weight (%d) must be >= optimizer.min_weight (%d)",
			cfg.Optimizer.MaxWeight, cfg.Optimizer.MinWeight)
	}
	if cfg.Optimizer.MinSamples <= 0 {
		return fmt.Errorf("optimizer.min_samples must be positive, got %d", cfg.Optimizer.MinSamples)
	}

	switch cfg.Presets.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("presets.backend must be \"memory\" or \"sqlite\", got %q", cfg.Presets.Backend)
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level must be one of debug, info, warn, error; got %q", cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format must be \"json\" or \"text\", got %q", cfg.Telemetry.Logging.Format)
	}
	switch cfg.Telemetry.Logging.Output {
	case "stdout", "stderr":
	default:
		return fmt.Errorf("telemetry.logging.output must be \"stdout\" or \"stderr\", got %q", cfg.Telemetry.Logging.Output)
	}

	return nil
}
