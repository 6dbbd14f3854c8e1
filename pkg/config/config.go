package config

import "time"

// Config is the root configuration structure for gem-proxy. It contains
// all configuration sections for the key pool, audit log, optimizer,
// weight presets, and telemetry.
type Config struct {
	// Keys lists the upstream API keys the balancer schedules over.
	Keys []KeyConfig `yaml:"keys"`

	// Audit contains configuration for the audit log including storage
	// backend selection, retention, and snapshot limits.
	Audit AuditConfig `yaml:"audit"`

	// Optimizer contains configuration for the weight optimizer.
	Optimizer OptimizerConfig `yaml:"optimizer"`

	// Presets contains configuration for the weight preset store.
	Presets PresetsConfig `yaml:"presets"`

	// Reload contains configuration for config file hot reload.
	Reload ReloadConfig `yaml:"reload"`

	// Telemetry contains configuration for observability including
	// logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// KeyConfig describes one upstream API key.
type KeyConfig struct {
	// ID is the unique key identifier used in scheduling, audit
	// records, and metrics. Secret material never appears in any of
	// those places.
	ID string `yaml:"id"`

	// Secret is the credential sent upstream. This should typically be
	// loaded from an environment variable.
	Secret string `yaml:"secret"`

	// Weight is the configured scheduling weight. Higher weights
	// receive proportionally more selections.
	// Default: 100
	Weight int `yaml:"weight"`

	// MaxRequestsPerMinute caps selections per rolling 60 second
	// window. 0 uses the default.
	// Default: 1000
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
}

// AuditConfig contains configuration for the audit log.
type AuditConfig struct {
	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains settings for the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// MaxRecords is the maximum number of change records to retain.
	// 0 disables count-based retention.
	// Default: 10000
	MaxRecords int `yaml:"max_records"`

	// MaxSnapshots bounds the number of retained snapshots.
	// Default: 50
	MaxSnapshots int `yaml:"max_snapshots"`

	// Retention contains scheduled pruning settings.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains settings for a SQLite database file.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// DisableWAL turns off Write-Ahead Logging. WAL is on by default
	// for better concurrency.
	DisableWAL bool `yaml:"disable_wal"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains scheduled pruning settings for the audit log.
type RetentionConfig struct {
	// Days is the number of days to retain change records.
	// 0 disables age-based pruning.
	// Default: 90
	Days int `yaml:"days"`

	// Schedule is a cron expression for scheduled pruning.
	// Empty disables the scheduler.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// ArchiveBeforeDelete exports records to JSON before deletion.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the directory for archived records.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`
}

// OptimizerConfig contains configuration for the weight optimizer.
type OptimizerConfig struct {
	// Enabled controls whether optimizer recommendations may be applied.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// MinWeight is the floor for recommended weights.
	// Default: 10
	MinWeight int `yaml:"min_weight"`

	// MaxWeight is the ceiling for recommended weights.
	// Default: 1000
	MaxWeight int `yaml:"max_weight"`

	// MinSamples is the number of observed requests a key needs before
	// the optimizer will score it.
	// Default: 50
	MinSamples int `yaml:"min_samples"`

	// SampleWindow is how long observed samples stay relevant.
	// Default: 10m
	SampleWindow time.Duration `yaml:"sample_window"`
}

// PresetsConfig contains configuration for the weight preset store.
type PresetsConfig struct {
	// Backend selects the preset store: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// Default: "data/presets.db"
	SQLitePath string `yaml:"sqlite_path"`
}

// ReloadConfig contains configuration for config file hot reload.
type ReloadConfig struct {
	// Enabled controls whether the config file is watched for changes.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Debounce coalesces rapid file events into one reload.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// Output is the destination: "stdout" or "stderr".
	// Default: "stdout"
	Output string `yaml:"output"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "gemproxy"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	// Default: "balancer"
	Subsystem string `yaml:"subsystem"`

	// ListenAddress is the address for the metrics HTTP endpoint.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
