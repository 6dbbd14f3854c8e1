package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultKeyWeight            = 100
	DefaultMaxRequestsPerMinute = 1000

	DefaultAuditBackend      = "sqlite"
	DefaultAuditSQLitePath   = "data/audit.db"
	DefaultAuditMaxRecords   = 10000
	DefaultAuditMaxSnapshots = 50

	DefaultRetentionDays     = 90
	DefaultRetentionSchedule = "0 3 * * *"
	DefaultArchivePath       = "data/archives/"

	DefaultOptimizerMinWeight    = 10
	DefaultOptimizerMaxWeight    = 1000
	DefaultOptimizerMinSamples   = 50
	DefaultOptimizerSampleWindow = 10 * time.Minute

	DefaultPresetsBackend    = "memory"
	DefaultPresetsSQLitePath = "data/presets.db"

	DefaultReloadDebounce = 500 * time.Millisecond

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogOutput = "stdout"

	DefaultMetricsNamespace     = "gemproxy"
	DefaultMetricsSubsystem     = "balancer"
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsPath          = "/metrics"
)

// ApplyDefaults fills in default values for any unset fields. Explicit
// values, including explicit zeros where zero is meaningful, are left
// alone.
func ApplyDefaults(cfg *Config) {
	for i := range cfg.Keys {
		if cfg.Keys[i].Weight == 0 {
			cfg.Keys[i].Weight = DefaultKeyWeight
		}
		if cfg.Keys[i].MaxRequestsPerMinute == 0 {
			cfg.Keys[i].MaxRequestsPerMinute = DefaultMaxRequestsPerMinute
		}
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.MaxOpenConns == 0 {
		cfg.Audit.SQLite.MaxOpenConns = 10
	}
	if cfg.Audit.SQLite.MaxIdleConns == 0 {
		cfg.Audit.SQLite.MaxIdleConns = 5
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = 5 * time.Second
	}
	if cfg.Audit.MaxRecords == 0 {
		cfg.Audit.MaxRecords = DefaultAuditMaxRecords
	}
	if cfg.Audit.MaxSnapshots == 0 {
		cfg.Audit.MaxSnapshots = DefaultAuditMaxSnapshots
	}
	if cfg.Audit.Retention.Days == 0 {
		cfg.Audit.Retention.Days = DefaultRetentionDays
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Audit.Retention.ArchivePath == "" {
		cfg.Audit.Retention.ArchivePath = DefaultArchivePath
	}

	if cfg.Optimizer.MinWeight == 0 {
		cfg.Optimizer.MinWeight = DefaultOptimizerMinWeight
	}
	if cfg.Optimizer.MaxWeight == 0 {
		cfg.Optimizer.MaxWeight = DefaultOptimizerMaxWeight
	}
	if cfg.Optimizer.MinSamples == 0 {
		cfg.Optimizer.MinSamples = DefaultOptimizerMinSamples
	}
	if cfg.Optimizer.SampleWindow == 0 {
		cfg.Optimizer.SampleWindow = DefaultOptimizerSampleWindow
	}

	if cfg.Presets.Backend == "" {
		cfg.Presets.Backend = DefaultPresetsBackend
	}
	if cfg.Presets.SQLitePath == "" {
		cfg.Presets.SQLitePath = DefaultPresetsSQLitePath
	}

	if cfg.Reload.Debounce == 0 {
		cfg.Reload.Debounce = DefaultReloadDebounce
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Logging.Output == "" {
		cfg.Telemetry.Logging.Output = DefaultLogOutput
	}

	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// DefaultConfig returns a configuration with all defaults applied and
// no keys.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
