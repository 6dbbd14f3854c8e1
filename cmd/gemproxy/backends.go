package main

import (
	"fmt"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
	auditstorage "github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit/storage"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/cli"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/config"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/keypool"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/presets"
)

// loadConfig loads and validates the configuration file, with
// GEMPROXY_* environment overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg, nil
}

// openAuditStorage opens the audit storage backend named in cfg.
func openAuditStorage(cfg *config.Config) (audit.Storage, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		return auditstorage.NewSQLiteStorage(&auditstorage.SQLiteConfig{
			Path:         cfg.Audit.SQLite.Path,
			MaxOpenConns: cfg.Audit.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Audit.SQLite.MaxIdleConns,
			WALMode:      !cfg.Audit.SQLite.DisableWAL,
			BusyTimeout:  cfg.Audit.SQLite.BusyTimeout,
		})
	case "memory":
		return auditstorage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}
}

// openAuditLog opens the configured storage and wraps it in a Log.
// The caller owns closing the returned storage.
func openAuditLog(cfg *config.Config) (*audit.Log, audit.Storage, error) {
	store, err := openAuditStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	log, err := audit.NewLog(store, &audit.Config{
		MaxRecords:   cfg.Audit.MaxRecords,
		MaxAgeDays:   cfg.Audit.Retention.Days,
		MaxSnapshots: cfg.Audit.MaxSnapshots,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return log, store, nil
}

// openPresetStore opens the preset store backend named in cfg.
func openPresetStore(cfg *config.Config) (presets.Store, error) {
	switch cfg.Presets.Backend {
	case "sqlite":
		return presets.NewSQLiteStore(cfg.Presets.SQLitePath)
	case "memory":
		return presets.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported preset backend: %s", cfg.Presets.Backend)
	}
}

// buildPool constructs the key pool from the configured keys.
func buildPool(cfg *config.Config) (*keypool.Pool, error) {
	pool := keypool.New()
	for _, kc := range cfg.Keys {
		key := keypool.NewKey(kc.ID, kc.Secret, kc.Weight, kc.MaxRequestsPerMinute)
		if err := pool.AddKey(key); err != nil {
			return nil, fmt.Errorf("failed to add key %s: %w", kc.ID, err)
		}
	}
	return pool, nil
}
