package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit/retention"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/balancer"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/cli"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/config"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/telemetry/logging"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/telemetry/metrics"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the balancer",
	Long: `Start the balancer with the specified configuration.

The balancer loads the key pool from configuration, opens the audit
log, serves Prometheus metrics, and optionally watches the config file
for hot reload and prunes the audit log on a schedule.

Examples:
  # Start with default config
  gemproxy run

  # Start with custom config
  gemproxy run --config /etc/gemproxy/config.yaml

  # Validate config without starting
  gemproxy run --dry-run`,
	RunE: runBalancer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runBalancer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	logger.SetDefault()

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Gem-proxy v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Audit log
	auditLog, auditStore, err := openAuditLog(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer auditStore.Close()
	fmt.Printf("✓ Audit log ready (backend: %s, version %d)\n", cfg.Audit.Backend, auditLog.Version())

	// Key pool
	pool, err := buildPool(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Printf("✓ Key pool loaded (%d keys)\n", len(cfg.Keys))

	// Metrics
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics)
	mgr := balancer.NewManager(pool, auditLog, collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsSrv *http.Server
	if cfg.Telemetry.Metrics.Enabled {
		metricsSrv = startMetricsServer(cfg, collector)
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Telemetry.Metrics.ListenAddress, cfg.Telemetry.Metrics.Path)
	}

	// Scheduled audit retention
	if cfg.Audit.Retention.Schedule != "" {
		pruner := retention.NewPruner(auditStore, &retention.Config{
			RetentionDays:       cfg.Audit.Retention.Days,
			PruneSchedule:       cfg.Audit.Retention.Schedule,
			ArchiveBeforeDelete: cfg.Audit.Retention.ArchiveBeforeDelete,
			ArchivePath:         cfg.Audit.Retention.ArchivePath,
			MaxRecords:          cfg.Audit.MaxRecords,
		})
		if err := pruner.Start(ctx); err != nil {
			logger.Slog().Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				fmt.Printf("✓ Audit retention scheduled (next: %s)\n", next.Format(time.RFC3339))
			}
		}
	}

	// Config hot reload
	if cfg.Reload.Enabled {
		watcher, err := config.NewWatcher(cfgFile, cfg.Reload.Debounce)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		go func() {
			err := watcher.Watch(ctx, func(newCfg *config.Config) error {
				return mgr.ApplyConfig(ctx, newCfg, "config-reload")
			})
			if err != nil {
				logger.Slog().Error("config watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
		fmt.Println("✓ Config hot reload enabled")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	sig := <-cli.WaitForShutdown()
	fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
	cancel()

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			return cli.NewCommandError("run", err)
		}
	}

	stats := mgr.Stats()
	logger.Slog().Info("balancer stopped",
		"total_keys", stats.TotalKeys,
		"active_keys", stats.ActiveKeys,
	)
	fmt.Println("✓ Balancer stopped")
	return nil
}

func newLogger(cfg *config.LoggingConfig) (*logging.Logger, error) {
	out := os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}
	return logging.New(logging.Config{
		Level:  cfg.Level,
		Format: logging.LogFormat(cfg.Format),
		Writer: out,
	})
}

func startMetricsServer(cfg *config.Config, collector *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:              cfg.Telemetry.Metrics.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()
	return srv
}
