package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gemproxy",
	Short: "Gem-proxy - weighted key-pool load balancer",
	Long: `Gem-proxy is a weighted load-balancing core for pools of upstream API keys.

It provides:
  - Smooth weighted round robin scheduling across API keys
  - Per-key health tracking with gradual degradation and recovery
  - Rolling-window rate limiting per key
  - An append-only audit log of every weight change
  - Snapshots with rollback-by-replay
  - Reusable weight presets and data-driven weight recommendations

For more information, visit: https://github.com/MAQSOODAWANhaha/gem-proxy`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
