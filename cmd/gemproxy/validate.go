package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the
balancer. Environment overrides are applied before validation, so the
result matches what "gemproxy run" would see.

Examples:
  gemproxy validate
  gemproxy validate --config /etc/gemproxy/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println("✓ Configuration valid")
		fmt.Printf("  keys:           %d\n", len(cfg.Keys))
		fmt.Printf("  audit backend:  %s\n", cfg.Audit.Backend)
		fmt.Printf("  preset backend: %s\n", cfg.Presets.Backend)
		fmt.Printf("  metrics:        %v\n", cfg.Telemetry.Metrics.Enabled)
		fmt.Printf("  hot reload:     %v\n", cfg.Reload.Enabled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
