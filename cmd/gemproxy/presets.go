package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/balancer"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/cli"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/presets"
)

var presetFlags struct {
	name        string
	description string
	weights     []string
	tags        []string
	createdBy   string
	id          string
	operator    string
	format      string
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage weight presets",
	Long: `Create, inspect, and apply named weight sets.

Subcommands:
  list    - List stored presets
  create  - Store a new preset
  delete  - Delete a preset by ID
  analyze - Show balance statistics for a preset
  apply   - Apply a preset to the configured key pool

Examples:
  # Store a canary split
  gemproxy presets create --name canary --weights key-a=900,key-b=100 --by alice

  # Check how balanced it is
  gemproxy presets analyze --name canary

  # Apply it (records an audited batch change)
  gemproxy presets apply --name canary --operator alice`,
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored presets",
	RunE:  listPresets,
}

var presetsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Store a new preset",
	RunE:  createPreset,
}

var presetsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a preset by ID",
	RunE:  deletePreset,
}

var presetsAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Show balance statistics for a preset",
	RunE:  analyzePreset,
}

var presetsApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a preset to the configured key pool",
	Long: `Apply a stored preset's weights to the key pool from the
configuration file. Each applied change is recorded in the audit log
as part of one batch.`,
	RunE: applyPreset,
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.AddCommand(presetsListCmd, presetsCreateCmd, presetsDeleteCmd, presetsAnalyzeCmd, presetsApplyCmd)

	presetsListCmd.Flags().StringVar(&presetFlags.format, "format", "text", "output format: text, json")

	presetsCreateCmd.Flags().StringVar(&presetFlags.name, "name", "", "preset name (required)")
	presetsCreateCmd.Flags().StringVar(&presetFlags.description, "description", "", "preset description")
	presetsCreateCmd.Flags().StringSliceVar(&presetFlags.weights, "weights", nil, "weights as key=value pairs (required)")
	presetsCreateCmd.Flags().StringSliceVar(&presetFlags.tags, "tags", nil, "tags for grouping")
	presetsCreateCmd.Flags().StringVar(&presetFlags.createdBy, "by", "", "creator identity")
	presetsCreateCmd.MarkFlagRequired("name")
	presetsCreateCmd.MarkFlagRequired("weights")

	presetsDeleteCmd.Flags().StringVar(&presetFlags.id, "id", "", "preset ID (required)")
	presetsDeleteCmd.MarkFlagRequired("id")

	presetsAnalyzeCmd.Flags().StringVar(&presetFlags.name, "name", "", "preset name (required)")
	presetsAnalyzeCmd.MarkFlagRequired("name")

	presetsApplyCmd.Flags().StringVar(&presetFlags.name, "name", "", "preset name (required)")
	presetsApplyCmd.Flags().StringVar(&presetFlags.operator, "operator", "", "operator recorded in the audit log (required)")
	presetsApplyCmd.MarkFlagRequired("name")
	presetsApplyCmd.MarkFlagRequired("operator")
}

func parseWeightPairs(pairs []string) (map[string]int, error) {
	weights := make(map[string]int, len(pairs))
	for _, pair := range pairs {
		keyID, value, found := strings.Cut(pair, "=")
		if !found || keyID == "" {
			return nil, fmt.Errorf("weight %q is not key=value", pair)
		}
		w, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("weight for %s is not a number: %w", keyID, err)
		}
		weights[keyID] = w
	}
	return weights, nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openPresetStore(cfg)
	if err != nil {
		return cli.NewCommandError("presets list", err)
	}
	defer store.Close()

	all, err := store.List(context.Background())
	if err != nil {
		return cli.NewCommandError("presets list", err)
	}

	if presetFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, all)
	}
	if len(all) == 0 {
		fmt.Println("no presets")
		return nil
	}
	for _, p := range all {
		fmt.Printf("%s  %-20s %2d keys  %s\n", p.ID, p.Name, len(p.Weights), p.Description)
	}
	return nil
}

func createPreset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openPresetStore(cfg)
	if err != nil {
		return cli.NewCommandError("presets create", err)
	}
	defer store.Close()

	weights, err := parseWeightPairs(presetFlags.weights)
	if err != nil {
		return cli.NewCommandError("presets create", err)
	}

	preset := presets.NewWeightPreset(presetFlags.name, presetFlags.description, weights, presetFlags.createdBy, presetFlags.tags)
	if err := store.Save(context.Background(), preset); err != nil {
		return cli.NewCommandError("presets create", err)
	}
	fmt.Printf("✓ Preset %s created (%s)\n", preset.Name, preset.ID)
	return nil
}

func deletePreset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openPresetStore(cfg)
	if err != nil {
		return cli.NewCommandError("presets delete", err)
	}
	defer store.Close()

	if err := store.Delete(context.Background(), presetFlags.id); err != nil {
		return cli.NewCommandError("presets delete", err)
	}
	fmt.Printf("✓ Preset %s deleted\n", presetFlags.id)
	return nil
}

func analyzePreset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openPresetStore(cfg)
	if err != nil {
		return cli.NewCommandError("presets analyze", err)
	}
	defer store.Close()

	preset, err := store.GetByName(context.Background(), presetFlags.name)
	if err != nil {
		return cli.NewCommandError("presets analyze", err)
	}
	if preset == nil {
		return cli.NewCommandError("presets analyze", fmt.Errorf("preset not found: %s", presetFlags.name))
	}

	analysis := presets.Analyze(preset.Weights)
	fmt.Printf("Preset: %s (%d keys)\n", preset.Name, len(preset.Weights))
	fmt.Printf("Total weight:  %d\n", analysis.Total)
	fmt.Printf("Min / max:     %d / %d\n", analysis.Min, analysis.Max)
	fmt.Printf("Mean:          %.1f\n", analysis.Mean)
	fmt.Printf("Balance score: %.3f\n", analysis.BalanceScore)
	return nil
}

func applyPreset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openPresetStore(cfg)
	if err != nil {
		return cli.NewCommandError("presets apply", err)
	}
	defer store.Close()

	ctx := context.Background()
	preset, err := store.GetByName(ctx, presetFlags.name)
	if err != nil {
		return cli.NewCommandError("presets apply", err)
	}
	if preset == nil {
		return cli.NewCommandError("presets apply", fmt.Errorf("preset not found: %s", presetFlags.name))
	}

	auditLog, auditStore, err := openAuditLog(cfg)
	if err != nil {
		return cli.NewCommandError("presets apply", err)
	}
	defer auditStore.Close()

	pool, err := buildPool(cfg)
	if err != nil {
		return cli.NewCommandError("presets apply", err)
	}

	mgr := balancer.NewManager(pool, auditLog, nil)
	records, err := mgr.ApplyPreset(ctx, preset.Name, preset.Weights, presetFlags.operator)
	if err != nil {
		return cli.NewCommandError("presets apply", err)
	}
	fmt.Printf("✓ Preset %s applied (%d changes recorded", preset.Name, len(records))
	if len(records) > 0 {
		fmt.Printf(", batch %s", records[0].BatchID)
	}
	fmt.Println(")")
	return nil
}
