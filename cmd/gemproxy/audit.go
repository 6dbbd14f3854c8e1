package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit/export"
	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/cli"
)

var auditFlags struct {
	keyID     string
	operation string
	source    string
	operator  string
	batchID   string
	timeRange string
	limit     int
	offset    int
	sortOrder string
	format    string
	output    string
	days      int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the weight-change audit log",
	Long: `Query, summarize, and export the audit log of weight changes.

Subcommands:
  query     - Query change records with filters
  stats     - Aggregate change statistics
  snapshots - List weight snapshots
  export    - Export change records to JSON or CSV

Examples:
  # Recent changes for one key
  gemproxy audit query --key key-1 --limit 20

  # All rollbacks in a time range
  gemproxy audit query --operation rollback --time-range "2026-08-01T00:00:00Z/2026-08-29T00:00:00Z"

  # Export everything to CSV
  gemproxy audit export --format csv --output changes.csv`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query change records",
	Long: `Query audit records with filters.

Time Range Format:
  RFC3339 interval: "start/end"
  Example: "2026-08-01T00:00:00Z/2026-08-29T00:00:00Z"`,
	RunE: queryAudit,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate change statistics",
	RunE:  auditStats,
}

var auditSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List weight snapshots",
	RunE:  listSnapshots,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export change records",
	RunE:  exportAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditStatsCmd, auditSnapshotsCmd, auditExportCmd)

	for _, c := range []*cobra.Command{auditQueryCmd, auditExportCmd} {
		c.Flags().StringVar(&auditFlags.keyID, "key", "", "filter by key ID")
		c.Flags().StringVar(&auditFlags.operation, "operation", "", "filter by operation (manual, intelligent, batch, rollback, automatic)")
		c.Flags().StringVar(&auditFlags.source, "source", "", "filter by source (web_ui, api, config_file, optimizer, monitor)")
		c.Flags().StringVar(&auditFlags.operator, "operator", "", "filter by operator")
		c.Flags().StringVar(&auditFlags.batchID, "batch", "", "filter by batch ID")
		c.Flags().StringVar(&auditFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
		c.Flags().IntVar(&auditFlags.limit, "limit", 100, "max results")
		c.Flags().IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
		c.Flags().StringVar(&auditFlags.sortOrder, "sort", "desc", "sort order by version: asc or desc")
	}
	auditQueryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json")
	auditExportCmd.Flags().StringVar(&auditFlags.format, "format", "json", "export format: json, csv")
	auditExportCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")
	auditStatsCmd.Flags().IntVar(&auditFlags.days, "days", 30, "statistics window in days (0 for all time)")
}

func buildAuditQuery() (*audit.Query, error) {
	query := &audit.Query{
		KeyID:     auditFlags.keyID,
		Operation: audit.OperationType(auditFlags.operation),
		Source:    audit.ChangeSource(auditFlags.source),
		Operator:  auditFlags.operator,
		BatchID:   auditFlags.batchID,
		Limit:     auditFlags.limit,
		Offset:    auditFlags.offset,
		SortOrder: auditFlags.sortOrder,
	}
	if auditFlags.timeRange != "" {
		start, end, err := parseTimeRange(auditFlags.timeRange)
		if err != nil {
			return nil, err
		}
		query.StartTime = &start
		query.EndTime = &end
	}
	return query, nil
}

func parseTimeRange(s string) (time.Time, time.Time, error) {
	var start, end time.Time
	for i := 0; i < len(s); i++ {
		if s[i] != '/' {
			continue
		}
		var err error
		if start, err = time.Parse(time.RFC3339, s[:i]); err != nil {
			return start, end, fmt.Errorf("invalid range start: %w", err)
		}
		if end, err = time.Parse(time.RFC3339, s[i+1:]); err != nil {
			return start, end, fmt.Errorf("invalid range end: %w", err)
		}
		return start, end, nil
	}
	return start, end, fmt.Errorf("time range must be start/end in RFC3339")
}

func queryAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, store, err := openAuditLog(cfg)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	defer store.Close()

	query, err := buildAuditQuery()
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	records, err := log.Query(context.Background(), query)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	if auditFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, records)
	}

	if len(records) == 0 {
		fmt.Println("no matching records")
		return nil
	}
	for _, r := range records {
		fmt.Printf("v%-6d %s  %-12s %6d -> %-6d %-11s %-11s %s\n",
			r.Version,
			r.Timestamp.Format(time.RFC3339),
			r.KeyID,
			r.OldWeight,
			r.NewWeight,
			r.Operation,
			r.Source,
			r.Reason,
		)
	}
	fmt.Printf("\n%d records\n", len(records))
	return nil
}

func auditStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, store, err := openAuditLog(cfg)
	if err != nil {
		return cli.NewCommandError("audit stats", err)
	}
	defer store.Close()

	stats, err := log.Statistics(context.Background(), auditFlags.days)
	if err != nil {
		return cli.NewCommandError("audit stats", err)
	}
	return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, stats)
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, store, err := openAuditLog(cfg)
	if err != nil {
		return cli.NewCommandError("audit snapshots", err)
	}
	defer store.Close()

	snapshots, err := log.Snapshots(context.Background())
	if err != nil {
		return cli.NewCommandError("audit snapshots", err)
	}
	if len(snapshots) == 0 {
		fmt.Println("no snapshots")
		return nil
	}
	for _, s := range snapshots {
		fmt.Printf("%s  %s  v%-6d %2d keys  %s\n",
			s.ID,
			s.Timestamp.Format(time.RFC3339),
			s.Version,
			len(s.Weights),
			s.Description,
		)
	}
	return nil
}

func exportAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, store, err := openAuditLog(cfg)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	defer store.Close()

	var exporter audit.Exporter
	switch auditFlags.format {
	case "json":
		exporter = export.NewJSONExporter(true)
	case "csv":
		exporter = export.NewCSVExporter(true)
	default:
		return cli.NewCommandError("audit export", fmt.Errorf("unsupported format: %s", auditFlags.format))
	}

	out := os.Stdout
	if auditFlags.output != "" {
		f, err := os.Create(auditFlags.output)
		if err != nil {
			return cli.NewCommandError("audit export", err)
		}
		defer f.Close()
		out = f
	}

	query, err := buildAuditQuery()
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	if err := log.ExportRecords(context.Background(), query, exporter, out); err != nil {
		return cli.NewCommandError("audit export", err)
	}
	if auditFlags.output != "" {
		fmt.Printf("✓ Exported to %s\n", auditFlags.output)
	}
	return nil
}
