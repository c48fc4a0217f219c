package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/application-tracker/internal/export"
	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/store"
	"github.com/jonathan/application-tracker/internal/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export applications and statistics as CSV",
	RunE:  runExport,
}

var (
	exportConfig   configFlags
	exportOut      string
	exportStatsOut string
	exportStatus   string
)

func init() {
	exportConfig.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Applications CSV path (defaults to export.file)")
	exportCmd.Flags().StringVar(&exportStatsOut, "stats-out", "", "Statistics CSV path (defaults to export.stats_file; \"-\" disables)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "Only export applications with this status")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &exportConfig, nil)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("out") {
		cfg.Export.File = exportOut
	}
	if cmd.Flags().Changed("stats-out") {
		cfg.Export.StatsFile = exportStatsOut
	}
	if cfg.Export.StatsFile == "-" {
		cfg.Export.StatsFile = ""
	}

	var filter store.ListFilter
	if exportStatus != "" {
		status, ok := types.ParseStatus(exportStatus)
		if !ok {
			return fmt.Errorf("unknown status %q", exportStatus)
		}
		filter.Status = status
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	apps, err := st.ListApplications(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list applications: %w", err)
	}

	if err := export.ToFiles(apps, cfg.Export.File, cfg.Export.StatsFile); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "Exported %d applications to %s\n", len(apps), cfg.Export.File)
	if cfg.Export.StatsFile != "" {
		_, _ = fmt.Fprintf(os.Stdout, "Statistics written to %s\n", cfg.Export.StatsFile)
	}
	return nil
}
