package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/observability"
	"github.com/jonathan/application-tracker/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show application counts by status",
	RunE:  runStats,
}

var (
	statsConfig configFlags
	statsRecent int
)

func init() {
	statsConfig.register(statsCmd)
	statsCmd.Flags().IntVar(&statsRecent, "recent", 5, "Also list this many recently updated applications (0 disables)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &statsConfig, nil)
	if err != nil {
		return err
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

	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load statistics: %w", err)
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintStats(stats)

	if statsRecent > 0 {
		apps, err := st.ListApplications(ctx, store.ListFilter{Limit: statsRecent})
		if err != nil {
			return fmt.Errorf("failed to list applications: %w", err)
		}
		printer.PrintApplications(apps)
	}
	return nil
}
