package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/application-tracker/internal/db"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the database tables",
	Long:  `Creates the applications, processed_messages and run_leases tables. Safe to run more than once.`,
	RunE:  runInitDB,
}

var initDBConfig configFlags

func init() {
	initDBConfig.register(initDBCmd)
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &initDBConfig, nil)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("config error: 'database.url' is required (set --db-url or DATABASE_URL)")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	_, _ = fmt.Fprintln(os.Stdout, "Database schema is up to date")
	return nil
}
