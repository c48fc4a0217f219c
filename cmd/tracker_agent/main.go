// Package main provides the tracker_agent CLI, which turns job-search emails into tracked applications.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tracker_agent",
	Short: "Job application tracker",
	Long: `Reads a mailbox, classifies job-search emails with an LLM, extracts company, role and status,
and keeps one record per application up to date in PostgreSQL.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
