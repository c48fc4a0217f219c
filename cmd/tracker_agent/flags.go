package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/application-tracker/internal/config"
)

// configFlags are the overrides shared by every command that loads configuration.
// Only flags the user explicitly set replace loaded values.
type configFlags struct {
	configPath string
	dbURL      string
	store      string
	verbose    bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to YAML config file (values can be overridden by other flags)")
	cmd.Flags().StringVar(&f.dbURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	cmd.Flags().StringVar(&f.store, "store", "", "Application store: postgres or memory")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print detailed progress and debug logs")
}

func (f *configFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("db-url") {
		cfg.Database.URL = f.dbURL
	}
	if cmd.Flags().Changed("store") {
		cfg.Database.Store = f.store
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Run.Verbose = f.verbose
	}
	if cfg.Run.Verbose {
		cfg.Log.Level = "debug"
	}
}

// runFlags are the pipeline overrides used by run and serve
type runFlags struct {
	mode      string
	interval  string
	cron      string
	days      int
	emailMode string
	source    string
	maildir   string
	apiKey    string
	provider  string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "", "Run mode: once, continuous or scheduled")
	cmd.Flags().StringVar(&f.interval, "interval", "", "Delay between runs in continuous mode, e.g. 1h")
	cmd.Flags().StringVar(&f.cron, "cron", "", "Cron schedule for scheduled mode, e.g. \"@every 1h\"")
	cmd.Flags().IntVar(&f.days, "days", 0, "Lookback window in days for recent mode")
	cmd.Flags().StringVar(&f.emailMode, "email-mode", "", "Which emails to fetch: recent, unread or all")
	cmd.Flags().StringVar(&f.source, "source", "", "Email source: imap or maildir")
	cmd.Flags().StringVar(&f.maildir, "maildir", "", "Directory of .eml files for the maildir source")
	cmd.Flags().StringVar(&f.provider, "provider", "", "LLM provider: gemini or openai")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY / OPENAI_API_KEY
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "LLM API key (defaults to GEMINI_API_KEY or OPENAI_API_KEY)")
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Run.Mode = f.mode
	}
	if flags.Changed("interval") {
		d, err := parseDuration(f.interval)
		if err != nil {
			return fmt.Errorf("invalid --interval: %w", err)
		}
		cfg.Run.Interval = d
	}
	if flags.Changed("cron") {
		cfg.Run.Cron = f.cron
	}
	if flags.Changed("days") {
		cfg.Run.Days = f.days
	}
	if flags.Changed("email-mode") {
		cfg.Run.EmailMode = f.emailMode
	}
	if flags.Changed("source") {
		cfg.Source.Kind = f.source
	}
	if flags.Changed("maildir") {
		cfg.Source.Maildir = f.maildir
		if !flags.Changed("source") {
			cfg.Source.Kind = "maildir"
		}
	}
	if flags.Changed("provider") {
		cfg.LLM.Provider = f.provider
	}
	if flags.Changed("api-key") {
		cfg.LLM.APIKey = f.apiKey
	}
	return nil
}

// loadConfig loads the file and environment, then applies explicitly set flags
func loadConfig(cmd *cobra.Command, cf *configFlags, rf *runFlags) (*config.Config, error) {
	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cf.apply(cmd, cfg)
	if rf != nil {
		if err := rf.apply(cmd, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
