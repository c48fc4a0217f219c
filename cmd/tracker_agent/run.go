package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/config"
	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/observability"
	"github.com/jonathan/application-tracker/internal/pipeline"
	"github.com/jonathan/application-tracker/internal/scheduler"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Fetch emails and update tracked applications",
	Long: `Fetches emails, classifies them, extracts application details and merges them into the store.

Configuration is loaded from --config (YAML), then environment variables; command-line flags override both.
In once mode the command exits non-zero only when the run could not start. Continuous and scheduled
modes keep running until interrupted.`,
	RunE: runPipelineCmd,
}

var (
	runConfig configFlags
	runOpts   runFlags
)

func init() {
	runConfig.register(runCommand)
	runOpts.register(runCommand)
	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &runConfig, &runOpts)
	if err != nil {
		return err
	}
	if err := cfg.ValidateForRun(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	deps, err := newPipeline(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	return schedule(ctx, cfg, deps, logger)
}

// schedule runs the pipeline in the configured mode, printing a summary after every run
func schedule(ctx context.Context, cfg *config.Config, deps *pipelineDeps, logger *zap.Logger) error {
	printer := observability.NewPrinter(os.Stdout)

	var onProgress pipeline.ProgressCallback
	if cfg.Run.Verbose {
		onProgress = printer.PrintProgress
	}

	run := func(ctx context.Context) error {
		summary := deps.orchestrator.Run(ctx, pipeline.RunOptions{
			Query:      deps.query,
			OnProgress: onProgress,
		})
		printer.PrintRunSummary(summary)
		return summary.Fatal
	}

	mode, err := scheduler.ParseMode(cfg.Run.Mode)
	if err != nil {
		return err
	}
	logger.Info("starting tracker",
		zap.String("mode", string(mode)),
		zap.String("source", cfg.Source.Kind),
		zap.String("store", cfg.Database.Store),
		zap.String("llm_provider", cfg.LLM.Provider),
	)
	return scheduler.New(run, logger.Named("scheduler")).Run(ctx, mode, cfg.Run.Interval, cfg.Run.Cron)
}
