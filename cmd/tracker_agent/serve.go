package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API while running the pipeline on a schedule",
	Long: `Starts an HTTP server exposing /healthz, /metrics, /applications and /stats.
The pipeline runs alongside it in the configured mode; once mode becomes scheduled so the
server keeps ingesting. Pass --no-pipeline to serve the API only.`,
	RunE: runServe,
}

var (
	serveConfig     configFlags
	serveOpts       runFlags
	serveAddr       string
	serveNoPipeline bool
)

func init() {
	serveConfig.register(serveCmd)
	serveOpts.register(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (defaults to server.addr, :8080)")
	serveCmd.Flags().BoolVar(&serveNoPipeline, "no-pipeline", false, "Serve the API without running the pipeline")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &serveConfig, &serveOpts)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if cfg.Run.Mode == "once" {
		cfg.Run.Mode = "scheduled"
	}
	if serveNoPipeline {
		err = cfg.ValidateStore()
	} else {
		err = cfg.ValidateForRun()
	}
	if err != nil {
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

	g, gctx := errgroup.WithContext(ctx)

	srv := server.New(server.Config{Addr: cfg.Server.Addr}, st, logger.Named("http"))
	g.Go(func() error { return srv.Start(gctx) })

	if !serveNoPipeline {
		deps, err := newPipeline(gctx, cfg, st, logger)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		defer func() { _ = deps.Close() }()

		g.Go(func() error { return schedule(gctx, cfg, deps, logger) })
	}

	return g.Wait()
}
