package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/classification"
	"github.com/jonathan/application-tracker/internal/config"
	"github.com/jonathan/application-tracker/internal/db"
	"github.com/jonathan/application-tracker/internal/extraction"
	"github.com/jonathan/application-tracker/internal/ingest"
	"github.com/jonathan/application-tracker/internal/llm"
	"github.com/jonathan/application-tracker/internal/mail"
	"github.com/jonathan/application-tracker/internal/pipeline"
	"github.com/jonathan/application-tracker/internal/store"
)

// openStore connects to the configured store and makes sure the schema exists
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	if cfg.Database.Store == "memory" {
		logger.Warn("using in-memory store; applications are lost on exit")
		return store.NewMemoryStore(), nil
	}

	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return database, nil
}

// newSource builds the configured mailbox
func newSource(cfg *config.Config, logger *zap.Logger) mail.Source {
	if cfg.Source.Kind == "maildir" {
		return mail.NewDirSource(cfg.Source.Maildir, logger.Named("maildir"))
	}
	return mail.NewIMAPSource(cfg.MailConfig(), logger.Named("imap"))
}

// pipelineDeps owns the resources behind an orchestrator
type pipelineDeps struct {
	orchestrator *pipeline.Orchestrator
	query        mail.FetchQuery
	client       llm.Client
}

func (p *pipelineDeps) Close() error {
	return p.client.Close()
}

// newPipeline wires the source, model client, classifier, extractor and persister around st
func newPipeline(ctx context.Context, cfg *config.Config, st store.Store, logger *zap.Logger) (*pipelineDeps, error) {
	query, err := cfg.FetchQuery()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.StatusPolicy()
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(ctx, cfg.ClientConfig(), cfg.LLM.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	orch, err := pipeline.New(pipeline.Deps{
		Source:     newSource(cfg, logger),
		Classifier: classification.New(client, classification.WithLogger(logger.Named("classify"))),
		Extractor:  extraction.New(client, extraction.WithLogger(logger.Named("extract"))),
		Persister: ingest.New(st,
			ingest.WithPolicy(policy),
			ingest.WithLogger(logger.Named("persist")),
		),
		Ledger: st,
		Leases: st,
	},
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithLease(pipeline.DefaultLeaseName, cfg.Run.LeaseTTL),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &pipelineDeps{orchestrator: orch, query: query, client: client}, nil
}
