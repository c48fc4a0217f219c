// Package pipeline orchestrates one ingestion run: fetch, classify, filter, extract, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/ingest"
	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/mail"
	"github.com/jonathan/application-tracker/internal/metrics"
	"github.com/jonathan/application-tracker/internal/store"
	"github.com/jonathan/application-tracker/internal/types"
)

// ErrRunInProgress means another run holds the lease; the run was skipped
var ErrRunInProgress = errors.New("another run is in progress")

// DefaultLeaseName is the lease every ingestion run competes for
const DefaultLeaseName = "ingest"

// Stage names used in progress events
const (
	StageFetch    = "fetch"
	StageClassify = "classify"
	StageExtract  = "extract"
	StagePersist  = "persist"
)

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// ProgressCallback is called when run progress occurs
type ProgressCallback func(event ProgressEvent)

// Classifier labels messages. Implementations never fail; failures come back as error classifications.
type Classifier interface {
	ClassifyBatch(ctx context.Context, msgs []types.Message) []types.Classification
}

// Extractor pulls application fields out of job related messages. Implementations never fail.
type Extractor interface {
	ExtractBatch(ctx context.Context, msgs []types.Message, cls []types.Classification) []types.ExtractedRecord
}

// Persister merges records into the store
type Persister interface {
	Persist(ctx context.Context, item ingest.Item) ingest.Result
	RecordIgnored(ctx context.Context, msg types.Message, cls types.Classification) ingest.Result
}

// Ledger answers whether a message was already processed
type Ledger interface {
	Processed(ctx context.Context, messageID string) (bool, error)
}

// Deps are the capabilities a run needs
type Deps struct {
	Source     mail.Source
	Classifier Classifier
	Extractor  Extractor
	Persister  Persister
	Ledger     Ledger           // optional; skips already processed messages before classification
	Leases     store.LeaseStore // optional; prevents overlapping runs
}

// RunOptions holds configuration for a single run
type RunOptions struct {
	Query      mail.FetchQuery
	OnProgress ProgressCallback
}

// RunSummary reports what a run did
type RunSummary struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time

	Fetched    int
	JobRelated int
	Created    int
	Updated    int
	Outcomes   map[ingest.Outcome]int
	Errors     []string

	// Skipped is set when another run held the lease
	Skipped bool
	// Fatal is set when the run could not start; per-message failures never set it
	Fatal error
}

// Saved is the number of applications created or updated
func (s *RunSummary) Saved() int {
	return s.Created + s.Updated
}

// Duration is the wall time of the run
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *RunSummary) addError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

func (s *RunSummary) record(outcome ingest.Outcome) {
	s.Outcomes[outcome]++
	switch outcome {
	case ingest.OutcomePersistedNew:
		s.Created++
	case ingest.OutcomePersistedUpdated:
		s.Updated++
	}
	metrics.MessagesTotal.WithLabelValues(string(outcome)).Inc()
}

// Orchestrator runs the ingestion pipeline
type Orchestrator struct {
	deps      Deps
	logger    *zap.Logger
	leaseName string
	leaseTTL  time.Duration
	now       func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

// WithLease sets the lease name and how long a run may hold it
func WithLease(name string, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.leaseName = name
		}
		if ttl > 0 {
			o.leaseTTL = ttl
		}
	}
}

// WithClock overrides the clock
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. Source, Classifier, Extractor and Persister are required.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pipeline: email source is required")
	case deps.Classifier == nil:
		return nil, errors.New("pipeline: classifier is required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Persister == nil:
		return nil, errors.New("pipeline: persister is required")
	}

	o := &Orchestrator{
		deps:      deps,
		logger:    zap.NewNop(),
		leaseName: DefaultLeaseName,
		leaseTTL:  30 * time.Minute,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes one pass. It always returns a summary; Fatal is set only when the run could not start.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) *RunSummary {
	summary := &RunSummary{
		RunID:     uuid.New(),
		StartedAt: o.now(),
		Outcomes:  make(map[ingest.Outcome]int),
	}
	logger := o.logger.With(zap.String("run_id", summary.RunID.String()))
	emit := func(stage, format string, args ...any) {
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressEvent{Stage: stage, Message: fmt.Sprintf(format, args...), RunID: summary.RunID.String()})
		}
	}
	defer func() {
		summary.FinishedAt = o.now()
		metrics.ObserveRun(runResult(summary), summary.Duration(), summary.FinishedAt)
		logger.Info("run finished",
			zap.Int("fetched", summary.Fetched),
			zap.Int("job_related", summary.JobRelated),
			zap.Int("created", summary.Created),
			zap.Int("updated", summary.Updated),
			zap.Int("errors", len(summary.Errors)),
			zap.Duration("duration", summary.Duration()))
	}()

	if o.deps.Leases != nil {
		lease, err := o.deps.Leases.AcquireLease(ctx, o.leaseName, o.leaseTTL)
		if errors.Is(err, store.ErrLeaseHeld) {
			summary.Skipped = true
			summary.addError("%v", ErrRunInProgress)
			logger.Warn("run skipped", zap.Error(ErrRunInProgress))
			return summary
		}
		if err != nil {
			summary.Fatal = fmt.Errorf("failed to acquire run lease: %w", err)
			summary.addError("%v", summary.Fatal)
			return summary
		}
		defer func() {
			// the run context may already be cancelled
			if err := o.deps.Leases.ReleaseLease(context.WithoutCancel(ctx), lease); err != nil {
				logger.Warn("failed to release run lease", zap.Error(err))
			}
		}()
	}

	msgs := o.fetch(ctx, opts.Query, summary, logger)
	summary.Fetched = len(msgs)
	emit(StageFetch, "Fetched %d messages", len(msgs))
	if len(msgs) == 0 {
		return summary
	}

	msgs = o.skipProcessed(ctx, msgs, summary, logger)

	// Classification
	classifications := o.deps.Classifier.ClassifyBatch(ctx, msgs)
	var jobMsgs []types.Message
	var jobCls []types.Classification
	for i, msg := range msgs {
		cls := classifications[i]
		metrics.ObserveLLM("classification", cls.Failed())
		switch {
		case cls.Failed():
			// left out of the ledger so the next run classifies it again
			summary.record(ingest.OutcomeFailed)
			summary.addError("%s: %s", msg.ID, cls.Rationale)
		case !cls.IsJobRelated:
			res := o.deps.Persister.RecordIgnored(ctx, msg, cls)
			o.recordResult(summary, res)
		default:
			jobMsgs = append(jobMsgs, msg)
			jobCls = append(jobCls, cls)
		}
	}
	summary.JobRelated = len(jobMsgs)
	emit(StageClassify, "Found %d job related messages", len(jobMsgs))
	if len(jobMsgs) == 0 {
		return summary
	}

	// Extraction
	records := o.deps.Extractor.ExtractBatch(ctx, jobMsgs, jobCls)
	for _, rec := range records {
		metrics.ObserveLLM("extraction", rec.Fallback)
	}
	emit(StageExtract, "Extracted %d records", len(records))

	// Persistence
	for i, msg := range jobMsgs {
		res := o.deps.Persister.Persist(ctx, ingest.Item{
			Message:        msg,
			Classification: jobCls[i],
			Record:         records[i],
		})
		o.recordResult(summary, res)
	}
	emit(StagePersist, "Saved %d applications (%d new, %d updated)", summary.Saved(), summary.Created, summary.Updated)

	return summary
}

func (o *Orchestrator) fetch(ctx context.Context, q mail.FetchQuery, summary *RunSummary, logger *zap.Logger) []types.Message {
	if err := o.deps.Source.Connect(ctx); err != nil {
		summary.addError("email source: %v", err)
		logger.Error("failed to connect to email source", zap.Error(err))
		return nil
	}
	defer func() {
		if err := o.deps.Source.Disconnect(); err != nil {
			logger.Warn("failed to disconnect from email source", zap.Error(err))
		}
	}()

	if q.Now.IsZero() {
		q.Now = o.now()
	}
	msgs, err := o.deps.Source.Fetch(ctx, q)
	if err != nil {
		summary.addError("email source: %v", err)
		logger.Error("failed to fetch messages", zap.Error(err))
		return nil
	}
	return msgs
}

// skipProcessed drops ledgered messages before they cost a model call
func (o *Orchestrator) skipProcessed(ctx context.Context, msgs []types.Message, summary *RunSummary, logger *zap.Logger) []types.Message {
	if o.deps.Ledger == nil {
		return msgs
	}
	fresh := msgs[:0:0]
	for _, msg := range msgs {
		seen, err := o.deps.Ledger.Processed(ctx, msg.ID)
		if err != nil {
			// the persist stage checks the ledger again inside its transaction
			logger.Warn("ledger pre-check failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
		if seen {
			summary.record(ingest.OutcomeSkippedDuplicate)
			logger.Debug("message already processed", zap.String("message_id", msg.ID))
			continue
		}
		fresh = append(fresh, msg)
	}
	return fresh
}

func (o *Orchestrator) recordResult(summary *RunSummary, res ingest.Result) {
	summary.record(res.Outcome)
	switch {
	case res.Err != nil:
		summary.addError("%v", res.Err)
	case res.Outcome == ingest.OutcomeSkippedIncomplete:
		summary.addError("%s: missing company or role", res.MessageID)
	}
}

func runResult(s *RunSummary) string {
	switch {
	case s.Fatal != nil:
		return metrics.RunFatal
	case s.Skipped:
		return metrics.RunSkipped
	case len(s.Errors) > 0:
		return metrics.RunErrors
	default:
		return metrics.RunSuccess
	}
}
