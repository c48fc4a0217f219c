// Package ingest merges extracted application records into the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/store"
	"github.com/jonathan/application-tracker/internal/types"
)

// Outcome is the terminal state of one message
type Outcome string

// Outcome values. Every message handed to the pipeline ends in exactly one.
const (
	OutcomeSkippedDuplicate     Outcome = "skipped-duplicate"
	OutcomeSkippedIncomplete    Outcome = "skipped-incomplete"
	OutcomeSkippedNotJobRelated Outcome = "skipped-not-job-related"
	OutcomePersistedNew         Outcome = "persisted-new"
	OutcomePersistedUpdated     Outcome = "persisted-updated"
	OutcomeFailed               Outcome = "failed-reported"
)

// Outcomes lists every outcome in reporting order
var Outcomes = []Outcome{
	OutcomePersistedNew,
	OutcomePersistedUpdated,
	OutcomeSkippedDuplicate,
	OutcomeSkippedIncomplete,
	OutcomeSkippedNotJobRelated,
	OutcomeFailed,
}

// Result is what happened to one message
type Result struct {
	MessageID     string
	Outcome       Outcome
	ApplicationID uuid.UUID
	Company       string
	Role          string
	Err           error
}

// Item is one message ready for persistence
type Item struct {
	Message        types.Message
	Classification types.Classification
	Record         types.ExtractedRecord
}

// PersistError wraps a store failure for one message
type PersistError struct {
	MessageID string
	Cause     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist message %s: %v", e.MessageID, e.Cause)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}

// Persister applies the merge policy inside one store transaction per message
type Persister struct {
	store  store.Store
	policy types.StatusPolicy
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Persister
type Option func(*Persister)

// WithPolicy sets the status priority policy
func WithPolicy(policy types.StatusPolicy) Option {
	return func(p *Persister) { p.policy = policy }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Persister) { p.logger = logging.OrNop(logger) }
}

// WithClock overrides the note timestamp clock
func WithClock(now func() time.Time) Option {
	return func(p *Persister) { p.now = now }
}

// New creates a Persister on top of s
func New(s store.Store, opts ...Option) *Persister {
	p := &Persister{
		store:  s,
		policy: types.DefaultStatusPolicy(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persist merges one extracted record. It never returns an error; failures
// are reported through Result.Outcome and Result.Err.
func (p *Persister) Persist(ctx context.Context, item Item) Result {
	res := Result{
		MessageID: item.Message.ID,
		Company:   strings.TrimSpace(item.Record.CompanyName),
		Role:      strings.TrimSpace(item.Record.RoleTitle),
	}

	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		res.Outcome, res.ApplicationID, err = p.persistOnce(ctx, item)
		// a concurrent writer created the same (company, role); the retry takes the update path
		if err == nil || !store.IsIntegrity(err) || attempt == 2 {
			break
		}
		p.logger.Debug("integrity conflict, retrying",
			zap.String("message_id", item.Message.ID), zap.Error(err))
	}

	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateMessage):
		res.Outcome = OutcomeSkippedDuplicate
	case errors.Is(err, store.ErrIncompleteRecord):
		res.Outcome = OutcomeSkippedIncomplete
	default:
		res.Outcome = OutcomeFailed
		res.Err = &PersistError{MessageID: item.Message.ID, Cause: err}
	}

	p.log(res, item.Classification.Category)
	return res
}

func (p *Persister) persistOnce(ctx context.Context, item Item) (Outcome, uuid.UUID, error) {
	var (
		outcome Outcome
		id      uuid.UUID
	)
	err := p.store.WithinTx(ctx, func(tx store.Tx) error {
		seen, err := tx.LedgerContains(ctx, item.Message.ID)
		if err != nil {
			return err
		}
		if seen {
			return store.ErrDuplicateMessage
		}
		if !item.Record.Complete() {
			return store.ErrIncompleteRecord
		}

		now := p.now()
		company := strings.TrimSpace(item.Record.CompanyName)
		role := strings.TrimSpace(item.Record.RoleTitle)
		existing, err := tx.FindByCompanyRole(ctx, company, role)
		if err != nil {
			return err
		}

		var app *types.ApplicationRecord
		if existing == nil {
			app = NewApplication(item.Message, item.Classification, item.Record, now)
			outcome = OutcomePersistedNew
		} else {
			app = existing
			ApplyUpdate(p.policy, app, item.Message, item.Classification, item.Record, now)
			outcome = OutcomePersistedUpdated
		}

		id, err = tx.Upsert(ctx, app)
		if err != nil {
			return err
		}
		return tx.LedgerRecord(ctx, ledgerEntry(item.Message, item.Classification, &id, now))
	})
	return outcome, id, err
}

// PersistBatch persists items in order; one failure never stops the rest
func (p *Persister) PersistBatch(ctx context.Context, items []Item) []Result {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, p.Persist(ctx, item))
	}
	return results
}

// RecordIgnored ledgers a message classified as not job related so it is not classified again
func (p *Persister) RecordIgnored(ctx context.Context, msg types.Message, cls types.Classification) Result {
	res := Result{MessageID: msg.ID, Outcome: OutcomeSkippedNotJobRelated}
	err := p.store.WithinTx(ctx, func(tx store.Tx) error {
		return tx.LedgerRecord(ctx, ledgerEntry(msg, cls, nil, p.now()))
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateMessage):
		res.Outcome = OutcomeSkippedDuplicate
	default:
		res.Outcome = OutcomeFailed
		res.Err = &PersistError{MessageID: msg.ID, Cause: err}
	}
	p.log(res, cls.Category)
	return res
}

func ledgerEntry(msg types.Message, cls types.Classification, appID *uuid.UUID, now time.Time) types.LedgerEntry {
	return types.LedgerEntry{
		MessageID:     msg.ID,
		Subject:       msg.Subject,
		Sender:        msg.Sender,
		ReceivedAt:    msg.Date,
		Category:      cls.Category,
		IsJobRelated:  cls.IsJobRelated,
		ApplicationID: appID,
		ProcessedAt:   now,
	}
}

func (p *Persister) log(res Result, category types.Category) {
	fields := []zap.Field{
		zap.String("message_id", res.MessageID),
		zap.String("category", string(category)),
		zap.String("outcome", string(res.Outcome)),
	}
	if res.Company != "" || res.Role != "" {
		fields = append(fields, zap.String("company", res.Company), zap.String("role", res.Role))
	}
	switch {
	case res.Err != nil:
		p.logger.Warn("message not persisted", append(fields, zap.Error(res.Err))...)
	case res.Outcome == OutcomeSkippedIncomplete:
		p.logger.Warn("skipping record without company or role", fields...)
	default:
		p.logger.Info("message processed", fields...)
	}
}
