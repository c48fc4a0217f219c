package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/store"
	"github.com/jonathan/application-tracker/internal/types"
)

func item(id string, status types.Status, cat types.Category) Item {
	return Item{
		Message: types.Message{ID: id, Subject: "Update " + id, Sender: "jobs@acme.io"},
		Classification: types.Classification{
			IsJobRelated: true,
			Category:     cat,
			Confidence:   0.9,
		},
		Record: types.ExtractedRecord{
			CompanyName: "Acme",
			RoleTitle:   "Engineer",
			Status:      status,
			Notes:       "note " + id,
		},
	}
}

func newPersister(s store.Store) *Persister {
	return New(s, WithClock(func() time.Time { return testNow }))
}

func onlyApp(t *testing.T, s store.Store) types.ApplicationRecord {
	t.Helper()
	apps, err := s.ListApplications(context.Background(), store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	return apps[0]
}

func TestPersist_CreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	p := newPersister(s)

	first := p.Persist(ctx, item("m1", types.StatusApplied, types.CategoryApplicationConfirmation))
	assert.Equal(t, OutcomePersistedNew, first.Outcome)
	assert.NotEqual(t, uuid.Nil, first.ApplicationID)
	assert.NoError(t, first.Err)

	second := p.Persist(ctx, item("m2", types.StatusInterviewScheduled, types.CategoryInterviewRequest))
	assert.Equal(t, OutcomePersistedUpdated, second.Outcome)
	assert.Equal(t, first.ApplicationID, second.ApplicationID)

	app := onlyApp(t, s)
	assert.Equal(t, types.StatusInterviewScheduled, app.Status)
	require.Len(t, app.Notes, 2)
	assert.Equal(t, "note m1", app.Notes[0].Text)
	assert.Equal(t, "note m2", app.Notes[1].Text)

	entry, ok := s.LedgerEntry("m2")
	require.True(t, ok)
	require.NotNil(t, entry.ApplicationID)
	assert.Equal(t, first.ApplicationID, *entry.ApplicationID)
	assert.Equal(t, types.CategoryInterviewRequest, entry.Category)
	assert.True(t, entry.IsJobRelated)
}

func TestPersist_NoRegression(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	p := newPersister(s)

	p.Persist(ctx, item("m1", types.StatusInterviewScheduled, types.CategoryInterviewRequest))
	res := p.Persist(ctx, item("m2", types.StatusApplied, types.CategoryApplicationConfirmation))
	assert.Equal(t, OutcomePersistedUpdated, res.Outcome)

	app := onlyApp(t, s)
	assert.Equal(t, types.StatusInterviewScheduled, app.Status)
	assert.Len(t, app.Notes, 2)
}

func TestPersist_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	p := newPersister(s)

	it := item("m1", types.StatusApplied, types.CategoryApplicationConfirmation)
	assert.Equal(t, OutcomePersistedNew, p.Persist(ctx, it).Outcome)
	before := onlyApp(t, s)
	statsBefore, err := s.Stats(ctx)
	require.NoError(t, err)

	res := p.Persist(ctx, it)
	assert.Equal(t, OutcomeSkippedDuplicate, res.Outcome)
	assert.NoError(t, res.Err)

	after := onlyApp(t, s)
	assert.Equal(t, before, after)
	statsAfter, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, statsBefore, statsAfter)
}

func TestPersist_Incomplete(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	p := newPersister(s)

	it := item("m1", types.StatusApplied, types.CategoryApplicationConfirmation)
	it.Record.RoleTitle = ""
	res := p.Persist(ctx, it)
	assert.Equal(t, OutcomeSkippedIncomplete, res.Outcome)
	assert.NoError(t, res.Err)

	// not ledgered, so a later run with better extraction can still use the message
	processed, err := s.Processed(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestPersist_IncompleteLoggedAsWarning(t *testing.T) {
	logger, logs := logging.NewObserved()
	p := New(store.NewMemoryStore(), WithLogger(logger))

	it := item("m1", types.StatusApplied, types.CategoryApplicationConfirmation)
	it.Record.CompanyName = ""
	p.Persist(context.Background(), it)

	entries := logs.FilterMessage("skipping record without company or role").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "m1", entries[0].ContextMap()["message_id"])
	assert.Zero(t, logs.FilterMessage("message processed").Len())
}

func TestPersist_RetriesIntegrityConflictOnce(t *testing.T) {
	ctx := context.Background()
	injected := false
	s := store.NewMemoryStore(store.WithCommitHook(func(ctx context.Context, committed store.Tx) error {
		if injected {
			return nil
		}
		injected = true
		// another writer commits the same pair between our lookup and our commit
		_, err := committed.Upsert(ctx, &types.ApplicationRecord{
			CompanyName: "Acme", RoleTitle: "Engineer", Status: types.StatusApplied,
		})
		return err
	}))
	p := newPersister(s)

	res := p.Persist(ctx, item("m1", types.StatusInterviewScheduled, types.CategoryInterviewRequest))
	assert.Equal(t, OutcomePersistedUpdated, res.Outcome)
	assert.NoError(t, res.Err)

	app := onlyApp(t, s)
	assert.Equal(t, types.StatusInterviewScheduled, app.Status)
	processed, err := s.Processed(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, processed)
}

type failingStore struct {
	*store.MemoryStore
	err   error
	calls int
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	f.calls++
	return f.err
}

func TestPersist_StoreFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"integrity retried once", &store.IntegrityError{Message: "dup"}, 2},
		{"transient not retried", &store.TransientError{Message: "conn lost"}, 1},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &failingStore{MemoryStore: store.NewMemoryStore(), err: tt.err}
			logger, logs := logging.NewObserved()
			p := New(fs, WithLogger(logger))

			res := p.Persist(context.Background(), item("m1", types.StatusApplied, types.CategoryApplicationConfirmation))
			assert.Equal(t, OutcomeFailed, res.Outcome)
			require.Error(t, res.Err)
			assert.ErrorIs(t, res.Err, tt.err)
			var pe *PersistError
			assert.True(t, errors.As(res.Err, &pe))
			assert.Equal(t, tt.wantCalls, fs.calls)

			warned := logs.FilterMessage("message not persisted").All()
			require.Len(t, warned, 1)
			assert.Equal(t, "failed-reported", warned[0].ContextMap()["outcome"])
		})
	}
}

func TestPersistBatch_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	p := newPersister(s)

	incomplete := item("m2", types.StatusApplied, types.CategoryGeneral)
	incomplete.Record.CompanyName = ""
	other := item("m3", types.StatusRejected, types.CategoryRejection)
	other.Record.CompanyName = "Globex"

	results := p.PersistBatch(ctx, []Item{
		item("m1", types.StatusApplied, types.CategoryApplicationConfirmation),
		incomplete,
		other,
		item("m1", types.StatusApplied, types.CategoryApplicationConfirmation),
	})
	require.Len(t, results, 4)
	assert.Equal(t, OutcomePersistedNew, results[0].Outcome)
	assert.Equal(t, OutcomeSkippedIncomplete, results[1].Outcome)
	assert.Equal(t, OutcomePersistedNew, results[2].Outcome)
	assert.Equal(t, OutcomeSkippedDuplicate, results[3].Outcome)
}

func TestRecordIgnored(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	p := New(s, WithLogger(zap.NewNop()))

	msg := types.Message{ID: "news1", Subject: "Weekly digest", Sender: "news@example.com"}
	cls := types.Classification{Category: types.CategoryNotJobRelated}

	res := p.RecordIgnored(ctx, msg, cls)
	assert.Equal(t, OutcomeSkippedNotJobRelated, res.Outcome)

	entry, ok := s.LedgerEntry("news1")
	require.True(t, ok)
	assert.Nil(t, entry.ApplicationID)
	assert.False(t, entry.IsJobRelated)
	assert.Equal(t, types.CategoryNotJobRelated, entry.Category)

	again := p.RecordIgnored(ctx, msg, cls)
	assert.Equal(t, OutcomeSkippedDuplicate, again.Outcome)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalApplications)
}
