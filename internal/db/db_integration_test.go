//go:build integration
// +build integration

package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jonathan/application-tracker/internal/store"
	"github.com/jonathan/application-tracker/internal/types"
)

// setupTestDB connects to TEST_DATABASE_URL when set, otherwise starts a throwaway Postgres container
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		req := testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tracker",
				"POSTGRES_PASSWORD": "tracker",
				"POSTGRES_DB":       "tracker",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			t.Skipf("Skipping integration test: failed to start postgres: %v", err)
		}
		t.Cleanup(func() { _ = container.Terminate(ctx) })

		host, err := container.Host(ctx)
		require.NoError(t, err)
		port, err := container.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dbURL = fmt.Sprintf("postgres://tracker:tracker@%s:%s/tracker?sslmode=disable", host, port.Port())
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := Connect(connectCtx, dbURL)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	// Migrate is idempotent
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(db.Close)
	return db
}

func uniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func TestApplicationLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	db := setupTestDB(t)
	ctx := context.Background()

	company := uniqueName("Acme")
	msgID := uniqueName("<msg") + "@example.com>"
	loc := "Remote"
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var id uuid.UUID
	err := db.WithinTx(ctx, func(tx store.Tx) error {
		found, err := tx.FindByCompanyRole(ctx, company, "Engineer")
		require.NoError(t, err)
		assert.Nil(t, found)

		id, err = tx.Upsert(ctx, &types.ApplicationRecord{
			CompanyName:     company,
			RoleTitle:       "Engineer",
			Status:          types.StatusApplied,
			Location:        &loc,
			ApplicationDate: &date,
			Notes:           []types.Note{{At: date, Category: types.CategoryApplicationConfirmation, Text: "thanks"}},
			Metadata:        map[string]string{types.MetaLastMessageID: msgID},
		})
		if err != nil {
			return err
		}
		return tx.LedgerRecord(ctx, types.LedgerEntry{
			MessageID:     msgID,
			Category:      types.CategoryApplicationConfirmation,
			IsJobRelated:  true,
			ApplicationID: &id,
		})
	})
	require.NoError(t, err)

	processed, err := db.Processed(ctx, msgID)
	require.NoError(t, err)
	assert.True(t, processed)

	err = db.WithinTx(ctx, func(tx store.Tx) error {
		rec, err := tx.FindByCompanyRole(ctx, company, "Engineer")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, id, rec.ID)
		require.NotNil(t, rec.Location)
		assert.Equal(t, "Remote", *rec.Location)
		require.Len(t, rec.Notes, 1)
		assert.Equal(t, "thanks", rec.Notes[0].Text)
		assert.Equal(t, msgID, rec.Metadata[types.MetaLastMessageID])

		rec.Status = types.StatusInterviewScheduled
		_, err = tx.Upsert(ctx, rec)
		return err
	})
	require.NoError(t, err)

	apps, err := db.ListApplications(ctx, store.ListFilter{Status: types.StatusInterviewScheduled})
	require.NoError(t, err)
	var seen bool
	for _, a := range apps {
		if a.ID == id {
			seen = true
			assert.True(t, a.UpdatedAt.After(a.CreatedAt) || a.UpdatedAt.Equal(a.CreatedAt))
		}
	}
	assert.True(t, seen)

	err = db.WithinTx(ctx, func(tx store.Tx) error {
		return tx.LedgerRecord(ctx, types.LedgerEntry{MessageID: msgID, Category: types.CategoryGeneral})
	})
	assert.ErrorIs(t, err, store.ErrDuplicateMessage)
}

func TestRollback_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	db := setupTestDB(t)
	ctx := context.Background()

	msgID := uniqueName("rollback")
	company := uniqueName("Globex")
	boom := fmt.Errorf("boom")

	err := db.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Upsert(ctx, &types.ApplicationRecord{CompanyName: company, RoleTitle: "Analyst", Status: types.StatusApplied}); err != nil {
			return err
		}
		if err := tx.LedgerRecord(ctx, types.LedgerEntry{MessageID: msgID, Category: types.CategoryGeneral}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	processed, err := db.Processed(ctx, msgID)
	require.NoError(t, err)
	assert.False(t, processed)

	err = db.WithinTx(ctx, func(tx store.Tx) error {
		rec, err := tx.FindByCompanyRole(ctx, company, "Analyst")
		require.NoError(t, err)
		assert.Nil(t, rec)
		return nil
	})
	require.NoError(t, err)
}

func TestUniqueCompanyRole_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	db := setupTestDB(t)
	ctx := context.Background()
	company := uniqueName("Initech")

	insert := func() error {
		return db.WithinTx(ctx, func(tx store.Tx) error {
			_, err := tx.Upsert(ctx, &types.ApplicationRecord{CompanyName: company, RoleTitle: "Manager", Status: types.StatusApplied})
			return err
		})
	}
	require.NoError(t, insert())
	err := insert()
	require.Error(t, err)
	assert.True(t, store.IsIntegrity(err))
}

func TestLeases_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	db := setupTestDB(t)
	ctx := context.Background()
	name := uniqueName("ingest")

	first, err := db.AcquireLease(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.True(t, first.ExpiresAt.After(time.Now().Add(-time.Minute)))

	_, err = db.AcquireLease(ctx, name, time.Minute)
	assert.ErrorIs(t, err, store.ErrLeaseHeld)

	require.NoError(t, db.ReleaseLease(ctx, first))
	second, err := db.AcquireLease(ctx, name, time.Millisecond)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	third, err := db.AcquireLease(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, second.Holder, third.Holder)

	// the expired holder cannot release the new lease
	require.NoError(t, db.ReleaseLease(ctx, second))
	_, err = db.AcquireLease(ctx, name, time.Minute)
	assert.ErrorIs(t, err, store.ErrLeaseHeld)
	require.NoError(t, db.ReleaseLease(ctx, third))
}

func TestStats_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	db := setupTestDB(t)
	ctx := context.Background()

	before, err := db.Stats(ctx)
	require.NoError(t, err)

	err = db.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Upsert(ctx, &types.ApplicationRecord{CompanyName: uniqueName("Umbrella"), RoleTitle: "Chemist", Status: types.StatusRejected}); err != nil {
			return err
		}
		return tx.LedgerRecord(ctx, types.LedgerEntry{MessageID: uniqueName("stats"), Category: types.CategoryRejection, IsJobRelated: true})
	})
	require.NoError(t, err)

	after, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalApplications+1, after.TotalApplications)
	assert.Equal(t, before.ByStatus[types.StatusRejected]+1, after.ByStatus[types.StatusRejected])
	assert.Equal(t, before.ProcessedMessages+1, after.ProcessedMessages)
}
