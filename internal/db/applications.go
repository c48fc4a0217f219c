package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/application-tracker/internal/store"
	"github.com/jonathan/application-tracker/internal/types"
)

const applicationColumns = `id, company_name, role_title, status, location, salary_range, application_url,
	application_date, notes, metadata, created_at, updated_at`

// pgTx implements store.Tx on a pgx transaction
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LedgerContains(ctx context.Context, messageID string) (bool, error) {
	return ledgerContains(ctx, t.tx, messageID)
}

// FindByCompanyRole locks the matching row for the rest of the transaction
func (t *pgTx) FindByCompanyRole(ctx context.Context, company, role string) (*types.ApplicationRecord, error) {
	rec, err := scanApplication(t.tx.QueryRow(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications WHERE company_name = $1 AND role_title = $2
		 FOR UPDATE`,
		company, role,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError("find application", err)
	}
	return rec, nil
}

func (t *pgTx) Upsert(ctx context.Context, rec *types.ApplicationRecord) (uuid.UUID, error) {
	if strings.TrimSpace(rec.CompanyName) == "" || strings.TrimSpace(rec.RoleTitle) == "" {
		return uuid.Nil, store.ErrIncompleteRecord
	}

	notes, err := json.Marshal(nonNilNotes(rec.Notes))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal notes: %w", err)
	}
	metadata, err := json.Marshal(nonNilMetadata(rec.Metadata))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if rec.ID == uuid.Nil {
		id := uuid.New()
		_, err = t.tx.Exec(ctx,
			`INSERT INTO applications (id, company_name, role_title, status, location, salary_range,
			     application_url, application_date, notes, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, rec.CompanyName, rec.RoleTitle, string(rec.Status), rec.Location, rec.SalaryRange,
			rec.ApplicationURL, rec.ApplicationDate, notes, metadata,
		)
		if err != nil {
			return uuid.Nil, mapError("insert application", err)
		}
		return id, nil
	}

	tag, err := t.tx.Exec(ctx,
		`UPDATE applications SET
		     company_name = $2, role_title = $3, status = $4, location = $5, salary_range = $6,
		     application_url = $7, application_date = $8, notes = $9, metadata = $10,
		     updated_at = NOW()
		 WHERE id = $1`,
		rec.ID, rec.CompanyName, rec.RoleTitle, string(rec.Status), rec.Location, rec.SalaryRange,
		rec.ApplicationURL, rec.ApplicationDate, notes, metadata,
	)
	if err != nil {
		return uuid.Nil, mapError("update application", err)
	}
	if tag.RowsAffected() == 0 {
		return uuid.Nil, &store.IntegrityError{Message: "update of unknown application " + rec.ID.String()}
	}
	return rec.ID, nil
}

func (t *pgTx) LedgerRecord(ctx context.Context, entry types.LedgerEntry) error {
	processedAt := entry.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO processed_messages (message_id, subject, sender, received_at, category,
		     is_job_related, application_id, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (message_id) DO NOTHING`,
		entry.MessageID, entry.Subject, entry.Sender, nullTime(entry.ReceivedAt), string(entry.Category),
		entry.IsJobRelated, entry.ApplicationID, processedAt,
	)
	if err != nil {
		return mapError("record ledger entry", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicateMessage
	}
	return nil
}

// ListApplications returns applications, most recently updated first
func (db *DB) ListApplications(ctx context.Context, filter store.ListFilter) ([]types.ApplicationRecord, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY updated_at DESC, company_name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list applications", err)
	}
	defer rows.Close()

	var apps []types.ApplicationRecord
	for rows.Next() {
		rec, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list applications", err)
	}
	return apps, nil
}

// Stats counts applications by status and processed messages
func (db *DB) Stats(ctx context.Context) (*types.Stats, error) {
	stats := &types.Stats{ByStatus: make(map[types.Status]int)}

	rows, err := db.pool.Query(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, mapError("count applications", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus[types.Status(status)] = count
		stats.TotalApplications += count
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("count applications", err)
	}

	err = db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM processed_messages`).Scan(&stats.ProcessedMessages)
	if err != nil {
		return nil, mapError("count processed messages", err)
	}
	return stats, nil
}

func scanApplication(row pgx.Row) (*types.ApplicationRecord, error) {
	var rec types.ApplicationRecord
	var status string
	var notes, metadata []byte
	err := row.Scan(&rec.ID, &rec.CompanyName, &rec.RoleTitle, &status, &rec.Location, &rec.SalaryRange,
		&rec.ApplicationURL, &rec.ApplicationDate, &notes, &metadata, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = types.Status(status)
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &rec.Notes); err != nil {
			return nil, fmt.Errorf("failed to decode notes: %w", err)
		}
	}
	rec.Metadata = map[string]string{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &rec, nil
}

func nonNilNotes(notes []types.Note) []types.Note {
	if notes == nil {
		return []types.Note{}
	}
	return notes
}

func nonNilMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
