package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/application-tracker/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantIntegrity bool
		wantTransient bool
	}{
		{
			name:          "unique violation",
			err:           &pgconn.PgError{Code: "23505", ConstraintName: "applications_company_role_key"},
			wantIntegrity: true,
		},
		{
			name:          "foreign key violation",
			err:           &pgconn.PgError{Code: "23503"},
			wantIntegrity: true,
		},
		{
			name:          "serialization failure",
			err:           &pgconn.PgError{Code: "40001"},
			wantTransient: true,
		},
		{
			name:          "deadlock",
			err:           fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}),
			wantTransient: true,
		},
		{
			name:          "admin shutdown",
			err:           &pgconn.PgError{Code: "57P01"},
			wantTransient: true,
		},
		{
			name:          "context deadline",
			err:           context.DeadlineExceeded,
			wantTransient: true,
		},
		{
			name: "syntax error",
			err:  &pgconn.PgError{Code: "42601"},
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError("op", tt.err)
			assert.Equal(t, tt.wantIntegrity, store.IsIntegrity(got))
			assert.Equal(t, tt.wantTransient, store.IsTransient(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.NoError(t, mapError("op", nil))
}

func TestMapError_IntegrityMessageNamesConstraint(t *testing.T) {
	err := mapError("insert application", &pgconn.PgError{Code: "23505", ConstraintName: "applications_company_role_key"})
	assert.Contains(t, err.Error(), "insert application: applications_company_role_key")
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"applications", "processed_messages", "run_leases"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, schemaSQL, "UNIQUE (company_name, role_title)")
}
