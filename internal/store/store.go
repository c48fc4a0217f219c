// Package store defines the application store contract shared by the Postgres and in-memory implementations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/application-tracker/internal/types"
)

// Tx is a unit of work. Everything done through a Tx commits or rolls back together.
type Tx interface {
	// LedgerContains reports whether messageID has already been processed
	LedgerContains(ctx context.Context, messageID string) (bool, error)
	// FindByCompanyRole returns the application with exactly this company and role, or nil
	FindByCompanyRole(ctx context.Context, company, role string) (*types.ApplicationRecord, error)
	// Upsert inserts rec when its ID is uuid.Nil, else updates it; returns the ID
	Upsert(ctx context.Context, rec *types.ApplicationRecord) (uuid.UUID, error)
	// LedgerRecord marks a message as processed; recording the same ID twice is ErrDuplicateMessage
	LedgerRecord(ctx context.Context, entry types.LedgerEntry) error
}

// ListFilter narrows ListApplications
type ListFilter struct {
	Status types.Status // empty means any
	Limit  int          // 0 means no limit
}

// Store is the durable application store
type Store interface {
	LeaseStore

	// WithinTx runs fn in a transaction, committing when fn returns nil
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// Processed reports whether messageID is in the ledger, outside any transaction
	Processed(ctx context.Context, messageID string) (bool, error)
	// ListApplications returns applications ordered by most recently updated
	ListApplications(ctx context.Context, filter ListFilter) ([]types.ApplicationRecord, error)
	// Stats summarises the store
	Stats(ctx context.Context) (*types.Stats, error)
	// Ping checks the store is reachable
	Ping(ctx context.Context) error
	// Close releases resources
	Close()
}

// Lease grants exclusive use of a named run until ExpiresAt
type Lease struct {
	Name      string
	Holder    uuid.UUID
	ExpiresAt time.Time
}

// LeaseStore hands out run leases so two runs never overlap
type LeaseStore interface {
	// AcquireLease takes the named lease for ttl; ErrLeaseHeld when another holder has it
	AcquireLease(ctx context.Context, name string, ttl time.Duration) (*Lease, error)
	// ReleaseLease gives the lease up; releasing an expired or stolen lease is not an error
	ReleaseLease(ctx context.Context, lease *Lease) error
}
