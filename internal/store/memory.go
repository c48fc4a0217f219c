package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/application-tracker/internal/types"
)

// MemoryStore is an in-process Store used by tests and the dry-run mode.
// Transactions are serialised by a single mutex and staged in overlays that
// are merged only when fn succeeds.
type MemoryStore struct {
	mu     sync.Mutex
	apps   map[uuid.UUID]*types.ApplicationRecord
	ledger map[string]types.LedgerEntry
	leases map[string]Lease

	now        func() time.Time
	beforeSave func(ctx context.Context, committed Tx) error
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for timestamps and lease expiry
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// WithCommitHook runs hook just before a transaction commits; a non-nil error aborts it.
// The Tx given to hook writes straight to committed state, so tests can use it to
// play a concurrent writer that lands first.
func WithCommitHook(hook func(ctx context.Context, committed Tx) error) MemoryOption {
	return func(m *MemoryStore) { m.beforeSave = hook }
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		apps:   make(map[uuid.UUID]*types.ApplicationRecord),
		ledger: make(map[string]types.LedgerEntry),
		leases: make(map[string]Lease),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type memoryTx struct {
	store  *MemoryStore
	apps   map[uuid.UUID]*types.ApplicationRecord
	ledger map[string]types.LedgerEntry
}

// WithinTx implements Store
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return &TransientError{Message: "transaction not started", Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:  m,
		apps:   make(map[uuid.UUID]*types.ApplicationRecord),
		ledger: make(map[string]types.LedgerEntry),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if m.beforeSave != nil {
		direct := &memoryTx{store: m, apps: m.apps, ledger: m.ledger}
		if err := m.beforeSave(ctx, direct); err != nil {
			return err
		}
	}

	// a (company, role) pair may only exist once across committed and staged rows
	for id, rec := range tx.apps {
		for otherID, other := range m.apps {
			if otherID != id && sameKey(other, rec) {
				return &IntegrityError{Message: "duplicate company and role: " + rec.CompanyName + " / " + rec.RoleTitle}
			}
		}
	}
	for id, rec := range tx.apps {
		m.apps[id] = rec
	}
	for msgID, entry := range tx.ledger {
		m.ledger[msgID] = entry
	}
	return nil
}

func sameKey(a, b *types.ApplicationRecord) bool {
	return a.CompanyName == b.CompanyName && a.RoleTitle == b.RoleTitle
}

func (tx *memoryTx) LedgerContains(ctx context.Context, messageID string) (bool, error) {
	if _, ok := tx.ledger[messageID]; ok {
		return true, nil
	}
	_, ok := tx.store.ledger[messageID]
	return ok, nil
}

func (tx *memoryTx) FindByCompanyRole(ctx context.Context, company, role string) (*types.ApplicationRecord, error) {
	for _, rec := range tx.apps {
		if rec.CompanyName == company && rec.RoleTitle == role {
			return rec.Clone(), nil
		}
	}
	for id, rec := range tx.store.apps {
		if _, staged := tx.apps[id]; staged {
			continue
		}
		if rec.CompanyName == company && rec.RoleTitle == role {
			return rec.Clone(), nil
		}
	}
	return nil, nil
}

func (tx *memoryTx) Upsert(ctx context.Context, rec *types.ApplicationRecord) (uuid.UUID, error) {
	if strings.TrimSpace(rec.CompanyName) == "" || strings.TrimSpace(rec.RoleTitle) == "" {
		return uuid.Nil, ErrIncompleteRecord
	}

	now := tx.store.now()
	saved := rec.Clone()
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
		saved.CreatedAt = now
	} else if _, ok := tx.store.apps[saved.ID]; !ok {
		if _, staged := tx.apps[saved.ID]; !staged {
			return uuid.Nil, &IntegrityError{Message: "update of unknown application " + saved.ID.String()}
		}
	}
	saved.UpdatedAt = now
	tx.apps[saved.ID] = saved
	return saved.ID, nil
}

func (tx *memoryTx) LedgerRecord(ctx context.Context, entry types.LedgerEntry) error {
	if exists, _ := tx.LedgerContains(ctx, entry.MessageID); exists {
		return ErrDuplicateMessage
	}
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = tx.store.now()
	}
	tx.ledger[entry.MessageID] = entry
	return nil
}

// Processed implements Store
func (m *MemoryStore) Processed(ctx context.Context, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ledger[messageID]
	return ok, nil
}

// LedgerEntry returns the ledger entry for messageID, if any
func (m *MemoryStore) LedgerEntry(messageID string) (types.LedgerEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.ledger[messageID]
	return entry, ok
}

// ListApplications implements Store
func (m *MemoryStore) ListApplications(ctx context.Context, filter ListFilter) ([]types.ApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.ApplicationRecord, 0, len(m.apps))
	for _, rec := range m.apps {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, *rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].CompanyName < out[j].CompanyName
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Stats implements Store
func (m *MemoryStore) Stats(ctx context.Context) (*types.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &types.Stats{
		TotalApplications: len(m.apps),
		ByStatus:          make(map[types.Status]int),
		ProcessedMessages: len(m.ledger),
	}
	for _, rec := range m.apps {
		stats.ByStatus[rec.Status]++
	}
	return stats, nil
}

// AcquireLease implements LeaseStore
func (m *MemoryStore) AcquireLease(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.leases[name]; ok && now.Before(held.ExpiresAt) {
		return nil, ErrLeaseHeld
	}
	lease := Lease{Name: name, Holder: uuid.New(), ExpiresAt: now.Add(ttl)}
	m.leases[name] = lease
	return &lease, nil
}

// ReleaseLease implements LeaseStore
func (m *MemoryStore) ReleaseLease(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if held, ok := m.leases[lease.Name]; ok && held.Holder == lease.Holder {
		delete(m.leases, lease.Name)
	}
	return nil
}

// Ping implements Store
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Store
func (m *MemoryStore) Close() {}
