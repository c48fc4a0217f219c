package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/application-tracker/internal/store"
)

// AcquireLease takes the named lease, replacing it only when the previous holder's lease has expired
func (db *DB) AcquireLease(ctx context.Context, name string, ttl time.Duration) (*store.Lease, error) {
	lease := &store.Lease{Name: name, Holder: uuid.New()}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO run_leases (name, holder, expires_at)
		 VALUES ($1, $2, NOW() + make_interval(secs => $3))
		 ON CONFLICT (name) DO UPDATE SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		 WHERE run_leases.expires_at <= NOW()
		 RETURNING expires_at`,
		name, lease.Holder, ttl.Seconds(),
	).Scan(&lease.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrLeaseHeld
		}
		return nil, mapError("acquire lease", err)
	}
	return lease, nil
}

// ReleaseLease drops the lease if this holder still owns it
func (db *DB) ReleaseLease(ctx context.Context, lease *store.Lease) error {
	if lease == nil {
		return nil
	}
	_, err := db.pool.Exec(ctx,
		`DELETE FROM run_leases WHERE name = $1 AND holder = $2`,
		lease.Name, lease.Holder,
	)
	return mapError("release lease", err)
}
