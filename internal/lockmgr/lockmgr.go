// Package lockmgr implements the advisory session lock: non-blocking
// exclusive acquisition with a TTL lease, idempotent re-lock refresh, and an
// append-only audit trail. It holds a reference to internal/store and
// expresses every business rule in Go; internal/store issues the SQL.
package lockmgr

import (
	"context"
	"database/sql"
	"time"

	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/store"
)

// DefaultTTL is used when a caller does not supply one.
const DefaultTTL = 5 * time.Minute

// Manager issues and releases session leases against db. now defaults to
// time.Now when nil, and is overridden in tests to exercise TTL expiry
// deterministically.
type Manager struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// New returns a Manager with ttl as the default lease duration. ttl <= 0
// falls back to DefaultTTL.
func New(db *sql.DB, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the Manager's time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Lock acquires an exclusive lease on session for agentID. Non-blocking:
// returns *models.SessionLockedError immediately if another agent holds it.
// Calling Lock again as the current holder refreshes the TTL.
func (m *Manager) Lock(ctx context.Context, session, agentID string) (*models.Lock, error) {
	var lock *models.Lock
	err := store.Transact(ctx, m.db, func(tx *sql.Tx) error {
		var err error
		lock, err = store.LockSessionTx(ctx, tx, session, agentID, m.ttl, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Unlock releases agentID's lease on session. Unlocking a session with no
// active lease succeeds and is recorded as a double-unlock audit entry;
// unlocking a lease held by another agent is recorded the same way and
// reported back as *models.NotLockHolderError.
func (m *Manager) Unlock(ctx context.Context, session, agentID string) error {
	return store.Transact(ctx, m.db, func(tx *sql.Tx) error {
		return store.UnlockSessionTx(ctx, tx, session, agentID, m.now())
	})
}

// Heartbeat extends an already-held lease without changing ownership.
func (m *Manager) Heartbeat(ctx context.Context, session, agentID string) (*models.Lock, error) {
	var lock *models.Lock
	err := store.Transact(ctx, m.db, func(tx *sql.Tx) error {
		var err error
		lock, err = store.HeartbeatSessionTx(ctx, tx, session, agentID, m.ttl, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// State reports the current holder of session, if any. An expired lease
// reports as unlocked.
func (m *Manager) State(ctx context.Context, session string) (*models.LockState, error) {
	return store.GetLockStateTx(ctx, m.db, session, m.now())
}

// List returns every active (non-expired) lease.
func (m *Manager) List(ctx context.Context) ([]*models.Lock, error) {
	return store.ListLocksTx(ctx, m.db, m.now())
}

// AuditLog returns the full lock history for session, oldest first.
func (m *Manager) AuditLog(ctx context.Context, session string) ([]*models.LockAuditEntry, error) {
	return store.GetLockAuditLogTx(ctx, m.db, session)
}
