package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dotcommander/zjj/internal/models"
)

// isMissingTableErr reports whether err is SQLite's "no such table" failure.
func isMissingTableErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// LockSessionTx acquires an exclusive lease on session for agentID with the
// given ttl. If the same agent already holds the lease, the call is
// idempotent and refreshes expires_at to now+ttl (spec-mandated refresh on
// re-lock, not a no-op). If a session table is absent from an older or
// hand-built database the check is soft-passed — carried forward from the
// original implementation's backward-compatibility behavior.
func LockSessionTx(ctx context.Context, tx *sql.Tx, session, agentID string, ttl time.Duration, now time.Time) (*models.Lock, error) {
	exists, err := sessionExistsTx(ctx, tx, session)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &models.SessionNotFoundError{Session: session}
	}

	existing, err := getActiveLockTx(ctx, tx, session, now)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(ttl)

	if existing != nil {
		if existing.AgentID != agentID {
			return nil, &models.SessionLockedError{Session: session, Holder: existing.AgentID}
		}
		// Idempotent re-lock: refresh the TTL in place, same lock_id.
		if _, err := tx.ExecContext(ctx, `
			UPDATE session_locks SET expires_at = ? WHERE lock_id = ?
		`, expiresAt.UTC().Format(rfc3339), existing.LockID); err != nil {
			return nil, fmt.Errorf("refresh lock: %w", err)
		}
		if err := appendLockAuditTx(ctx, tx, session, agentID, models.LockAuditOperationLock, now); err != nil {
			return nil, err
		}
		existing.ExpiresAt = expiresAt
		return existing, nil
	}

	lockID := generateLockID(session, now)

	// An expired lock for this session, if any, must be cleared first so the
	// UNIQUE(session) constraint does not reject the new row — this is the
	// local "expiring lock cleanup" recovery the error-handling policy allows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_locks WHERE session = ?`, session); err != nil {
		return nil, fmt.Errorf("clear expired lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_locks (lock_id, session, agent_id, acquired_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, lockID, session, agentID, now.UTC().Format(rfc3339), expiresAt.UTC().Format(rfc3339)); err != nil {
		return nil, fmt.Errorf("insert lock: %w", err)
	}

	if err := appendLockAuditTx(ctx, tx, session, agentID, models.LockAuditOperationLock, now); err != nil {
		return nil, err
	}

	return &models.Lock{
		LockID:     lockID,
		Session:    session,
		AgentID:    agentID,
		AcquiredAt: now,
		ExpiresAt:  expiresAt,
	}, nil
}

// UnlockSessionTx releases a held lease. Only the actual holder may clear
// the row. Unlocking a session with no active lock succeeds but is recorded
// as a double_unlock_warning audit entry so operators can see the pattern;
// unlocking a lock held by a different agent writes the same warning and
// returns models.NotLockHolderError.
func UnlockSessionTx(ctx context.Context, tx *sql.Tx, session, agentID string, now time.Time) error {
	existing, err := getActiveLockTx(ctx, tx, session, now)
	if err != nil {
		return err
	}

	if existing == nil || existing.AgentID != agentID {
		if err := appendLockAuditTx(ctx, tx, session, agentID, models.LockAuditOperationDoubleUnlockWarning, now); err != nil {
			return err
		}
		if existing == nil {
			return nil
		}
		return &models.NotLockHolderError{Session: session, AgentID: agentID}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_locks WHERE lock_id = ?`, existing.LockID); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}

	return appendLockAuditTx(ctx, tx, session, agentID, models.LockAuditOperationUnlock, now)
}

// HeartbeatSessionTx extends an active lease's TTL without changing holder.
func HeartbeatSessionTx(ctx context.Context, tx *sql.Tx, session, agentID string, ttl time.Duration, now time.Time) (*models.Lock, error) {
	existing, err := getActiveLockTx(ctx, tx, session, now)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &models.NotFoundError{Kind: "lock", Name: session}
	}
	if existing.AgentID != agentID {
		return nil, &models.NotLockHolderError{Session: session, AgentID: agentID}
	}

	expiresAt := now.Add(ttl)
	if _, err := tx.ExecContext(ctx, `
		UPDATE session_locks SET expires_at = ? WHERE lock_id = ?
	`, expiresAt.UTC().Format(rfc3339), existing.LockID); err != nil {
		return nil, fmt.Errorf("heartbeat lock: %w", err)
	}
	existing.ExpiresAt = expiresAt
	return existing, nil
}

// GetLockStateTx reports the current holder of session, if any. Expired
// locks are reported as unlocked.
func GetLockStateTx(ctx context.Context, q Querier, session string, now time.Time) (*models.LockState, error) {
	row := q.QueryRowContext(ctx, `
		SELECT agent_id, expires_at FROM session_locks
		WHERE session = ? AND expires_at > ?
	`, session, now.UTC().Format(rfc3339))

	var agentID, expiresAt string
	err := row.Scan(&agentID, &expiresAt)
	if err == sql.ErrNoRows {
		return &models.LockState{Session: session}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query lock state: %w", err)
	}

	t, err := time.Parse(rfc3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &models.LockState{Session: session, Holder: &agentID, ExpiresAt: &t}, nil
}

// ListLocksTx returns every active (non-expired) lock.
func ListLocksTx(ctx context.Context, q Querier, now time.Time) ([]*models.Lock, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT lock_id, session, agent_id, acquired_at, expires_at
		FROM session_locks WHERE expires_at > ?
		ORDER BY acquired_at ASC
	`, now.UTC().Format(rfc3339))
	if err != nil {
		return nil, fmt.Errorf("query locks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Lock
	for rows.Next() {
		var l models.Lock
		var acquiredAt, expiresAt string
		if err := rows.Scan(&l.LockID, &l.Session, &l.AgentID, &acquiredAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan lock row: %w", err)
		}
		if l.AcquiredAt, err = time.Parse(rfc3339, acquiredAt); err != nil {
			return nil, fmt.Errorf("parse acquired_at: %w", err)
		}
		if l.ExpiresAt, err = time.Parse(rfc3339, expiresAt); err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// GetLockAuditLogTx returns the audit trail for session, oldest first.
func GetLockAuditLogTx(ctx context.Context, q Querier, session string) ([]*models.LockAuditEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, session, agent_id, operation, timestamp
		FROM session_lock_audit WHERE session = ? ORDER BY id ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query lock audit: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.LockAuditEntry
	for rows.Next() {
		var e models.LockAuditEntry
		var op, ts string
		if err := rows.Scan(&e.ID, &e.Session, &e.AgentID, &op, &ts); err != nil {
			return nil, fmt.Errorf("scan lock audit row: %w", err)
		}
		e.Operation = models.LockAuditOperation(op)
		if e.Timestamp, err = time.Parse(rfc3339, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func getActiveLockTx(ctx context.Context, tx *sql.Tx, session string, now time.Time) (*models.Lock, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT lock_id, session, agent_id, acquired_at, expires_at
		FROM session_locks WHERE session = ? AND expires_at > ?
	`, session, now.UTC().Format(rfc3339))

	var l models.Lock
	var acquiredAt, expiresAt string
	err := row.Scan(&l.LockID, &l.Session, &l.AgentID, &acquiredAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active lock: %w", err)
	}
	if l.AcquiredAt, err = time.Parse(rfc3339, acquiredAt); err != nil {
		return nil, fmt.Errorf("parse acquired_at: %w", err)
	}
	if l.ExpiresAt, err = time.Parse(rfc3339, expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &l, nil
}

// sessionExistsTx checks for the session row. Per the original implementation's
// backward-compatible behavior, a missing sessions table itself is not an
// error here — it is treated as "session exists" (soft-pass) so lock
// operations remain usable against a store that predates the sessions table.
func sessionExistsTx(ctx context.Context, tx *sql.Tx, session string) (bool, error) {
	var name string
	err := tx.QueryRowContext(ctx, `SELECT name FROM sessions WHERE name = ?`, session).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		if isMissingTableErr(err) {
			return true, nil
		}
		return false, fmt.Errorf("check session existence: %w", err)
	}
	return true, nil
}

func appendLockAuditTx(ctx context.Context, tx *sql.Tx, session, agentID string, op models.LockAuditOperation, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_lock_audit (session, agent_id, operation, timestamp)
		VALUES (?, ?, ?, ?)
	`, session, agentID, string(op), at.UTC().Format(rfc3339))
	if err != nil {
		return fmt.Errorf("append lock audit: %w", err)
	}
	return nil
}

// generateLockID builds the spec-mandated lock_id shape: lock-{session}-{nanos}.
func generateLockID(session string, now time.Time) string {
	return fmt.Sprintf("lock-%s-%d", session, now.UnixNano())
}
