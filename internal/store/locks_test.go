package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/zjj/internal/models"
)

func createTestSession(t *testing.T, ctx context.Context, db *sql.DB, name string, now time.Time) {
	t.Helper()
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return CreateSessionTx(ctx, tx, newTestSession(name, now))
	}))
}

func TestLockSessionTx_AcquireAndReadState(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, ctx, db, "s1", now)

	var lock *models.Lock
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		lock, err = LockSessionTx(ctx, tx, "s1", "agent-a", 5*time.Minute, now)
		return err
	}))
	require.Equal(t, fmt.Sprintf("lock-s1-%d", now.UnixNano()), lock.LockID)

	state, err := GetLockStateTx(ctx, db, "s1", now)
	require.NoError(t, err)
	require.NotNil(t, state.Holder)
	require.Equal(t, "agent-a", *state.Holder)
}

func TestLockSessionTx_DifferentAgentRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, ctx, db, "s1", now)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := LockSessionTx(ctx, tx, "s1", "agent-a", 5*time.Minute, now)
		return err
	}))

	err := Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := LockSessionTx(ctx, tx, "s1", "agent-b", 5*time.Minute, now)
		return err
	})
	require.Error(t, err)
	var locked *models.SessionLockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, "agent-a", locked.Holder)
}

func TestLockSessionTx_IdempotentRelockRefreshesTTL(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, ctx, db, "s1", now)

	var first, second *models.Lock
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		first, err = LockSessionTx(ctx, tx, "s1", "agent-a", 1*time.Minute, now)
		return err
	}))

	later := now.Add(30 * time.Second)
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		second, err = LockSessionTx(ctx, tx, "s1", "agent-a", 1*time.Minute, later)
		return err
	}))

	require.Equal(t, first.LockID, second.LockID)
	require.True(t, second.ExpiresAt.After(first.ExpiresAt))
}

func TestUnlockSessionTx_NonHolderWarnsAndFails(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, ctx, db, "s1", now)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := LockSessionTx(ctx, tx, "s1", "agent-a", 5*time.Minute, now)
		return err
	}))

	err := Transact(ctx, db, func(tx *sql.Tx) error {
		return UnlockSessionTx(ctx, tx, "s1", "agent-b", now)
	})
	require.Error(t, err)
	var notHolder *models.NotLockHolderError
	require.ErrorAs(t, err, &notHolder)

	audit, err := GetLockAuditLogTx(ctx, db, "s1")
	require.NoError(t, err)
	require.Len(t, audit, 2)
	require.Equal(t, models.LockAuditOperationDoubleUnlockWarning, audit[1].Operation)
}

func TestUnlockSessionTx_HolderSucceeds(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, ctx, db, "s1", now)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := LockSessionTx(ctx, tx, "s1", "agent-a", 5*time.Minute, now)
		return err
	}))
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return UnlockSessionTx(ctx, tx, "s1", "agent-a", now)
	}))

	state, err := GetLockStateTx(ctx, db, "s1", now)
	require.NoError(t, err)
	require.Nil(t, state.Holder)
}

func TestLockSessionTx_ExpiredLockCanBeReacquired(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, ctx, db, "s1", now)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := LockSessionTx(ctx, tx, "s1", "agent-a", 1*time.Second, now)
		return err
	}))

	later := now.Add(1 * time.Hour)
	var lock *models.Lock
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		lock, err = LockSessionTx(ctx, tx, "s1", "agent-b", 5*time.Minute, later)
		return err
	}))
	require.Equal(t, "agent-b", lock.AgentID)
}

func TestLockSessionTx_UnknownSessionFails(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	err := Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := LockSessionTx(ctx, tx, "ghost", "agent-a", 5*time.Minute, now)
		return err
	})
	require.Error(t, err)
	var notFound *models.SessionNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestHeartbeatSessionTx_NoActiveLockFailsNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, ctx, db, "s1", now)

	err := Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := HeartbeatSessionTx(ctx, tx, "s1", "agent-a", 5*time.Minute, now)
		return err
	})
	require.Error(t, err)
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestHeartbeatSessionTx_NonHolderFailsNotLockHolder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	createTestSession(t, ctx, db, "s1", now)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := LockSessionTx(ctx, tx, "s1", "agent-a", 5*time.Minute, now)
		return err
	}))

	err := Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := HeartbeatSessionTx(ctx, tx, "s1", "agent-b", 5*time.Minute, now)
		return err
	})
	require.Error(t, err)
	var notHolder *models.NotLockHolderError
	require.ErrorAs(t, err, &notHolder)
}
