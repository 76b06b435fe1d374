package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/zjj/internal/models"
)

func newTestSubmission(workspace, dedupe string) QueueSubmission {
	return QueueSubmission{
		Workspace: workspace,
		Priority:  0,
		DedupeKey: dedupe,
		HeadSHA:   "abcd1234",
	}
}

func TestSubmitQueueEntryTx_New(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	var result *SubmitResult
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		result, err = SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:abc"), now)
		return err
	}))
	require.Equal(t, models.SubmissionTypeNew, result.SubmissionType)
	require.Equal(t, models.QueueStatusPending, result.Status)
	require.NotNil(t, result.Position)
	require.Equal(t, 1, *result.Position)
	require.Equal(t, 1, result.PendingCount)
}

func TestSubmitQueueEntryTx_UpdatedWhenActive(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:abc"), now)
		return err
	}))

	updated := newTestSubmission("ws1", "change:abc")
	updated.Priority = 5
	var result *SubmitResult
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		result, err = SubmitQueueEntryTx(ctx, tx, updated, now.Add(time.Second))
		return err
	}))
	require.Equal(t, models.SubmissionTypeUpdated, result.SubmissionType)
}

func TestSubmitQueueEntryTx_ResubmittedWhenTerminal(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	var id int64
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		result, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:abc"), now)
		if err != nil {
			return err
		}
		id = result.EntryID
		return nil
	}))
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return AbandonQueueEntryTx(ctx, tx, id)
	}))

	var result *SubmitResult
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		result, err = SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:abc"), now.Add(time.Minute))
		return err
	}))
	require.Equal(t, models.SubmissionTypeResubmitted, result.SubmissionType)
	require.Equal(t, models.QueueStatusPending, result.Status)
}

func TestSubmitQueueEntryTx_AlreadyInQueue(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:abc"), now)
		return err
	}))

	err := Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:different"), now)
		return err
	})
	require.Error(t, err)
	var aiq *models.AlreadyInQueueError
	require.ErrorAs(t, err, &aiq)
}

func TestSubmitQueueEntryTx_DedupeKeyConflict(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:abc"), now)
		return err
	}))

	err := Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws2", "change:abc"), now)
		return err
	})
	require.Error(t, err)
	var dkc *models.DedupeKeyConflictError
	require.ErrorAs(t, err, &dkc)
}

func TestSubmitQueueEntryTx_RejectsShortHeadSHA(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sub := newTestSubmission("ws1", "change:abc")
	sub.HeadSHA = "ab"
	err := Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := SubmitQueueEntryTx(ctx, tx, sub, now)
		return err
	})
	require.Error(t, err)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestSubmitQueueEntryTx_RejectsDedupeKeyWithoutColon(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sub := newTestSubmission("ws1", "nocolonkey")
	err := Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := SubmitQueueEntryTx(ctx, tx, sub, now)
		return err
	})
	require.Error(t, err)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestQueueLifecycle_ClaimStartMergeComplete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	var id int64
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		result, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:abc"), now)
		if err != nil {
			return err
		}
		id = result.EntryID
		return nil
	}))

	var claimed bool
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		claimed, err = ClaimQueueEntryTx(ctx, tx, id, "agent-a")
		return err
	}))
	require.True(t, claimed)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return StartQueueEntryTx(ctx, tx, id, now)
	}))
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return MarkMergingTx(ctx, tx, id)
	}))
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return CompleteQueueEntryTx(ctx, tx, id, now)
	}))

	entry, err := GetQueueEntryTx(ctx, db, id)
	require.NoError(t, err)
	require.Equal(t, models.QueueStatusCompleted, entry.Status)
	require.NotNil(t, entry.CompletedAt)
}

func TestClaimQueueEntryTx_SecondClaimLoses(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	var id int64
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		result, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:abc"), now)
		if err != nil {
			return err
		}
		id = result.EntryID
		return nil
	}))

	var firstClaim, secondClaim bool
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		firstClaim, err = ClaimQueueEntryTx(ctx, tx, id, "agent-a")
		return err
	}))
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		secondClaim, err = ClaimQueueEntryTx(ctx, tx, id, "agent-b")
		return err
	}))
	require.True(t, firstClaim)
	require.False(t, secondClaim)
}

func TestFailQueueEntryTx_RetriesUntilMaxAttempts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sub := newTestSubmission("ws1", "change:abc")
	sub.MaxAttempts = 2
	var id int64
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		result, err := SubmitQueueEntryTx(ctx, tx, sub, now)
		if err != nil {
			return err
		}
		id = result.EntryID
		return nil
	}))

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return FailQueueEntryTx(ctx, tx, id, "flaky test")
	}))
	entry, err := GetQueueEntryTx(ctx, db, id)
	require.NoError(t, err)
	require.Equal(t, models.QueueStatusPending, entry.Status)
	require.Equal(t, 1, entry.AttemptCount)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return FailQueueEntryTx(ctx, tx, id, "flaky again")
	}))
	entry, err = GetQueueEntryTx(ctx, db, id)
	require.NoError(t, err)
	require.Equal(t, models.QueueStatusFailed, entry.Status)
	require.Equal(t, 2, entry.AttemptCount)
}

func TestNextReadyTx_SkipsWaitingForParent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:a"), now)
		return err
	}))
	var waitingID int64
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		result, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws2", "change:b"), now.Add(time.Millisecond))
		if err != nil {
			return err
		}
		waitingID = result.EntryID
		_, err = tx.ExecContext(ctx, `UPDATE merge_queue SET stack_merge_state = ? WHERE id = ?`,
			string(models.StackMergeStateWaitingForParent), waitingID)
		return err
	}))

	entry, err := NextReadyTx(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "ws1", entry.Workspace)
	require.NotEqual(t, waitingID, entry.ID)
}

func TestResetForRebaseTx(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	var id int64
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		result, err := SubmitQueueEntryTx(ctx, tx, newTestSubmission("ws1", "change:abc"), now)
		if err != nil {
			return err
		}
		id = result.EntryID
		return nil
	}))
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		_, err := ClaimQueueEntryTx(ctx, tx, id, "agent-a")
		return err
	}))
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return StartQueueEntryTx(ctx, tx, id, now)
	}))
	require.NoError(t, Transact(ctx, db, func(tx *sql.Tx) error {
		return ResetForRebaseTx(ctx, tx, id, now)
	}))

	entry, err := GetQueueEntryTx(ctx, db, id)
	require.NoError(t, err)
	require.Equal(t, models.QueueStatusPending, entry.Status)
	require.Equal(t, 1, entry.RebaseCount)
}
