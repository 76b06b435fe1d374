// Package mergequeue implements the priority-ordered merge queue: idempotent
// upsert submission, dedupe by stable change identity, stack-depth tracking
// over a dependent chain of workspaces, dispatch selection, and the lifecycle
// transitions a claimed entry goes through on its way to completion or
// rebase. It holds a reference to internal/store and expresses every
// business rule in Go; internal/store issues the SQL.
package mergequeue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/registry"
	"github.com/dotcommander/zjj/internal/store"
)

// DefaultMaxAttempts matches store.insertQueueEntryTx's own fallback, kept
// here too so callers that want the effective default don't need to reach
// into the store package.
const DefaultMaxAttempts = 3

// Submission is the caller-facing input to Submit. ParentWorkspace links this
// entry into a dependent stack; leave nil for an independent entry.
type Submission struct {
	Workspace        string
	BeadID           *string
	Priority         int
	AgentID          *string
	DedupeKey        string
	HeadSHA          string
	TestedAgainstSHA *string
	MaxAttempts      int
	ParentWorkspace  *string
}

// Submit upserts a queue entry per §4.4.1 and then computes and persists its
// stack metadata (stack_depth, stack_root, stack_merge_state, and the
// parent's dependents list) from the full entry set within the same
// transaction, since that computation needs more than the single row.
func Submit(ctx context.Context, db *sql.DB, in Submission, stackDepthCeiling int) (*store.SubmitResult, error) {
	if err := registry.ValidateName(in.Workspace); err != nil {
		return nil, err
	}

	var result *store.SubmitResult
	err := store.Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		result, err = store.SubmitQueueEntryTx(ctx, tx, store.QueueSubmission{
			Workspace:        in.Workspace,
			BeadID:           in.BeadID,
			Priority:         in.Priority,
			AgentID:          in.AgentID,
			DedupeKey:        in.DedupeKey,
			HeadSHA:          in.HeadSHA,
			TestedAgainstSHA: in.TestedAgainstSHA,
			MaxAttempts:      in.MaxAttempts,
			ParentWorkspace:  in.ParentWorkspace,
		}, time.Now().UTC())
		if err != nil {
			return err
		}
		return applyStackMetadataTx(ctx, tx, result.EntryID, stackDepthCeiling)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyStackMetadataTx recomputes depth/root/merge-state for id against the
// full current entry set and persists them, plus registers id as a dependent
// of its parent if it has one.
func applyStackMetadataTx(ctx context.Context, tx *sql.Tx, id int64, ceiling int) error {
	entries, err := store.ListQueueEntriesTx(ctx, tx)
	if err != nil {
		return err
	}

	target := findEntryByWorkspaceID(entries, id)
	if target == nil {
		return &models.NotFoundError{Kind: "queue_entry", Name: fmt.Sprint(id)}
	}

	depth, err := CalculateStackDepth(target.Workspace, entries, ceiling)
	if err != nil {
		return err
	}

	var root *string
	mergeState := models.StackMergeStateIndependent
	if target.ParentWorkspace != nil {
		r, err := FindStackRoot(target.Workspace, entries, ceiling)
		if err != nil {
			return err
		}
		root = &r

		parent := findEntryByWorkspace(entries, *target.ParentWorkspace)
		if parent != nil && parent.Status == models.QueueStatusCompleted {
			mergeState = models.StackMergeStateReadyInStack
		} else {
			mergeState = models.StackMergeStateWaitingForParent
		}

		if parent != nil {
			if err := store.AppendDependentTx(ctx, tx, parent.ID, target.Workspace); err != nil {
				return err
			}
		}
	}

	return store.UpdateStackMetadataTx(ctx, tx, id, depth, root, mergeState)
}

func findEntryByWorkspaceID(entries []*models.QueueEntry, id int64) *models.QueueEntry {
	for _, e := range entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// NextReady selects the next dispatchable entry (§4.4.2) without claiming it.
func NextReady(ctx context.Context, db *sql.DB) (*models.QueueEntry, error) {
	return store.NextReadyTx(ctx, db)
}

// Claim attempts the guarded Pending -> Claimed transition for id on behalf
// of agentID. Returns false if another worker already claimed it; the caller
// should call NextReady again in that case.
func Claim(ctx context.Context, db *sql.DB, id int64, agentID string) (bool, error) {
	var claimed bool
	err := store.Transact(ctx, db, func(tx *sql.Tx) error {
		var err error
		claimed, err = store.ClaimQueueEntryTx(ctx, tx, id, agentID)
		return err
	})
	return claimed, err
}

// Start: Claimed -> Running.
func Start(ctx context.Context, db *sql.DB, id int64) error {
	now := time.Now().UTC()
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.StartQueueEntryTx(ctx, tx, id, now)
	})
}

// MarkMerging: Running -> Merging.
func MarkMerging(ctx context.Context, db *sql.DB, id int64) error {
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.MarkMergingTx(ctx, tx, id)
	})
}

// Complete: Merging -> Completed, promoting ready dependents in the same transaction.
func Complete(ctx context.Context, db *sql.DB, id int64) error {
	now := time.Now().UTC()
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.CompleteQueueEntryTx(ctx, tx, id, now)
	})
}

// Fail records a failed attempt; it auto-transitions to terminal Failed once
// the next attempt would meet or exceed max_attempts (§4.4.3, §9 Open
// Question 2's resolution), otherwise resets to Pending for redispatch.
func Fail(ctx context.Context, db *sql.DB, id int64, reason string) error {
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.FailQueueEntryTx(ctx, tx, id, reason)
	})
}

// ResetForRebase: Running/Merging -> Pending, bumping rebase_count.
func ResetForRebase(ctx context.Context, db *sql.DB, id int64) error {
	now := time.Now().UTC()
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.ResetForRebaseTx(ctx, tx, id, now)
	})
}

// Abandon: any non-terminal entry -> Abandoned.
func Abandon(ctx context.Context, db *sql.DB, id int64) error {
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.AbandonQueueEntryTx(ctx, tx, id)
	})
}

// Get fetches a single entry by id.
func Get(ctx context.Context, db *sql.DB, id int64) (*models.QueueEntry, error) {
	return store.GetQueueEntryTx(ctx, db, id)
}

// List returns every queue entry, oldest first.
func List(ctx context.Context, db *sql.DB) ([]*models.QueueEntry, error) {
	return store.ListQueueEntriesTx(ctx, db)
}
