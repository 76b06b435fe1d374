// Package whatif renders pure, side-effect-free previews of hypothetical
// operations. Every function here reads through internal/store's query
// surface but never opens a write transaction and never calls a mutating
// store or registry/mergequeue/lockmgr operation.
package whatif

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dotcommander/zjj/internal/mergequeue"
	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/store"
)

// SubmissionPreview describes what Submit would compute for a hypothetical
// entry, without writing anything.
type SubmissionPreview struct {
	Workspace       string
	WouldDedupe     bool
	ExistingEntryID *int64
	StackDepth      int
	StackRoot       *string
	StackMergeState models.StackMergeState
	Problem         error
}

// PreviewSubmission computes the stack metadata and dedupe outcome that
// mergequeue.Submit would persist for the given hypothetical submission,
// without calling it.
func PreviewSubmission(ctx context.Context, db *sql.DB, workspace, dedupeKey string, parentWorkspace *string) (SubmissionPreview, error) {
	preview := SubmissionPreview{Workspace: workspace}

	entries, err := store.ListQueueEntriesTx(ctx, db)
	if err != nil {
		return preview, err
	}

	for _, e := range entries {
		if e.DedupeKey == dedupeKey && isActive(e.Status) {
			preview.WouldDedupe = true
			id := e.ID
			preview.ExistingEntryID = &id
			break
		}
	}

	hypothetical := &models.QueueEntry{Workspace: workspace, ParentWorkspace: parentWorkspace}
	projected := append(append([]*models.QueueEntry{}, entries...), hypothetical)

	depth, err := mergequeue.CalculateStackDepth(workspace, projected, mergequeue.DefaultStackDepthCeiling)
	if err != nil {
		preview.Problem = err
		return preview, nil
	}
	preview.StackDepth = depth

	preview.StackMergeState = models.StackMergeStateIndependent
	if parentWorkspace != nil {
		root, err := mergequeue.FindStackRoot(workspace, projected, mergequeue.DefaultStackDepthCeiling)
		if err != nil {
			preview.Problem = err
			return preview, nil
		}
		preview.StackRoot = &root

		for _, e := range entries {
			if e.Workspace == *parentWorkspace {
				if e.Status == models.QueueStatusCompleted {
					preview.StackMergeState = models.StackMergeStateReadyInStack
				} else {
					preview.StackMergeState = models.StackMergeStateWaitingForParent
				}
				break
			}
		}
	}

	return preview, nil
}

func isActive(status models.QueueStatus) bool {
	return status != models.QueueStatusCompleted &&
		status != models.QueueStatusFailed &&
		status != models.QueueStatusAbandoned
}

// TransitionPreview describes whether a hypothetical status transition would
// be legal.
type TransitionPreview struct {
	Session string
	From    models.SessionStatus
	To      models.SessionStatus
	Legal   bool
	Reason  string
}

// PreviewStatusTransition reports whether moving session from its current
// status to `to` would be accepted by registry.TransitionStatus's
// state-machine check, without performing the transition.
func PreviewStatusTransition(ctx context.Context, db *sql.DB, sessionName string, to models.SessionStatus) (TransitionPreview, error) {
	session, err := store.GetSessionTx(ctx, db, sessionName)
	if err != nil {
		return TransitionPreview{}, err
	}

	preview := TransitionPreview{Session: sessionName, From: session.Status, To: to}
	if session.Status.CanTransitionTo(to) {
		preview.Legal = true
	} else {
		preview.Legal = false
		preview.Reason = fmt.Sprintf("%s has no legal transition to %s", session.Status, to)
	}
	return preview, nil
}
