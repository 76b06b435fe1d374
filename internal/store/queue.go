package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dotcommander/zjj/internal/models"
)

// SubmitResult is the response shape §4.4.1 mandates.
type SubmitResult struct {
	EntryID        int64
	Workspace      string
	Status         models.QueueStatus
	Position       *int
	PendingCount   int
	SubmissionType models.SubmissionType
	SubmittedAt    time.Time
	BeadID         *string
}

// SubmitQueueEntryTx implements §4.4.1: validate preconditions, then upsert.
// Name/path validation of workspace is done by the caller before this
// function is ever reached (internal/mergequeue.Submit calls
// registry.ValidateName first); this function enforces only the
// queue-specific preconditions (head_sha length, dedupe_key shape, and the
// two cross-entry conflict checks).
func SubmitQueueEntryTx(ctx context.Context, tx *sql.Tx, in QueueSubmission, now time.Time) (*SubmitResult, error) {
	if len(in.HeadSHA) < 4 {
		return nil, &models.ValidationError{Field: "head_sha", Message: "must be at least 4 characters", Constraints: "len >= 4"}
	}
	if !strings.Contains(in.DedupeKey, ":") {
		return nil, &models.ValidationError{Field: "dedupe_key", Message: "must contain a ':' separator", Constraints: "contains ':'"}
	}

	existingByWorkspace, err := getActiveEntryByWorkspaceTx(ctx, tx, in.Workspace)
	if err != nil {
		return nil, err
	}
	if existingByWorkspace != nil && existingByWorkspace.DedupeKey != in.DedupeKey {
		return nil, &models.AlreadyInQueueError{
			Workspace:      in.Workspace,
			ExistingDedupe: existingByWorkspace.DedupeKey,
			ProvidedDedupe: in.DedupeKey,
		}
	}

	existingByDedupe, err := getActiveEntryByDedupeTx(ctx, tx, in.DedupeKey)
	if err != nil {
		return nil, err
	}
	if existingByDedupe != nil && existingByDedupe.Workspace != in.Workspace {
		return nil, &models.DedupeKeyConflictError{
			DedupeKey:         in.DedupeKey,
			ExistingWorkspace: existingByDedupe.Workspace,
			ProvidedWorkspace: in.Workspace,
		}
	}

	var entry *models.QueueEntry
	var submissionType models.SubmissionType

	switch {
	case existingByWorkspace == nil:
		entry, err = insertQueueEntryTx(ctx, tx, in, now)
		submissionType = models.SubmissionTypeNew
	case existingByWorkspace.Status.IsTerminal():
		entry, err = resubmitQueueEntryTx(ctx, tx, existingByWorkspace.ID, in, now)
		submissionType = models.SubmissionTypeResubmitted
	default:
		entry, err = updateMutableQueueFieldsTx(ctx, tx, existingByWorkspace.ID, in)
		submissionType = models.SubmissionTypeUpdated
	}
	if err != nil {
		return nil, err
	}

	pendingCount, err := countPendingTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	var position *int
	if entry.Status == models.QueueStatusPending {
		pos, err := pendingPositionTx(ctx, tx, entry.ID)
		if err != nil {
			return nil, err
		}
		position = &pos
	}

	return &SubmitResult{
		EntryID:        entry.ID,
		Workspace:      entry.Workspace,
		Status:         entry.Status,
		Position:       position,
		PendingCount:   pendingCount,
		SubmissionType: submissionType,
		SubmittedAt:    now,
		BeadID:         entry.BeadID,
	}, nil
}

// QueueSubmission is the input shape for SubmitQueueEntryTx. ParentWorkspace
// names the stack parent, if any; internal/mergequeue computes stack_depth,
// stack_root, and stack_merge_state from it after the row exists and persists
// them via UpdateStackMetadataTx, since that computation needs the full
// bounded entry set (internal/mergequeue's pure traversal), not just this row.
type QueueSubmission struct {
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

func insertQueueEntryTx(ctx context.Context, tx *sql.Tx, in QueueSubmission, now time.Time) (*models.QueueEntry, error) {
	maxAttempts := in.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO merge_queue (workspace, bead_id, priority, status, added_at, agent_id,
		                          dedupe_key, head_sha, tested_against_sha, attempt_count,
		                          max_attempts, parent_workspace, dependents_json, stack_merge_state, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, '[]', ?, 1)
	`, in.Workspace, in.BeadID, in.Priority, string(models.QueueStatusPending), now.UTC().Format(rfc3339),
		in.AgentID, in.DedupeKey, in.HeadSHA, in.TestedAgainstSHA, maxAttempts, in.ParentWorkspace,
		string(models.StackMergeStateIndependent))
	if err != nil {
		return nil, fmt.Errorf("insert queue entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return GetQueueEntryTx(ctx, tx, id)
}

func resubmitQueueEntryTx(ctx context.Context, tx *sql.Tx, id int64, in QueueSubmission, now time.Time) (*models.QueueEntry, error) {
	_, err := tx.ExecContext(ctx, `
		UPDATE merge_queue
		SET status = ?, priority = ?, head_sha = ?, tested_against_sha = ?, agent_id = ?,
		    dedupe_key = ?, added_at = ?, attempt_count = 0, error_message = NULL,
		    started_at = NULL, completed_at = NULL, parent_workspace = ?,
		    dependents_json = '[]', stack_root = NULL, stack_depth = 0,
		    stack_merge_state = ?, version = version + 1
		WHERE id = ?
	`, string(models.QueueStatusPending), in.Priority, in.HeadSHA, in.TestedAgainstSHA, in.AgentID,
		in.DedupeKey, now.UTC().Format(rfc3339), in.ParentWorkspace, string(models.StackMergeStateIndependent), id)
	if err != nil {
		return nil, fmt.Errorf("resubmit queue entry: %w", err)
	}
	return GetQueueEntryTx(ctx, tx, id)
}

func updateMutableQueueFieldsTx(ctx context.Context, tx *sql.Tx, id int64, in QueueSubmission) (*models.QueueEntry, error) {
	_, err := tx.ExecContext(ctx, `
		UPDATE merge_queue
		SET priority = ?, head_sha = ?, tested_against_sha = ?, agent_id = ?, version = version + 1
		WHERE id = ?
	`, in.Priority, in.HeadSHA, in.TestedAgainstSHA, in.AgentID, id)
	if err != nil {
		return nil, fmt.Errorf("update queue entry: %w", err)
	}
	return GetQueueEntryTx(ctx, tx, id)
}

// UpdateStackMetadataTx persists stack_depth/stack_root/stack_merge_state as
// computed by internal/mergequeue's pure traversal over a bounded entry set.
func UpdateStackMetadataTx(ctx context.Context, tx *sql.Tx, id int64, depth int, root *string, mergeState models.StackMergeState) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE merge_queue SET stack_depth = ?, stack_root = ?, stack_merge_state = ?, version = version + 1
		WHERE id = ?
	`, depth, root, string(mergeState), id)
	if err != nil {
		return fmt.Errorf("update stack metadata: %w", err)
	}
	return nil
}

// AppendDependentTx adds childWorkspace to parentID's dependents list if not
// already present. Idempotent.
func AppendDependentTx(ctx context.Context, tx *sql.Tx, parentID int64, childWorkspace string) error {
	entry, err := GetQueueEntryTx(ctx, tx, parentID)
	if err != nil {
		return err
	}
	for _, d := range entry.Dependents {
		if d == childWorkspace {
			return nil
		}
	}
	updated := append(entry.Dependents, childWorkspace)
	raw, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal dependents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE merge_queue SET dependents_json = ?, version = version + 1 WHERE id = ?
	`, string(raw), parentID); err != nil {
		return fmt.Errorf("append dependent: %w", err)
	}
	return nil
}

// NextReadyTx selects the next dispatchable entry per §4.4.2. Selection is
// advisory: the caller must still win ClaimQueueEntryTx's guarded update.
func NextReadyTx(ctx context.Context, q Querier) (*models.QueueEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id FROM merge_queue
		WHERE status = ?
		  AND stack_merge_state IN (?, ?)
		  AND attempt_count < max_attempts
		ORDER BY priority ASC, added_at ASC
		LIMIT 1
	`, string(models.QueueStatusPending), string(models.StackMergeStateIndependent), string(models.StackMergeStateReadyInStack))

	var id int64
	if err := row.Scan(&id); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("select next ready: %w", err)
	}
	return GetQueueEntryTx(ctx, q, id)
}

// ClaimQueueEntryTx performs the guarded Pending -> Claimed transition.
// Returns false (no error) if another worker already claimed it.
func ClaimQueueEntryTx(ctx context.Context, tx *sql.Tx, id int64, agentID string) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE merge_queue SET status = ?, agent_id = ?, version = version + 1
		WHERE id = ? AND status = ?
	`, string(models.QueueStatusClaimed), agentID, id, string(models.QueueStatusPending))
	if err != nil {
		return false, fmt.Errorf("claim queue entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// StartQueueEntryTx: Claimed -> Running.
func StartQueueEntryTx(ctx context.Context, tx *sql.Tx, id int64, now time.Time) error {
	return transitionQueueTx(ctx, tx, id, models.QueueStatusClaimed, models.QueueStatusRunning, func() (string, []any) {
		return `UPDATE merge_queue SET status = ?, started_at = ?, version = version + 1 WHERE id = ? AND status = ?`,
			[]any{string(models.QueueStatusRunning), now.UTC().Format(rfc3339), id, string(models.QueueStatusClaimed)}
	})
}

// MarkMergingTx: Running -> Merging.
func MarkMergingTx(ctx context.Context, tx *sql.Tx, id int64) error {
	return transitionQueueTx(ctx, tx, id, models.QueueStatusRunning, models.QueueStatusMerging, func() (string, []any) {
		return `UPDATE merge_queue SET status = ?, version = version + 1 WHERE id = ? AND status = ?`,
			[]any{string(models.QueueStatusMerging), id, string(models.QueueStatusRunning)}
	})
}

// CompleteQueueEntryTx: Merging -> Completed, then re-evaluates dependents'
// stack_merge_state to ReadyInStack if all of their ancestors are Completed.
func CompleteQueueEntryTx(ctx context.Context, tx *sql.Tx, id int64, now time.Time) error {
	if err := transitionQueueTx(ctx, tx, id, models.QueueStatusMerging, models.QueueStatusCompleted, func() (string, []any) {
		return `UPDATE merge_queue SET status = ?, completed_at = ?, version = version + 1 WHERE id = ? AND status = ?`,
			[]any{string(models.QueueStatusCompleted), now.UTC().Format(rfc3339), id, string(models.QueueStatusMerging)}
	}); err != nil {
		return err
	}
	return reevaluateDependentsTx(ctx, tx, id)
}

// FailQueueEntryTx implements §4.4.3's fail transition: Failed if the next
// attempt would meet or exceed max_attempts, otherwise back to Pending with
// attempt_count incremented.
func FailQueueEntryTx(ctx context.Context, tx *sql.Tx, id int64, reason string) error {
	entry, err := GetQueueEntryTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if entry.Status.IsTerminal() {
		return &models.InvalidStateTransitionError{Machine: "queue_status", From: string(entry.Status), To: string(models.QueueStatusFailed)}
	}

	nextAttempt := entry.AttemptCount + 1
	var toStatus models.QueueStatus
	if nextAttempt >= entry.MaxAttempts {
		toStatus = models.QueueStatusFailed
	} else {
		toStatus = models.QueueStatusPending
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE merge_queue
		SET status = ?, attempt_count = ?, error_message = ?, version = version + 1
		WHERE id = ? AND status = ?
	`, string(toStatus), nextAttempt, reason, id, string(entry.Status))
	if err != nil {
		return fmt.Errorf("fail queue entry: %w", err)
	}
	return nil
}

// ResetForRebaseTx: Running/Merging -> Pending, bumping rebase_count.
func ResetForRebaseTx(ctx context.Context, tx *sql.Tx, id int64, now time.Time) error {
	entry, err := GetQueueEntryTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if entry.Status != models.QueueStatusRunning && entry.Status != models.QueueStatusMerging {
		return &models.InvalidStateTransitionError{Machine: "queue_status", From: string(entry.Status), To: string(models.QueueStatusPending)}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE merge_queue
		SET status = ?, rebase_count = rebase_count + 1, last_rebase_at = ?, version = version + 1
		WHERE id = ? AND status = ?
	`, string(models.QueueStatusPending), now.UTC().Format(rfc3339), id, string(entry.Status))
	if err != nil {
		return fmt.Errorf("reset for rebase: %w", err)
	}
	return nil
}

// AbandonQueueEntryTx: any non-terminal -> Abandoned.
func AbandonQueueEntryTx(ctx context.Context, tx *sql.Tx, id int64) error {
	entry, err := GetQueueEntryTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if entry.Status.IsTerminal() {
		return &models.InvalidStateTransitionError{Machine: "queue_status", From: string(entry.Status), To: string(models.QueueStatusAbandoned)}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE merge_queue SET status = ?, version = version + 1 WHERE id = ? AND status = ?
	`, string(models.QueueStatusAbandoned), id, string(entry.Status))
	if err != nil {
		return fmt.Errorf("abandon queue entry: %w", err)
	}
	return nil
}

func transitionQueueTx(ctx context.Context, tx *sql.Tx, id int64, from, to models.QueueStatus, buildStmt func() (string, []any)) error {
	if !from.CanTransitionTo(to) {
		return &models.InvalidStateTransitionError{Machine: "queue_status", From: string(from), To: string(to)}
	}
	query, args := buildStmt()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition queue entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return &VersionConflictError{Entity: "merge_queue", ID: fmt.Sprint(id)}
	}
	return nil
}

// reevaluateDependentsTx flips each direct dependent of id to ReadyInStack
// once every one of that dependent's ancestors (via parent_workspace chain
// within this same queue) is Completed.
func reevaluateDependentsTx(ctx context.Context, tx *sql.Tx, completedID int64) error {
	completed, err := GetQueueEntryTx(ctx, tx, completedID)
	if err != nil {
		return err
	}
	for _, dependentWorkspace := range completed.Dependents {
		dep, err := getActiveEntryByWorkspaceTx(ctx, tx, dependentWorkspace)
		if err != nil {
			return err
		}
		if dep == nil || dep.StackMergeState != models.StackMergeStateWaitingForParent {
			continue
		}
		parentDone, err := allAncestorsCompletedTx(ctx, tx, dep)
		if err != nil {
			return err
		}
		if parentDone {
			if _, err := tx.ExecContext(ctx, `
				UPDATE merge_queue SET stack_merge_state = ?, version = version + 1 WHERE id = ?
			`, string(models.StackMergeStateReadyInStack), dep.ID); err != nil {
				return fmt.Errorf("promote dependent to ready_in_stack: %w", err)
			}
		}
	}
	return nil
}

func allAncestorsCompletedTx(ctx context.Context, tx *sql.Tx, entry *models.QueueEntry) (bool, error) {
	current := entry
	for current.ParentWorkspace != nil {
		parent, err := getActiveEntryByWorkspaceTx(ctx, tx, *current.ParentWorkspace)
		if err != nil {
			return false, err
		}
		if parent == nil {
			return false, nil
		}
		if parent.Status != models.QueueStatusCompleted {
			return false, nil
		}
		current = parent
	}
	return true, nil
}

// GetQueueEntryTx fetches a single entry by id.
func GetQueueEntryTx(ctx context.Context, q Querier, id int64) (*models.QueueEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, workspace, bead_id, priority, status, added_at, started_at, completed_at,
		       error_message, agent_id, dedupe_key, head_sha, tested_against_sha, attempt_count,
		       max_attempts, rebase_count, last_rebase_at, parent_workspace, stack_depth,
		       dependents_json, stack_root, stack_merge_state
		FROM merge_queue WHERE id = ?
	`, id)
	e, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "queue_entry", Name: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("query queue entry %d: %w", id, err)
	}
	return e, nil
}

// ListQueueEntriesTx returns every queue entry, used as the bounded set for
// stack-depth traversal (§4.4.4) and for the status dashboard.
func ListQueueEntriesTx(ctx context.Context, q Querier) ([]*models.QueueEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, workspace, bead_id, priority, status, added_at, started_at, completed_at,
		       error_message, agent_id, dedupe_key, head_sha, tested_against_sha, attempt_count,
		       max_attempts, rebase_count, last_rebase_at, parent_workspace, stack_depth,
		       dependents_json, stack_root, stack_merge_state
		FROM merge_queue ORDER BY added_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func getActiveEntryByWorkspaceTx(ctx context.Context, tx *sql.Tx, workspace string) (*models.QueueEntry, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, workspace, bead_id, priority, status, added_at, started_at, completed_at,
		       error_message, agent_id, dedupe_key, head_sha, tested_against_sha, attempt_count,
		       max_attempts, rebase_count, last_rebase_at, parent_workspace, stack_depth,
		       dependents_json, stack_root, stack_merge_state
		FROM merge_queue
		WHERE workspace = ? AND status NOT IN (?, ?, ?)
		ORDER BY added_at DESC LIMIT 1
	`, workspace, string(models.QueueStatusCompleted), string(models.QueueStatusFailed), string(models.QueueStatusAbandoned))
	e, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active entry by workspace: %w", err)
	}
	return e, nil
}

func getActiveEntryByDedupeTx(ctx context.Context, tx *sql.Tx, dedupeKey string) (*models.QueueEntry, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, workspace, bead_id, priority, status, added_at, started_at, completed_at,
		       error_message, agent_id, dedupe_key, head_sha, tested_against_sha, attempt_count,
		       max_attempts, rebase_count, last_rebase_at, parent_workspace, stack_depth,
		       dependents_json, stack_root, stack_merge_state
		FROM merge_queue
		WHERE dedupe_key = ? AND status NOT IN (?, ?, ?)
		ORDER BY added_at DESC LIMIT 1
	`, dedupeKey, string(models.QueueStatusCompleted), string(models.QueueStatusFailed), string(models.QueueStatusAbandoned))
	e, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active entry by dedupe key: %w", err)
	}
	return e, nil
}

func countPendingTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM merge_queue WHERE status = ?
	`, string(models.QueueStatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// pendingPositionTx computes the 1-indexed position of id among Pending
// entries sorted by (priority ASC, added_at ASC).
func pendingPositionTx(ctx context.Context, tx *sql.Tx, id int64) (int, error) {
	var position int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM merge_queue
		WHERE status = ?
		  AND (priority, added_at) <= (
		      SELECT priority, added_at FROM merge_queue WHERE id = ?
		  )
	`, string(models.QueueStatusPending), id).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("compute pending position: %w", err)
	}
	return position, nil
}

func scanQueueEntry(r rowScanner) (*models.QueueEntry, error) {
	var e models.QueueEntry
	var status, addedAt, dependentsJSON, stackMergeState string
	var beadID, errorMessage, agentID, testedAgainstSHA, parentWorkspace, stackRoot sql.NullString
	var startedAt, completedAt, lastRebaseAt sql.NullString

	if err := r.Scan(&e.ID, &e.Workspace, &beadID, &e.Priority, &status, &addedAt, &startedAt,
		&completedAt, &errorMessage, &agentID, &e.DedupeKey, &e.HeadSHA, &testedAgainstSHA,
		&e.AttemptCount, &e.MaxAttempts, &e.RebaseCount, &lastRebaseAt, &parentWorkspace,
		&e.StackDepth, &dependentsJSON, &stackRoot, &stackMergeState); err != nil {
		return nil, err
	}

	e.Status = models.QueueStatus(status)
	e.StackMergeState = models.StackMergeState(stackMergeState)

	var err error
	if e.AddedAt, err = time.Parse(rfc3339, addedAt); err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}
	if beadID.Valid {
		e.BeadID = &beadID.String
	}
	if errorMessage.Valid {
		e.ErrorMessage = &errorMessage.String
	}
	if agentID.Valid {
		e.AgentID = &agentID.String
	}
	if testedAgainstSHA.Valid {
		e.TestedAgainstSHA = &testedAgainstSHA.String
	}
	if parentWorkspace.Valid {
		e.ParentWorkspace = &parentWorkspace.String
	}
	if stackRoot.Valid {
		e.StackRoot = &stackRoot.String
	}
	if startedAt.Valid {
		t, err := time.Parse(rfc3339, startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		e.StartedAt = &t
	}
	if completedAt.Valid {
		t, err := time.Parse(rfc3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		e.CompletedAt = &t
	}
	if lastRebaseAt.Valid {
		t, err := time.Parse(rfc3339, lastRebaseAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_rebase_at: %w", err)
		}
		e.LastRebaseAt = &t
	}

	if err := json.Unmarshal([]byte(dependentsJSON), &e.Dependents); err != nil {
		return nil, fmt.Errorf("parse dependents_json: %w", err)
	}

	return &e, nil
}
