package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dotcommander/zjj/internal/models"
)

const rfc3339 = time.RFC3339

// CreateSessionTx inserts a new session row. Returns an *models.AlreadyExistsError
// (wrapped) when the name is already taken.
func CreateSessionTx(ctx context.Context, tx *sql.Tx, s models.Session) error {
	metaRaw := s.Metadata.Raw()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (name, status, workspace_state, workspace_path, branch,
		                       parent_session, created_at, updated_at, metadata_json, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, s.Name, string(s.Status), string(s.WorkspaceState), s.WorkspacePath, s.Branch.String(),
		s.ParentSession.String(), s.CreatedAt.UTC().Format(rfc3339), s.UpdatedAt.UTC().Format(rfc3339),
		string(metaRaw))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return &models.AlreadyExistsError{Kind: "session", Name: s.Name}
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSessionTx fetches a session by name.
func GetSessionTx(ctx context.Context, q Querier, name string) (*models.Session, error) {
	row := q.QueryRowContext(ctx, `
		SELECT name, status, workspace_state, workspace_path, branch, parent_session,
		       created_at, updated_at, last_synced, metadata_json, version
		FROM sessions WHERE name = ?
	`, name)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "session", Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("query session %q: %w", name, err)
	}
	return s, nil
}

// GetSession fetches a session by name using db directly (no transaction).
func GetSession(ctx context.Context, db *sql.DB, name string) (*models.Session, error) {
	var s *models.Session
	err := RetryWithBackoff(ctx, func() error {
		var innerErr error
		s, innerErr = GetSessionTx(ctx, db, name)
		return innerErr
	})
	return s, err
}

// ListSessions returns every session ordered by creation time, oldest first.
func ListSessions(ctx context.Context, db *sql.DB) ([]*models.Session, error) {
	var sessions []*models.Session
	err := RetryWithBackoff(ctx, func() error {
		rows, err := db.QueryContext(ctx, `
			SELECT name, status, workspace_state, workspace_path, branch, parent_session,
			       created_at, updated_at, last_synced, metadata_json, version
			FROM sessions ORDER BY created_at ASC
		`)
		if err != nil {
			return fmt.Errorf("query sessions: %w", err)
		}
		defer func() { _ = rows.Close() }()

		sessions = make([]*models.Session, 0)
		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return fmt.Errorf("scan session row: %w", err)
			}
			sessions = append(sessions, s)
		}
		return rows.Err()
	})
	return sessions, err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*models.Session, error) {
	var s models.Session
	var status, workspaceState, branchTok, parentTok, metadataJSON string
	var createdAt, updatedAt string
	var lastSynced sql.NullString

	if err := r.Scan(&s.Name, &status, &workspaceState, &s.WorkspacePath, &branchTok,
		&parentTok, &createdAt, &updatedAt, &lastSynced, &metadataJSON, &s.Version); err != nil {
		return nil, err
	}

	s.Status = models.SessionStatus(status)
	s.WorkspaceState = models.WorkspaceState(workspaceState)

	branch, err := models.ParseBranch(branchTok)
	if err != nil {
		return nil, fmt.Errorf("parse branch: %w", err)
	}
	s.Branch = branch

	parent, err := models.ParseParentSession(parentTok)
	if err != nil {
		return nil, fmt.Errorf("parse parent_session: %w", err)
	}
	s.ParentSession = parent

	createdTime, err := time.Parse(rfc3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	s.CreatedAt = createdTime

	updatedTime, err := time.Parse(rfc3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	s.UpdatedAt = updatedTime

	if lastSynced.Valid {
		t, err := time.Parse(rfc3339, lastSynced.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_synced: %w", err)
		}
		s.LastSynced = &t
	}

	meta, err := models.NewValidatedMetadata([]byte(metadataJSON))
	if err != nil {
		return nil, fmt.Errorf("parse metadata_json: %w", err)
	}
	s.Metadata = meta

	return &s, nil
}

// TransitionSessionStatusTx performs a compare-and-swap status transition,
// bumping version and updated_at. Returns *VersionConflictError if the
// expected version is stale, and
// *models.InvalidStateTransitionError if the transition itself is illegal.
func TransitionSessionStatusTx(ctx context.Context, tx *sql.Tx, name string, from, to models.SessionStatus, expectedVersion int, now time.Time) error {
	if !from.CanTransitionTo(to) {
		return &models.InvalidStateTransitionError{Machine: "session_status", From: string(from), To: string(to)}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, updated_at = ?, version = version + 1
		WHERE name = ? AND status = ? AND version = ?
	`, string(to), now.UTC().Format(rfc3339), name, string(from), expectedVersion)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return &VersionConflictError{Entity: "session", ID: name, Version: expectedVersion}
	}
	return nil
}

// TransitionWorkspaceStateTx performs a compare-and-swap workspace_state transition.
func TransitionWorkspaceStateTx(ctx context.Context, tx *sql.Tx, name string, from, to models.WorkspaceState, expectedVersion int, now time.Time) error {
	if !from.CanTransitionTo(to) {
		return &models.InvalidStateTransitionError{Machine: "workspace_state", From: string(from), To: string(to)}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET workspace_state = ?, updated_at = ?, version = version + 1
		WHERE name = ? AND workspace_state = ? AND version = ?
	`, string(to), now.UTC().Format(rfc3339), name, string(from), expectedVersion)
	if err != nil {
		return fmt.Errorf("update workspace state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return &VersionConflictError{Entity: "session", ID: name, Version: expectedVersion}
	}
	return nil
}

// SetParentSessionTx sets the parent_session token directly; callers (internal/registry)
// are responsible for cycle detection before calling this.
func SetParentSessionTx(ctx context.Context, tx *sql.Tx, name string, parent models.ParentSession, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE sessions SET parent_session = ?, updated_at = ?, version = version + 1
		WHERE name = ?
	`, parent.String(), now.UTC().Format(rfc3339), name)
	if err != nil {
		return fmt.Errorf("set parent_session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return &models.NotFoundError{Kind: "session", Name: name}
	}
	return nil
}

// MarkSyncedTx records the last_synced timestamp.
func MarkSyncedTx(ctx context.Context, tx *sql.Tx, name string, syncedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE sessions SET last_synced = ? WHERE name = ?
	`, syncedAt.UTC().Format(rfc3339), name)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// DeleteSessionTx removes a session row. Used by registry.Delete after
// workspace teardown has already happened.
func DeleteSessionTx(ctx context.Context, tx *sql.Tx, name string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return &models.NotFoundError{Kind: "session", Name: name}
	}
	return nil
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
