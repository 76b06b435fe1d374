// Package registry owns the population of sessions and enforces the state
// machines over session_status and workspace_state. It holds a reference to
// internal/store and expresses every business rule — name validation, parent
// cycle detection, transition legality — in Go; internal/store issues the SQL.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/store"
)

// Create validates name, builds an absolute workspace path under root, and
// inserts a new session with status=Creating, workspace_state=Created.
func Create(ctx context.Context, db *sql.DB, root, name string) (*models.Session, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s := models.Session{
		Name:           name,
		Status:         models.SessionStatusCreating,
		WorkspaceState: models.WorkspaceStateCreated,
		WorkspacePath:  filepath.Join(root, name),
		Branch:         models.DetachedBranch(),
		ParentSession:  models.RootSession(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	meta, err := models.NewValidatedMetadata(nil)
	if err != nil {
		return nil, err
	}
	s.Metadata = meta

	err = store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.CreateSessionTx(ctx, tx, s)
	})
	if err != nil {
		return nil, err
	}
	// CreateSessionTx inserts every new row at version 1.
	s.Version = 1
	return &s, nil
}

// Get fetches a session by name.
func Get(ctx context.Context, db *sql.DB, name string) (*models.Session, error) {
	return store.GetSession(ctx, db, name)
}

// Filter narrows List. A zero value matches every session.
type Filter struct {
	Status         *models.SessionStatus
	WorkspaceState *models.WorkspaceState
}

// List returns sessions matching f, oldest first.
func List(ctx context.Context, db *sql.DB, f Filter) ([]*models.Session, error) {
	all, err := store.ListSessions(ctx, db)
	if err != nil {
		return nil, err
	}
	if f.Status == nil && f.WorkspaceState == nil {
		return all, nil
	}
	out := make([]*models.Session, 0, len(all))
	for _, s := range all {
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		if f.WorkspaceState != nil && s.WorkspaceState != *f.WorkspaceState {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// RequireOperationAllowed loads name's current status and rejects with
// *models.OperationNotAllowedError if op is not legal against it.
func RequireOperationAllowed(ctx context.Context, db *sql.DB, name string, op models.Operation) error {
	s, err := store.GetSession(ctx, db, name)
	if err != nil {
		return err
	}
	if !s.Status.AllowsOperation(op) {
		return &models.OperationNotAllowedError{Session: name, Operation: string(op), Status: string(s.Status)}
	}
	return nil
}

// Delete removes a session row. Callers are responsible for tearing down the
// on-disk workspace first (internal/workspace).
func Delete(ctx context.Context, db *sql.DB, name string) error {
	if err := RequireOperationAllowed(ctx, db, name, models.OperationRemove); err != nil {
		return err
	}
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.DeleteSessionTx(ctx, tx, name)
	})
}

// TransitionStatus performs the guarded status transition for name, which
// must currently be at expectedVersion.
func TransitionStatus(ctx context.Context, db *sql.DB, name string, from, to models.SessionStatus, expectedVersion int) error {
	now := time.Now().UTC()
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.TransitionSessionStatusTx(ctx, tx, name, from, to, expectedVersion, now)
	})
}

// TransitionWorkspaceState performs the guarded workspace_state transition.
func TransitionWorkspaceState(ctx context.Context, db *sql.DB, name string, from, to models.WorkspaceState, expectedVersion int) error {
	now := time.Now().UTC()
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		return store.TransitionWorkspaceStateTx(ctx, tx, name, from, to, expectedVersion, now)
	})
}

// SetParent reparents child under parent, or clears the parent when parent is
// nil. Walks parent's own ancestor chain first and rejects with
// *models.CycleDetectedError if it ever reaches back to child.
func SetParent(ctx context.Context, db *sql.DB, child string, parent *string) error {
	now := time.Now().UTC()
	return store.Transact(ctx, db, func(tx *sql.Tx) error {
		if parent == nil {
			return store.SetParentSessionTx(ctx, tx, child, models.RootSession(), now)
		}
		if *parent == child {
			return &models.CycleDetectedError{Workspace: child}
		}
		if err := checkParentChainTx(ctx, tx, *parent, child); err != nil {
			return err
		}
		return store.SetParentSessionTx(ctx, tx, child, models.ChildOfSession(*parent), now)
	})
}

// checkParentChainTx walks from cursor up through parent_session pointers,
// failing if it ever reaches target — that would make target its own
// ancestor once the new edge child->parent is added.
func checkParentChainTx(ctx context.Context, tx *sql.Tx, cursor, target string) error {
	visited := make(map[string]bool)
	for {
		if cursor == target {
			return &models.CycleDetectedError{Workspace: target}
		}
		if visited[cursor] {
			return &models.CycleDetectedError{Workspace: cursor}
		}
		visited[cursor] = true

		s, err := store.GetSessionTx(ctx, tx, cursor)
		if err != nil {
			if _, ok := err.(*models.NotFoundError); ok {
				return &models.ParentNotFoundError{Workspace: cursor}
			}
			return fmt.Errorf("walk parent chain: %w", err)
		}
		if s.ParentSession.IsRoot {
			return nil
		}
		cursor = s.ParentSession.Parent
	}
}
