package vcs

import (
	"fmt"
	"strings"

	"github.com/dotcommander/zjj/internal/models"
)

// classifyConflict scans stderr line by line for the same substrings the
// original implementation's detect_workspace_conflict used, returning the
// conflict type of the first matching line, or "" if nothing matched.
func classifyConflict(stderr string) models.JjWorkspaceConflictType {
	for _, line := range strings.Split(stderr, "\n") {
		l := strings.ToLower(line)
		switch {
		case strings.Contains(l, "already exists"),
			strings.Contains(l, "workspace already added"),
			strings.Contains(l, "already added"):
			return models.JjConflictAlreadyExists
		case strings.Contains(l, "concurrent"),
			strings.Contains(l, "simultaneous"),
			strings.Contains(l, "locked"):
			return models.JjConflictConcurrentModification
		case strings.Contains(l, "abandoned"):
			return models.JjConflictAbandoned
		case strings.Contains(l, "working copy"),
			strings.Contains(l, "out of sync"),
			strings.Contains(l, "stale"):
			return models.JjConflictStale
		}
	}
	return ""
}

// recoveryHint builds the actionable hint text for a classified conflict.
func recoveryHint(conflictType models.JjWorkspaceConflictType, workspaceName string) string {
	switch conflictType {
	case models.JjConflictAlreadyExists:
		return fmt.Sprintf(
			"Recovery options:\n1. Use the existing workspace: jj workspace list\n2. Forget the existing workspace first: jj workspace forget %s\n3. Use a different workspace name",
			workspaceName)
	case models.JjConflictConcurrentModification:
		return "Recovery options:\n1. Wait a moment and retry the operation\n2. Check for other jj processes: pgrep -fl jj\n3. Verify workspace state: jj workspace list"
	case models.JjConflictAbandoned:
		return fmt.Sprintf(
			"Recovery options:\n1. Abandon this workspace: jj workspace forget %s\n2. Create a new workspace with a different name\n3. Check repository status: jj status",
			workspaceName)
	case models.JjConflictStale:
		return "Recovery options:\n1. Update the workspace: jj workspace update-stale\n2. Reload the repository: jj reload\n3. Check for conflicts: jj status"
	default:
		return ""
	}
}

// classifyError turns a failed jj invocation into either a
// *models.JjWorkspaceConflictError (stderr matched a known logical-failure
// pattern) or a *models.JjCommandError (transport/process failure, or stderr
// that matched nothing recognizable). correlationID ties the returned error
// back to the debug line CLIDriver.run logged for this invocation.
func classifyError(operation, workspaceName, stderr, correlationID string, runErr error) error {
	if conflictType := classifyConflict(stderr); conflictType != "" {
		return &models.JjWorkspaceConflictError{
			ConflictType:  conflictType,
			WorkspaceName: workspaceName,
			Source:        stderr,
			RecoveryHint:  recoveryHint(conflictType, workspaceName),
		}
	}
	return &models.JjCommandError{
		Operation:     operation,
		Source:        stderr,
		IsNotFound:    isNotFoundErr(runErr),
		CorrelationID: correlationID,
	}
}

func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "executable file not found")
}
