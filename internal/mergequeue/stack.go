package mergequeue

import (
	"github.com/dotcommander/zjj/internal/models"
)

// DefaultStackDepthCeiling bounds CalculateStackDepth traversal, per §4.4.4's
// "configurable ceiling (e.g., 64)".
const DefaultStackDepthCeiling = 64

// stackIndex is the bounded entry set keyed by workspace, built once per
// traversal call so CalculateStackDepth/FindStackRoot never touch the store.
type stackIndex map[string]*models.QueueEntry

func buildStackIndex(entries []*models.QueueEntry) stackIndex {
	idx := make(stackIndex, len(entries))
	for _, e := range entries {
		idx[e.Workspace] = e
	}
	return idx
}

// CalculateStackDepth follows parent_workspace pointers within entries,
// starting from workspace. Returns 0 for a root (no parent, or a parent
// outside the bounded set). Pure in-memory traversal — no store access.
func CalculateStackDepth(workspace string, entries []*models.QueueEntry, ceiling int) (int, error) {
	if ceiling <= 0 {
		ceiling = DefaultStackDepthCeiling
	}
	idx := buildStackIndex(entries)
	return calculateDepth(workspace, idx, ceiling, make(map[string]bool))
}

func calculateDepth(workspace string, idx stackIndex, ceiling int, visited map[string]bool) (int, error) {
	if visited[workspace] {
		return 0, &models.CycleDetectedError{Workspace: workspace}
	}
	visited[workspace] = true

	entry, ok := idx[workspace]
	if !ok {
		return 0, &models.ParentNotFoundError{Workspace: workspace}
	}
	if entry.ParentWorkspace == nil {
		return 0, nil
	}
	parent := *entry.ParentWorkspace
	if _, ok := idx[parent]; !ok {
		return 0, &models.ParentNotFoundError{Workspace: workspace, Parent: parent}
	}

	parentDepth, err := calculateDepth(parent, idx, ceiling, visited)
	if err != nil {
		return 0, err
	}
	if parentDepth+1 > ceiling {
		return 0, &models.DepthExceededError{Workspace: workspace, Ceiling: ceiling}
	}
	return parentDepth + 1, nil
}

// FindStackRoot returns the topmost ancestor of workspace within entries.
func FindStackRoot(workspace string, entries []*models.QueueEntry, ceiling int) (string, error) {
	if ceiling <= 0 {
		ceiling = DefaultStackDepthCeiling
	}
	idx := buildStackIndex(entries)
	return findRoot(workspace, idx, ceiling, make(map[string]bool))
}

func findRoot(workspace string, idx stackIndex, ceiling int, visited map[string]bool) (string, error) {
	if visited[workspace] {
		return "", &models.CycleDetectedError{Workspace: workspace}
	}
	visited[workspace] = true
	if len(visited) > ceiling+1 {
		return "", &models.DepthExceededError{Workspace: workspace, Ceiling: ceiling}
	}

	entry, ok := idx[workspace]
	if !ok {
		return "", &models.ParentNotFoundError{Workspace: workspace}
	}
	if entry.ParentWorkspace == nil {
		return workspace, nil
	}
	parent := *entry.ParentWorkspace
	if _, ok := idx[parent]; !ok {
		return "", &models.ParentNotFoundError{Workspace: workspace, Parent: parent}
	}
	return findRoot(parent, idx, ceiling, visited)
}

// DirectDependents returns the set of entries whose parent_workspace points
// directly at workspace — the invariant §4.4.4 requires: "Dependents list
// equals the set of direct children."
func DirectDependents(workspace string, entries []*models.QueueEntry) []string {
	var out []string
	for _, e := range entries {
		if e.ParentWorkspace != nil && *e.ParentWorkspace == workspace {
			out = append(out, e.Workspace)
		}
	}
	return out
}

func findEntryByWorkspace(entries []*models.QueueEntry, workspace string) *models.QueueEntry {
	for _, e := range entries {
		if e.Workspace == workspace {
			return e
		}
	}
	return nil
}
