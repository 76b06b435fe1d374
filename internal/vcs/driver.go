// Package vcs abstracts the jj version-control operations the coordination
// kernel needs: workspace add/forget/list, status, diff stats, and the small
// set of read/commit operations a merge attempt performs. CLIDriver shells
// out to the real jj binary; FakeDriver backs tests that exercise the
// business-logic layers above this package without a jj installation.
package vcs

import (
	"context"

	"github.com/dotcommander/zjj/internal/models"
)

// Driver is the VCS operation surface every collaborator above this package
// depends on through this interface, never on CLIDriver directly.
type Driver interface {
	WorkspaceAdd(ctx context.Context, name, path string) error
	WorkspaceForget(ctx context.Context, name string) error
	WorkspaceList(ctx context.Context) ([]models.WorkspaceInfo, error)
	WorkspaceStatus(ctx context.Context, path string) (models.ChangesSummary, error)
	WorkspaceDiffStat(ctx context.Context, path string) (models.DiffStat, error)
	CurrentChangeID(ctx context.Context, path string) (string, error)
	CurrentCommitID(ctx context.Context, path string) (string, error)
	CurrentBookmarks(ctx context.Context, path string) ([]string, error)
	Commit(ctx context.Context, path, message string) error
	Edit(ctx context.Context, path, rev string) error
	PushBookmark(ctx context.Context, path, bookmark string) error
}
