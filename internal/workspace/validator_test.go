package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/zjj/internal/models"
)

func makeValidJjWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	opStore := filepath.Join(root, ".jj", "repo", "op_store")
	require.NoError(t, os.MkdirAll(opStore, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(opStore, "HEAD"), []byte("x"), 0o644))
	return root
}

func TestValidateMissingDirectory(t *testing.T) {
	v := NewValidator()
	result := v.Validate(context.Background(), "ws", filepath.Join(t.TempDir(), "does-not-exist"))
	require.False(t, result.IsValid)
	require.Len(t, result.Issues, 1)
	require.Equal(t, models.IssueMissingDirectory, result.Issues[0].Kind)
	require.Equal(t, models.SeverityCritical, *result.MaxSeverity)
	require.Equal(t, models.RepairForgetAndRecreate, result.Issues[0].Recommends)
}

func TestValidateMissingJjDir(t *testing.T) {
	root := t.TempDir()
	v := NewValidator()
	result := v.Validate(context.Background(), "ws", root)
	require.False(t, result.IsValid)
	require.Equal(t, models.IssueMissingJjDir, result.Issues[0].Kind)
	require.Equal(t, models.RepairRecreateWorkspace, result.Issues[0].Recommends)
}

func TestValidateCorruptedJjDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".jj"), 0o755))
	v := NewValidator()
	result := v.Validate(context.Background(), "ws", root)
	require.False(t, result.IsValid)
	require.Equal(t, models.IssueCorruptedJjDir, result.Issues[0].Kind)
	require.Equal(t, models.RepairForgetAndRecreate, result.Issues[0].Recommends)
}

func TestValidateHealthyWorkspace(t *testing.T) {
	root := makeValidJjWorkspace(t)
	v := NewValidator()
	result := v.Validate(context.Background(), "ws", root)
	require.True(t, result.IsValid)
	require.Empty(t, result.Issues)
}

func TestValidateStaleLock(t *testing.T) {
	root := makeValidJjWorkspace(t)
	lockDir := filepath.Join(root, ".jj", "working_copy")
	require.NoError(t, os.MkdirAll(lockDir, 0o755))
	lockPath := filepath.Join(lockDir, "lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("x"), 0o644))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	v := NewValidator()
	result := v.Validate(context.Background(), "ws", root)
	require.True(t, result.IsValid, "stale lock is a warning, not a failure")
	require.Len(t, result.Issues, 1)
	require.Equal(t, models.IssueStaleLocks, result.Issues[0].Kind)
	require.Equal(t, models.SeverityWarn, result.Issues[0].Severity)
	require.Equal(t, models.RepairClearLocks, result.Issues[0].Recommends)
}

func TestValidateFreshLockIsNotFlagged(t *testing.T) {
	root := makeValidJjWorkspace(t)
	lockDir := filepath.Join(root, ".jj", "working_copy")
	require.NoError(t, os.MkdirAll(lockDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lockDir, "lock"), []byte("x"), 0o644))

	v := NewValidator()
	result := v.Validate(context.Background(), "ws", root)
	require.True(t, result.IsValid)
	require.Empty(t, result.Issues)
}

func TestValidateAllBoundedParallelism(t *testing.T) {
	v := NewValidator()
	var workspaces []models.WorkspaceInfo
	for i := 0; i < 25; i++ {
		workspaces = append(workspaces, models.WorkspaceInfo{
			Name: "ws", Path: makeValidJjWorkspace(t),
		})
	}
	results, err := v.ValidateAll(context.Background(), workspaces)
	require.NoError(t, err)
	require.Len(t, results, 25)
	for _, r := range results {
		require.True(t, r.IsValid)
	}
}
