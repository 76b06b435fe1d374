package whatif

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/zjj/internal/mergequeue"
	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/registry"
)

func TestPreviewSubmissionNoParentIsIndependent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	preview, err := PreviewSubmission(ctx, db, "root-ws", "root-ws:sha1", nil)
	require.NoError(t, err)
	require.False(t, preview.WouldDedupe)
	require.Equal(t, 0, preview.StackDepth)
	require.Equal(t, models.StackMergeStateIndependent, preview.StackMergeState)
	require.Nil(t, preview.StackRoot)
}

func TestPreviewSubmissionDetectsDedupe(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := mergequeue.Submit(ctx, db, mergequeue.Submission{
		Workspace: "ws-a", DedupeKey: "ws-a:sha1", HeadSHA: "sha1", MaxAttempts: 3,
	}, mergequeue.DefaultStackDepthCeiling)
	require.NoError(t, err)

	preview, err := PreviewSubmission(ctx, db, "ws-b", "ws-a:sha1", nil)
	require.NoError(t, err)
	require.True(t, preview.WouldDedupe)
	require.NotNil(t, preview.ExistingEntryID)
}

func TestPreviewSubmissionComputesStackDepthAgainstExistingParent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := mergequeue.Submit(ctx, db, mergequeue.Submission{
		Workspace: "root-ws", DedupeKey: "root-ws:sha1", HeadSHA: "sha1", MaxAttempts: 3,
	}, mergequeue.DefaultStackDepthCeiling)
	require.NoError(t, err)

	root := "root-ws"
	preview, err := PreviewSubmission(ctx, db, "child-ws", "child-ws:sha2", &root)
	require.NoError(t, err)
	require.Equal(t, 1, preview.StackDepth)
	require.NotNil(t, preview.StackRoot)
	require.Equal(t, "root-ws", *preview.StackRoot)
	require.Equal(t, models.StackMergeStateWaitingForParent, preview.StackMergeState)
}

func TestPreviewStatusTransitionLegal(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := registry.Create(ctx, db, "/tmp/root", "my-session")
	require.NoError(t, err)

	preview, err := PreviewStatusTransition(ctx, db, "my-session", models.SessionStatusActive)
	require.NoError(t, err)
	require.True(t, preview.Legal)
	require.Empty(t, preview.Reason)
}

func TestPreviewStatusTransitionIllegal(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := registry.Create(ctx, db, "/tmp/root", "my-session")
	require.NoError(t, err)

	// my-session starts in Creating; Paused is not a legal next state from there.
	preview, err := PreviewStatusTransition(ctx, db, "my-session", models.SessionStatusPaused)
	require.NoError(t, err)
	require.False(t, preview.Legal)
	require.NotEmpty(t, preview.Reason)
}
