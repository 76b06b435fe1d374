package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/zjj/internal/vcs"
)

func TestCreateWorkspaceAddsThroughDriver(t *testing.T) {
	driver := vcs.NewFakeDriver()
	path := filepath.Join(t.TempDir(), "ws")
	require.NoError(t, os.MkdirAll(path, 0o755))

	guard, err := CreateWorkspace(context.Background(), driver, "ws", path)
	require.NoError(t, err)
	require.True(t, guard.Armed())

	list, err := driver.WorkspaceList(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestGuardReleaseForgetsAndRemovesDirectory(t *testing.T) {
	driver := vcs.NewFakeDriver()
	path := filepath.Join(t.TempDir(), "ws")
	require.NoError(t, os.MkdirAll(path, 0o755))

	guard, err := CreateWorkspace(context.Background(), driver, "ws", path)
	require.NoError(t, err)

	guard.Release(context.Background())
	require.False(t, guard.Armed())

	list, err := driver.WorkspaceList(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestGuardDisarmPreventsRelease(t *testing.T) {
	driver := vcs.NewFakeDriver()
	path := filepath.Join(t.TempDir(), "ws")
	require.NoError(t, os.MkdirAll(path, 0o755))

	guard, err := CreateWorkspace(context.Background(), driver, "ws", path)
	require.NoError(t, err)

	guard.Disarm()
	guard.Release(context.Background())

	list, err := driver.WorkspaceList(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1, "disarmed guard must not release the workspace")

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "directory must survive a disarmed release")
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	driver := vcs.NewFakeDriver()
	path := filepath.Join(t.TempDir(), "ws")
	require.NoError(t, os.MkdirAll(path, 0o755))

	guard, err := CreateWorkspace(context.Background(), driver, "ws", path)
	require.NoError(t, err)

	guard.Release(context.Background())
	require.NotPanics(t, func() { guard.Release(context.Background()) })
}

func TestGuardReleaseOnPanicRePanicsAfterCleanup(t *testing.T) {
	driver := vcs.NewFakeDriver()
	path := filepath.Join(t.TempDir(), "ws")
	require.NoError(t, os.MkdirAll(path, 0o755))

	run := func() {
		guard, err := CreateWorkspace(context.Background(), driver, "ws", path)
		require.NoError(t, err)
		defer guard.ReleaseOnPanic(context.Background())
		panic("boom")
	}

	require.Panics(t, run)

	list, err := driver.WorkspaceList(context.Background())
	require.NoError(t, err)
	require.Empty(t, list, "panic path must still release the workspace before re-panicking")
}
