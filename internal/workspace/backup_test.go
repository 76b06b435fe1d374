package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateBackupCopiesTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("world"), 0o644))

	dataRoot := t.TempDir()
	mgr := NewBackupManager(dataRoot)

	id, err := mgr.CreateBackup(context.Background(), "ws", src)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	content, err := os.ReadFile(filepath.Join(dataRoot, "backups", id, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))

	content, err = os.ReadFile(filepath.Join(dataRoot, "backups", id, "sub", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "world", string(content))
}

func TestListBackupsReturnsMetadataOnly(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644))
	dataRoot := t.TempDir()
	mgr := NewBackupManager(dataRoot)

	id, err := mgr.CreateBackup(context.Background(), "ws-1", src)
	require.NoError(t, err)

	list, err := mgr.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, id, list[0].ID)
	require.Equal(t, "ws-1", list[0].Workspace)
	require.False(t, list[0].CreatedAt.IsZero())
}

func TestListBackupsEmptyWhenNoneExist(t *testing.T) {
	mgr := NewBackupManager(t.TempDir())
	list, err := mgr.ListBackups(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRestoreBackupCopiesBack(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644))
	dataRoot := t.TempDir()
	mgr := NewBackupManager(dataRoot)

	id, err := mgr.CreateBackup(context.Background(), "ws", src)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, mgr.RestoreBackup(context.Background(), id, dest))

	content, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func TestRestoreBackupUnknownIDFails(t *testing.T) {
	mgr := NewBackupManager(t.TempDir())
	err := mgr.RestoreBackup(context.Background(), "does-not-exist", t.TempDir())
	require.Error(t, err)
}
