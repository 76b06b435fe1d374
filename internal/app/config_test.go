package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataRoot_DefaultsToRepoLocalDotZjj(t *testing.T) {
	dir := t.TempDir()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	root, err := DataRoot()
	require.NoError(t, err)
	require.DirExists(t, root)
	require.Equal(t, filepath.Base(root), defaultDataRoot)
}

func TestDataRoot_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "custom-root")
	t.Setenv("ZJJ_DATA_ROOT", custom)

	root, err := DataRoot()
	require.NoError(t, err)
	require.DirExists(t, root)
}

func TestEnsureDataRoot_CreatesSubdirsAndDefaultConfigOnlyWhenMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZJJ_DATA_ROOT", filepath.Join(dir, ".zjj"))

	require.NoError(t, EnsureDataRoot())

	root, err := DataRoot()
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(root, "workspaces"))
	require.DirExists(t, filepath.Join(root, "backups"))

	configFile := filepath.Join(root, "config.yaml")
	b, err := os.ReadFile(configFile)
	require.NoError(t, err)
	require.Equal(t, defaultConfig, string(b))

	custom := []byte("data_root: /tmp/custom\n")
	require.NoError(t, os.WriteFile(configFile, custom, 0o600))

	require.NoError(t, EnsureDataRoot())

	b, err = os.ReadFile(configFile)
	require.NoError(t, err)
	require.Equal(t, string(custom), string(b))
}
