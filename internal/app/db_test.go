package app

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func resetSettingsStateForTest() {
	settingsOnce = sync.Once{}
	settings = Settings{}
	settingsErr = nil
	SetDataRootOverride("")
}

func TestGetDBPath_PrioritizesCLIOverride(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("ZJJ_DATA_ROOT", filepath.Join(home, "env-root"))

	overrideRoot := filepath.Join(home, "cli-root")
	SetDataRootOverride(overrideRoot)

	resolved, err := GetDBPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(overrideRoot, "state.db"), resolved)
}

func TestGetDBPath_UsesEnvWithoutOverride(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	envRoot := filepath.Join(home, "env-root")
	t.Setenv("ZJJ_DATA_ROOT", envRoot)

	resolved, err := GetDBPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(envRoot, "state.db"), resolved)
}

func TestResolveDBPathDetailed_ReportsSourceForEnv(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	envRoot := filepath.Join(home, "env-root")
	t.Setenv("ZJJ_DATA_ROOT", envRoot)

	resolved, source, err := ResolveDBPathDetailed()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(envRoot, "state.db"), resolved)
	require.Equal(t, "env(ZJJ_DATA_ROOT)", source)
}
