package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecute_CommandTreeIsRegistered(t *testing.T) {
	t.Setenv("ZJJ_DATA_ROOT", t.TempDir())

	require.Equal(t, "session", NewSessionCmd().Name())
	require.Equal(t, "lock", NewLockCmd().Name())
	require.Equal(t, "queue", NewQueueCmd().Name())
	require.Equal(t, "workspace", NewWorkspaceCmd().Name())
	require.Equal(t, "doctor", NewDoctorCmd().Name())
	require.Equal(t, "whatif", NewWhatifCmd().Name())
}
