package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWhatifCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewWhatifCmd()
	require.Equal(t, "whatif", cmd.Use)

	for _, name := range []string{"submission", "transition"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.NotNil(t, sub)
		require.Equal(t, name, sub.Name())
	}
}

func TestNewWhatifSubmissionCmd_HasParentWorkspaceFlag(t *testing.T) {
	cmd := newWhatifSubmissionCmd()
	require.NotNil(t, cmd.Flags().Lookup("parent-workspace"))
}
