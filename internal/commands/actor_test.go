package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newActorTestCmd(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("agent", "", "")
	cmd.Flags().String("worker", "", "")
	return cmd
}

func TestResolveAgentName_Precedence(t *testing.T) {
	cmd := newActorTestCmd(t)
	t.Setenv("ZJJ_AGENT", "env-agent")
	require.NoError(t, cmd.Flags().Set("agent", "global-agent"))
	require.NoError(t, cmd.Flags().Set("worker", "per-cmd-agent"))

	got := resolveAgentName(cmd, "worker")
	require.Equal(t, "per-cmd-agent", got)
}

func TestResolveAgentName_FallsBackToGlobalFlag(t *testing.T) {
	cmd := newActorTestCmd(t)
	t.Setenv("ZJJ_AGENT", "env-agent")
	require.NoError(t, cmd.Flags().Set("agent", "global-agent"))

	got := resolveAgentName(cmd, "worker")
	require.Equal(t, "global-agent", got)
}

func TestResolveAgentName_UsesEnvFallback(t *testing.T) {
	cmd := newActorTestCmd(t)
	t.Setenv("ZJJ_AGENT", "env-agent")

	got := resolveAgentName(cmd, "worker")
	require.Equal(t, "env-agent", got)
}

func TestResolveAgentName_TrimsWhitespace(t *testing.T) {
	cmd := newActorTestCmd(t)
	t.Setenv("ZJJ_AGENT", "  spaced-agent  ")

	got := resolveAgentName(cmd, "worker")
	require.Equal(t, "spaced-agent", got)
}

func TestRequireAgentName_ErrorWhenMissing(t *testing.T) {
	cmd := newActorTestCmd(t)
	t.Setenv("ZJJ_AGENT", "")

	got, err := requireAgentName(cmd, "worker")
	require.Error(t, err)
	require.Empty(t, got)
	require.Contains(t, err.Error(), "agent is required")
}

func TestRequireAgentName_ErrorWhenTooLong(t *testing.T) {
	cmd := newActorTestCmd(t)
	long := make([]byte, maxAgentNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, cmd.Flags().Set("agent", string(long)))

	got, err := requireAgentName(cmd, "worker")
	require.Error(t, err)
	require.Empty(t, got)
	require.Contains(t, err.Error(), "exceeds maximum length")
}
