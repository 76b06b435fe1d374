package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewQueueCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewQueueCmd()
	require.Equal(t, "queue", cmd.Use)

	for _, name := range []string{
		"submit", "next", "claim", "start", "merging", "complete", "fail",
		"reset-for-rebase", "abandon", "get", "list", "record-conflict", "list-conflicts",
	} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.NotNil(t, sub)
		require.Equal(t, name, sub.Name())
	}
}

func TestParseQueueID_RejectsNonNumeric(t *testing.T) {
	_, err := parseQueueID("not-a-number")
	require.Error(t, err)
}

func TestParseQueueID_AcceptsNumeric(t *testing.T) {
	id, err := parseQueueID("42")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestNewQueueRecordConflictCmd_RequiresSessionFileStrategy(t *testing.T) {
	cmd := newQueueRecordConflictCmd()
	require.NotNil(t, cmd.Flags().Lookup("session"))
	require.NotNil(t, cmd.Flags().Lookup("file"))
	require.NotNil(t, cmd.Flags().Lookup("strategy"))
}
