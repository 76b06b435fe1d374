package commands

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/zjj/internal/models"
)

func TestExitCodeFor_Nil(t *testing.T) {
	require.Equal(t, ExitSuccess, ExitCodeFor(nil))
}

func TestExitCodeFor_PreconditionFailed(t *testing.T) {
	require.Equal(t, ExitPreconditionFailed, ExitCodeFor(&models.ValidationError{}))
	require.Equal(t, ExitPreconditionFailed, ExitCodeFor(&models.SessionLockedError{}))
	require.Equal(t, ExitPreconditionFailed, ExitCodeFor(&models.RepairNotImplementedError{Strategy: "recreate_workspace"}))
}

func TestExitCodeFor_ExternalError(t *testing.T) {
	require.Equal(t, ExitExternalError, ExitCodeFor(&models.JjCommandError{}))
}

func TestExitCodeFor_GenericFallback(t *testing.T) {
	require.Equal(t, ExitGenericError, ExitCodeFor(&models.SessionNotFoundError{}))
}
