package commands

import "github.com/dotcommander/zjj/internal/models"

// Exit codes per the core's external interface contract: the core itself
// returns typed errors; mapping them to a process exit status is this CLI's
// responsibility alone.
const (
	ExitSuccess            = 0
	ExitGenericError       = 1
	ExitUsage              = 2
	ExitPreconditionFailed = 3
	ExitExternalError      = 4
	ExitRemoteUnreachable  = 5
)

// ExitCodeFor maps a returned error to the process exit code a frontend
// should use. nil maps to ExitSuccess.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch err.(type) {
	case *models.ValidationError, *models.InvalidStateTransitionError,
		*models.SessionLockedError, *models.NotLockHolderError,
		*models.AlreadyInQueueError, *models.DedupeKeyConflictError,
		*models.QueueFullError, *models.CycleDetectedError,
		*models.ParentNotFoundError, *models.DepthExceededError,
		*models.AlreadyExistsError, *models.RepairNotImplementedError:
		return ExitPreconditionFailed
	case *models.JjCommandError, *models.JjWorkspaceConflictError, *models.IoError:
		return ExitExternalError
	case *models.NotFoundError, *models.SessionNotFoundError:
		return ExitGenericError
	case *models.DatabaseError:
		return ExitGenericError
	default:
		return ExitGenericError
	}
}
