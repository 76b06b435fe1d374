package models

import (
	"errors"
	"fmt"
)

// ValidationError surfaces a rejected input (session/workspace name, queue
// submission field, conflict-resolution field). Never retried.
type ValidationError struct {
	Field       string
	Message     string
	Constraints string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %q: %s", e.Field, e.Message)
}
func (e *ValidationError) ErrorCode() string { return "VALIDATION_ERROR" }
func (e *ValidationError) Context() map[string]string {
	return map[string]string{"field": e.Field, "constraints": e.Constraints}
}
func (e *ValidationError) SuggestedAction() string {
	return "correct the input and retry; this error is never transient"
}

var ErrValidation = errors.New("validation error")

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AlreadyExistsError is returned when a session name collides with an existing row.
type AlreadyExistsError struct {
	Kind string
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}
func (e *AlreadyExistsError) ErrorCode() string { return "ALREADY_EXISTS" }
func (e *AlreadyExistsError) Context() map[string]string {
	return map[string]string{"kind": e.Kind, "name": e.Name}
}
func (e *AlreadyExistsError) SuggestedAction() string {
	return "use a different name, or operate on the existing one"
}

var ErrAlreadyExists = errors.New("already exists")

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// NotFoundError is returned when a named entity does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.Name) }
func (e *NotFoundError) ErrorCode() string { return "NOT_FOUND" }
func (e *NotFoundError) Context() map[string]string {
	return map[string]string{"kind": e.Kind, "name": e.Name}
}
func (e *NotFoundError) SuggestedAction() string { return "verify the name and retry" }

var ErrNotFound = errors.New("not found")

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidStateTransitionError is returned when a state machine rejects a transition.
type InvalidStateTransitionError struct {
	Machine string
	From    string
	To      string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s: invalid transition from %q to %q", e.Machine, e.From, e.To)
}
func (e *InvalidStateTransitionError) ErrorCode() string { return "INVALID_STATE_TRANSITION" }
func (e *InvalidStateTransitionError) Context() map[string]string {
	return map[string]string{"machine": e.Machine, "from": e.From, "to": e.To}
}
func (e *InvalidStateTransitionError) SuggestedAction() string {
	return "check valid_next_states before transitioning"
}

var ErrInvalidStateTransition = errors.New("invalid state transition")

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// OperationNotAllowedError is returned when a session's current status does
// not permit the requested operation (see SessionStatus.AllowedOperations).
type OperationNotAllowedError struct {
	Session   string
	Operation string
	Status    string
}

func (e *OperationNotAllowedError) Error() string {
	return fmt.Sprintf("operation %q not allowed against session %q in status %q", e.Operation, e.Session, e.Status)
}
func (e *OperationNotAllowedError) ErrorCode() string { return "OPERATION_NOT_ALLOWED" }
func (e *OperationNotAllowedError) Context() map[string]string {
	return map[string]string{"session": e.Session, "operation": e.Operation, "status": e.Status}
}
func (e *OperationNotAllowedError) SuggestedAction() string {
	return "check the session's status before retrying this operation"
}

var ErrOperationNotAllowed = errors.New("operation not allowed")

func (e *OperationNotAllowedError) Is(target error) bool {
	return target == ErrOperationNotAllowed
}

// SessionLockedError is returned by the lock manager when another agent holds
// the lease.
type SessionLockedError struct {
	Session string
	Holder  string
}

func (e *SessionLockedError) Error() string {
	return fmt.Sprintf("session %q is locked by %q", e.Session, e.Holder)
}
func (e *SessionLockedError) ErrorCode() string { return "SESSION_LOCKED" }
func (e *SessionLockedError) Context() map[string]string {
	return map[string]string{"session": e.Session, "holder": e.Holder}
}
func (e *SessionLockedError) SuggestedAction() string {
	return "wait for the TTL to expire or have the holder unlock"
}

var ErrSessionLocked = errors.New("session locked")

func (e *SessionLockedError) Is(target error) bool { return target == ErrSessionLocked }

// NotLockHolderError is returned when a caller who does not hold the lease
// attempts to unlock or heartbeat it.
type NotLockHolderError struct {
	Session string
	AgentID string
}

func (e *NotLockHolderError) Error() string {
	return fmt.Sprintf("%q is not the lock holder for session %q", e.AgentID, e.Session)
}
func (e *NotLockHolderError) ErrorCode() string { return "NOT_LOCK_HOLDER" }
func (e *NotLockHolderError) Context() map[string]string {
	return map[string]string{"session": e.Session, "agent_id": e.AgentID}
}
func (e *NotLockHolderError) SuggestedAction() string { return "only the lock holder may do this" }

var ErrNotLockHolder = errors.New("not lock holder")

func (e *NotLockHolderError) Is(target error) bool { return target == ErrNotLockHolder }

// SessionNotFoundError is returned by the lock manager when the session does
// not exist in the registry.
type SessionNotFoundError struct {
	Session string
}

func (e *SessionNotFoundError) Error() string { return fmt.Sprintf("session %q not found", e.Session) }
func (e *SessionNotFoundError) ErrorCode() string { return "SESSION_NOT_FOUND" }
func (e *SessionNotFoundError) Context() map[string]string {
	return map[string]string{"session": e.Session}
}
func (e *SessionNotFoundError) SuggestedAction() string { return "create the session first" }

var ErrSessionNotFound = errors.New("session not found")

func (e *SessionNotFoundError) Is(target error) bool { return target == ErrSessionNotFound }

// AlreadyInQueueError is returned by submit when the workspace already has an
// active entry under a different dedupe key.
type AlreadyInQueueError struct {
	Workspace       string
	ExistingDedupe  string
	ProvidedDedupe  string
}

func (e *AlreadyInQueueError) Error() string {
	return fmt.Sprintf("workspace %q already queued under dedupe key %q (provided %q)",
		e.Workspace, e.ExistingDedupe, e.ProvidedDedupe)
}
func (e *AlreadyInQueueError) ErrorCode() string { return "ALREADY_IN_QUEUE" }
func (e *AlreadyInQueueError) Context() map[string]string {
	return map[string]string{
		"workspace":       e.Workspace,
		"existing_dedupe": e.ExistingDedupe,
		"provided_dedupe": e.ProvidedDedupe,
	}
}
func (e *AlreadyInQueueError) SuggestedAction() string {
	return "resubmit with the existing dedupe key, or wait for the entry to finish"
}

var ErrAlreadyInQueue = errors.New("already in queue")

func (e *AlreadyInQueueError) Is(target error) bool { return target == ErrAlreadyInQueue }

// DedupeKeyConflictError is returned by submit when the dedupe key already
// belongs to a different active workspace.
type DedupeKeyConflictError struct {
	DedupeKey        string
	ExistingWorkspace string
	ProvidedWorkspace string
}

func (e *DedupeKeyConflictError) Error() string {
	return fmt.Sprintf("dedupe key %q belongs to workspace %q, not %q",
		e.DedupeKey, e.ExistingWorkspace, e.ProvidedWorkspace)
}
func (e *DedupeKeyConflictError) ErrorCode() string { return "DEDUPE_KEY_CONFLICT" }
func (e *DedupeKeyConflictError) Context() map[string]string {
	return map[string]string{
		"dedupe_key":         e.DedupeKey,
		"existing_workspace": e.ExistingWorkspace,
		"provided_workspace": e.ProvidedWorkspace,
	}
}
func (e *DedupeKeyConflictError) SuggestedAction() string {
	return "the change id is already tracked under a different workspace; verify which is correct"
}

var ErrDedupeKeyConflict = errors.New("dedupe key conflict")

func (e *DedupeKeyConflictError) Is(target error) bool { return target == ErrDedupeKeyConflict }

// QueueFullError is returned when the queue has reached its configured capacity.
type QueueFullError struct {
	Capacity int
	Current  int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("queue full: %d/%d", e.Current, e.Capacity)
}
func (e *QueueFullError) ErrorCode() string { return "QUEUE_FULL" }
func (e *QueueFullError) Context() map[string]string {
	return map[string]string{
		"capacity": fmt.Sprint(e.Capacity),
		"current":  fmt.Sprint(e.Current),
	}
}
func (e *QueueFullError) SuggestedAction() string { return "wait for entries to complete" }

var ErrQueueFull = errors.New("queue full")

func (e *QueueFullError) Is(target error) bool { return target == ErrQueueFull }

// CycleDetectedError is returned by stack traversal when a parent_workspace
// chain revisits a member.
type CycleDetectedError struct {
	Workspace string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("cycle detected while traversing stack from %q", e.Workspace)
}
func (e *CycleDetectedError) ErrorCode() string { return "CYCLE_DETECTED" }
func (e *CycleDetectedError) Context() map[string]string {
	return map[string]string{"workspace": e.Workspace}
}
func (e *CycleDetectedError) SuggestedAction() string { return "break the parent_workspace cycle" }

var ErrCycleDetected = errors.New("cycle detected")

func (e *CycleDetectedError) Is(target error) bool { return target == ErrCycleDetected }

// ParentNotFoundError is returned by stack traversal when a referenced parent
// is absent from the bounded entry set.
type ParentNotFoundError struct {
	Workspace string
	Parent    string
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("parent workspace %q of %q not found in entry set", e.Parent, e.Workspace)
}
func (e *ParentNotFoundError) ErrorCode() string { return "PARENT_NOT_FOUND" }
func (e *ParentNotFoundError) Context() map[string]string {
	return map[string]string{"workspace": e.Workspace, "parent": e.Parent}
}
func (e *ParentNotFoundError) SuggestedAction() string {
	return "ensure the parent entry is included in the traversal set"
}

var ErrParentNotFound = errors.New("parent not found")

func (e *ParentNotFoundError) Is(target error) bool { return target == ErrParentNotFound }

// DepthExceededError is returned by stack traversal past the configured ceiling.
type DepthExceededError struct {
	Workspace string
	Ceiling   int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("stack depth for %q exceeds ceiling %d", e.Workspace, e.Ceiling)
}
func (e *DepthExceededError) ErrorCode() string { return "DEPTH_EXCEEDED" }
func (e *DepthExceededError) Context() map[string]string {
	return map[string]string{"workspace": e.Workspace, "ceiling": fmt.Sprint(e.Ceiling)}
}
func (e *DepthExceededError) SuggestedAction() string { return "flatten or split the dependent stack" }

var ErrDepthExceeded = errors.New("depth exceeded")

func (e *DepthExceededError) Is(target error) bool { return target == ErrDepthExceeded }

// DatabaseError wraps a store-layer failure that is not one of the typed
// conditions above.
type DatabaseError struct {
	Message string
}

func (e *DatabaseError) Error() string       { return fmt.Sprintf("database error: %s", e.Message) }
func (e *DatabaseError) ErrorCode() string   { return "DATABASE_ERROR" }
func (e *DatabaseError) Context() map[string]string { return map[string]string{"message": e.Message} }
func (e *DatabaseError) SuggestedAction() string {
	return "idempotent operations may be retried; others should be inspected"
}

var ErrDatabase = errors.New("database error")

func (e *DatabaseError) Is(target error) bool { return target == ErrDatabase }

// JjCommandError is returned on transport/process failure invoking the VCS driver.
// CorrelationID ties the error back to the debug-level log line CLIDriver
// emitted for the same invocation, so an operator can find the exact process
// run behind a failure in aggregated logs.
type JjCommandError struct {
	Operation     string
	Source        string
	IsNotFound    bool
	CorrelationID string
}

func (e *JjCommandError) Error() string {
	return fmt.Sprintf("jj command failed during %s [%s]: %s", e.Operation, e.CorrelationID, e.Source)
}
func (e *JjCommandError) ErrorCode() string { return "JJ_COMMAND_ERROR" }
func (e *JjCommandError) Context() map[string]string {
	return map[string]string{
		"operation":      e.Operation,
		"source":         e.Source,
		"is_not_found":   fmt.Sprint(e.IsNotFound),
		"correlation_id": e.CorrelationID,
	}
}
func (e *JjCommandError) SuggestedAction() string {
	if e.IsNotFound {
		return "verify the jj binary is installed and on PATH"
	}
	return "inspect the underlying process failure"
}

var ErrJjCommand = errors.New("jj command error")

func (e *JjCommandError) Is(target error) bool { return target == ErrJjCommand }

// JjWorkspaceConflict classifies a logical failure from the VCS driver.
type JjWorkspaceConflictType string

const (
	JjConflictAlreadyExists        JjWorkspaceConflictType = "already_exists"
	JjConflictConcurrentModification JjWorkspaceConflictType = "concurrent_modification"
	JjConflictAbandoned            JjWorkspaceConflictType = "abandoned"
	JjConflictStale                JjWorkspaceConflictType = "stale"
)

type JjWorkspaceConflictError struct {
	ConflictType  JjWorkspaceConflictType
	WorkspaceName string
	Source        string
	RecoveryHint  string
}

func (e *JjWorkspaceConflictError) Error() string {
	return fmt.Sprintf("workspace %q conflict (%s): %s", e.WorkspaceName, e.ConflictType, e.Source)
}
func (e *JjWorkspaceConflictError) ErrorCode() string { return "JJ_WORKSPACE_CONFLICT" }
func (e *JjWorkspaceConflictError) Context() map[string]string {
	return map[string]string{
		"conflict_type":  string(e.ConflictType),
		"workspace_name": e.WorkspaceName,
		"source":         e.Source,
	}
}
func (e *JjWorkspaceConflictError) SuggestedAction() string { return e.RecoveryHint }

var ErrJjWorkspaceConflict = errors.New("jj workspace conflict")

func (e *JjWorkspaceConflictError) Is(target error) bool { return target == ErrJjWorkspaceConflict }

// IoError wraps a filesystem failure. Recovery is never attempted inside the core.
type IoError struct {
	Op      string
	Path    string
	Message string
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error during %s on %s: %s", e.Op, e.Path, e.Message)
}
func (e *IoError) ErrorCode() string { return "IO_ERROR" }
func (e *IoError) Context() map[string]string {
	return map[string]string{"op": e.Op, "path": e.Path}
}
func (e *IoError) SuggestedAction() string { return "inspect filesystem permissions and retry" }

var ErrIo = errors.New("io error")

func (e *IoError) Is(target error) bool { return target == ErrIo }

// ParseError is returned when a timestamp, bookmark, or similar value fails to parse.
type ParseError struct {
	Kind  string
	Value string
}

func (e *ParseError) Error() string { return fmt.Sprintf("failed to parse %s: %q", e.Kind, e.Value) }
func (e *ParseError) ErrorCode() string { return "PARSE_ERROR" }
func (e *ParseError) Context() map[string]string {
	return map[string]string{"kind": e.Kind, "value": e.Value}
}
func (e *ParseError) SuggestedAction() string { return "check the source value's format" }

var ErrParse = errors.New("parse error")

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// RepairNotImplementedError is returned when a repair strategy has been selected but
// has no executor implementation yet, rather than the caller silently observing success.
type RepairNotImplementedError struct {
	Strategy string
}

func (e *RepairNotImplementedError) Error() string {
	return fmt.Sprintf("repair strategy %q is not yet implemented", e.Strategy)
}
func (e *RepairNotImplementedError) ErrorCode() string { return "REPAIR_NOT_IMPLEMENTED" }
func (e *RepairNotImplementedError) Context() map[string]string {
	return map[string]string{"strategy": e.Strategy}
}
func (e *RepairNotImplementedError) SuggestedAction() string {
	return "pick a lower-risk repair strategy or repair manually"
}

var ErrRepairNotImplemented = errors.New("repair not implemented")

func (e *RepairNotImplementedError) Is(target error) bool { return target == ErrRepairNotImplemented }
