// Package models holds the entities and state machines shared across the
// store, lock manager, session registry, merge queue, and workspace
// integrity components. None of the types here perform I/O.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// LifecycleState is the generic contract every state machine in this package
// implements: ValidNextStates, CanTransitionTo, IsTerminal, AllStates.
type LifecycleState[T comparable] interface {
	ValidNextStates() []T
	CanTransitionTo(next T) bool
	IsTerminal() bool
}

// SessionStatus is the lifecycle of a Session's ownership/activity state.
type SessionStatus string

const (
	SessionStatusCreating  SessionStatus = "creating"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// AllSessionStatuses lists every SessionStatus value.
func AllSessionStatuses() []SessionStatus {
	return []SessionStatus{
		SessionStatusCreating, SessionStatusActive, SessionStatusPaused,
		SessionStatusCompleted, SessionStatusFailed,
	}
}

func (s SessionStatus) AllStates() []SessionStatus { return AllSessionStatuses() }

// ValidNextStates returns the legal next statuses for s.
func (s SessionStatus) ValidNextStates() []SessionStatus {
	switch s {
	case SessionStatusCreating:
		return []SessionStatus{SessionStatusActive, SessionStatusFailed}
	case SessionStatusActive:
		return []SessionStatus{SessionStatusPaused, SessionStatusCompleted}
	case SessionStatusPaused:
		return []SessionStatus{SessionStatusActive, SessionStatusCompleted}
	case SessionStatusCompleted, SessionStatusFailed:
		return nil
	default:
		return nil
	}
}

// CanTransitionTo reports whether s may transition to next. Self-transitions
// are always forbidden, even for non-terminal states.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s == next {
		return false
	}
	for _, v := range s.ValidNextStates() {
		if v == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// Operation is a kind of access a caller may attempt against a session.
type Operation string

const (
	OperationStatus Operation = "status"
	OperationDiff   Operation = "diff"
	OperationFocus  Operation = "focus"
	OperationRemove Operation = "remove"
)

// AllowedOperations reports which operations are legal against a session
// currently in status s. Supplemented from the original implementation's
// per-state operation gating, which spec.md's state-machine section implies
// but does not spell out explicitly.
func (s SessionStatus) AllowedOperations() []Operation {
	switch s {
	case SessionStatusCreating:
		return []Operation{OperationRemove}
	case SessionStatusActive:
		return []Operation{OperationStatus, OperationDiff, OperationFocus, OperationRemove}
	case SessionStatusPaused:
		return []Operation{OperationStatus, OperationFocus, OperationRemove}
	case SessionStatusCompleted, SessionStatusFailed:
		return []Operation{OperationRemove}
	default:
		return nil
	}
}

// AllowsOperation reports whether op is legal against a session in status s.
func (s SessionStatus) AllowsOperation(op Operation) bool {
	for _, allowed := range s.AllowedOperations() {
		if allowed == op {
			return true
		}
	}
	return false
}

// WorkspaceState is the lifecycle of a Session's on-disk workspace.
type WorkspaceState string

const (
	WorkspaceStateCreated   WorkspaceState = "created"
	WorkspaceStateWorking   WorkspaceState = "working"
	WorkspaceStateReady     WorkspaceState = "ready"
	WorkspaceStateMerged    WorkspaceState = "merged"
	WorkspaceStateAbandoned WorkspaceState = "abandoned"
	WorkspaceStateConflict  WorkspaceState = "conflict"
)

func AllWorkspaceStates() []WorkspaceState {
	return []WorkspaceState{
		WorkspaceStateCreated, WorkspaceStateWorking, WorkspaceStateReady,
		WorkspaceStateMerged, WorkspaceStateAbandoned, WorkspaceStateConflict,
	}
}

func (w WorkspaceState) AllStates() []WorkspaceState { return AllWorkspaceStates() }

func (w WorkspaceState) ValidNextStates() []WorkspaceState {
	switch w {
	case WorkspaceStateCreated:
		return []WorkspaceState{WorkspaceStateWorking}
	case WorkspaceStateWorking:
		return []WorkspaceState{WorkspaceStateReady, WorkspaceStateConflict, WorkspaceStateAbandoned}
	case WorkspaceStateReady:
		return []WorkspaceState{WorkspaceStateWorking, WorkspaceStateMerged, WorkspaceStateConflict, WorkspaceStateAbandoned}
	case WorkspaceStateConflict:
		return []WorkspaceState{WorkspaceStateWorking, WorkspaceStateAbandoned}
	case WorkspaceStateMerged, WorkspaceStateAbandoned:
		return nil
	default:
		return nil
	}
}

func (w WorkspaceState) CanTransitionTo(next WorkspaceState) bool {
	if w == next {
		return false
	}
	for _, v := range w.ValidNextStates() {
		if v == next {
			return true
		}
	}
	return false
}

func (w WorkspaceState) IsTerminal() bool {
	return w == WorkspaceStateMerged || w == WorkspaceStateAbandoned
}

// QueueStatus is the lifecycle of a merge queue entry.
type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusClaimed   QueueStatus = "claimed"
	QueueStatusRunning   QueueStatus = "running"
	QueueStatusMerging   QueueStatus = "merging"
	QueueStatusCompleted QueueStatus = "completed"
	QueueStatusFailed    QueueStatus = "failed"
	QueueStatusAbandoned QueueStatus = "abandoned"
)

func AllQueueStatuses() []QueueStatus {
	return []QueueStatus{
		QueueStatusPending, QueueStatusClaimed, QueueStatusRunning, QueueStatusMerging,
		QueueStatusCompleted, QueueStatusFailed, QueueStatusAbandoned,
	}
}

func (q QueueStatus) AllStates() []QueueStatus { return AllQueueStatuses() }

// ValidNextStates follows spec.md §3.2. Note that terminal entries (Completed,
// Failed, Abandoned) may additionally be *reset* to Pending via resubmission
// (§4.4.1) — that reset is a distinct, explicit store operation, not a normal
// state-machine transition, so it is intentionally absent here; IsTerminal
// still reports true for those three statuses.
func (q QueueStatus) ValidNextStates() []QueueStatus {
	switch q {
	case QueueStatusPending:
		return []QueueStatus{QueueStatusClaimed, QueueStatusAbandoned}
	case QueueStatusClaimed:
		return []QueueStatus{QueueStatusRunning, QueueStatusPending, QueueStatusFailed}
	case QueueStatusRunning:
		return []QueueStatus{QueueStatusMerging, QueueStatusFailed, QueueStatusPending}
	case QueueStatusMerging:
		return []QueueStatus{QueueStatusCompleted, QueueStatusFailed, QueueStatusPending}
	case QueueStatusCompleted, QueueStatusFailed, QueueStatusAbandoned:
		return nil
	default:
		return nil
	}
}

func (q QueueStatus) CanTransitionTo(next QueueStatus) bool {
	if q == next {
		return false
	}
	for _, v := range q.ValidNextStates() {
		if v == next {
			return true
		}
	}
	return false
}

func (q QueueStatus) IsTerminal() bool {
	return q == QueueStatusCompleted || q == QueueStatusFailed || q == QueueStatusAbandoned
}

// StackMergeState reflects a queue entry's readiness relative to its stack ancestors.
type StackMergeState string

const (
	StackMergeStateIndependent      StackMergeState = "independent"
	StackMergeStateWaitingForParent StackMergeState = "waiting_for_parent"
	StackMergeStateReadyInStack     StackMergeState = "ready_in_stack"
)

// Decider identifies who made a conflict-resolution decision.
type Decider string

const (
	DeciderAI    Decider = "ai"
	DeciderHuman Decider = "human"
)

// Branch is a tagged variant: either Detached, or Named with a ref. Modeled
// as a struct rather than a bare *string so "none" and "some" are distinct
// at the type level (spec.md §9's "enum + optional payload" design note).
type Branch struct {
	Detached bool
	Ref      string // empty iff Detached
}

func DetachedBranch() Branch        { return Branch{Detached: true} }
func NamedBranch(ref string) Branch { return Branch{Ref: ref} }

func (b Branch) String() string {
	if b.Detached {
		return "detached"
	}
	return "named:" + b.Ref
}

func (b Branch) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Branch) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBranch(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBranch parses the on-disk token form produced by Branch.String.
func ParseBranch(s string) (Branch, error) {
	if s == "detached" {
		return DetachedBranch(), nil
	}
	const prefix = "named:"
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return NamedBranch(s[len(prefix):]), nil
	}
	return Branch{}, fmt.Errorf("invalid branch token %q", s)
}

// ParentSession is a tagged variant: either Root, or ChildOf a named parent.
type ParentSession struct {
	IsRoot bool
	Parent string // empty iff IsRoot
}

func RootSession() ParentSession                 { return ParentSession{IsRoot: true} }
func ChildOfSession(parent string) ParentSession { return ParentSession{Parent: parent} }

func (p ParentSession) String() string {
	if p.IsRoot {
		return "root"
	}
	return "child:" + p.Parent
}

func (p ParentSession) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *ParentSession) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseParentSession(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseParentSession parses the on-disk token form produced by ParentSession.String.
func ParseParentSession(s string) (ParentSession, error) {
	if s == "root" {
		return RootSession(), nil
	}
	const prefix = "child:"
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return ChildOfSession(s[len(prefix):]), nil
	}
	return ParentSession{}, fmt.Errorf("invalid parent_session token %q", s)
}

// ValidatedMetadata is an opaque JSON blob whose only guarantee is that it
// parses as JSON. The core never interprets its contents.
type ValidatedMetadata struct {
	raw json.RawMessage
}

// NewValidatedMetadata validates and wraps raw JSON. Empty input is treated
// as an empty JSON object.
func NewValidatedMetadata(raw []byte) (ValidatedMetadata, error) {
	if len(raw) == 0 {
		return ValidatedMetadata{raw: json.RawMessage("{}")}, nil
	}
	if !json.Valid(raw) {
		return ValidatedMetadata{}, fmt.Errorf("metadata is not valid JSON")
	}
	return ValidatedMetadata{raw: append(json.RawMessage(nil), raw...)}, nil
}

func (m ValidatedMetadata) Raw() json.RawMessage {
	if m.raw == nil {
		return json.RawMessage("{}")
	}
	return m.raw
}

func (m ValidatedMetadata) MarshalJSON() ([]byte, error) { return m.Raw(), nil }

func (m *ValidatedMetadata) UnmarshalJSON(data []byte) error {
	v, err := NewValidatedMetadata(data)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Session is the central aggregate of the coordination kernel.
type Session struct {
	Name           string
	Status         SessionStatus
	WorkspaceState WorkspaceState
	WorkspacePath  string
	Branch         Branch
	ParentSession  ParentSession
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastSynced     *time.Time
	QueueStatus    *QueueStatus
	Metadata       ValidatedMetadata
	Version        int
}

// ValidatePure checks the invariants a Session can validate without the
// store: updated_at >= created_at. Name/path/id are validated at
// construction by their respective validators (internal/registry).
func (s Session) ValidatePure() error {
	if s.UpdatedAt.Before(s.CreatedAt) {
		return fmt.Errorf("updated_at (%s) precedes created_at (%s)", s.UpdatedAt, s.CreatedAt)
	}
	return nil
}

// Lock is an exclusive lease on a session.
type Lock struct {
	LockID     string
	Session    string
	AgentID    string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// LockAuditOperation is one of the three recorded lock-audit operations.
type LockAuditOperation string

const (
	LockAuditOperationLock                LockAuditOperation = "lock"
	LockAuditOperationUnlock              LockAuditOperation = "unlock"
	LockAuditOperationDoubleUnlockWarning LockAuditOperation = "double_unlock_warning"
)

// LockAuditEntry is an append-only record of a lock-manager operation.
type LockAuditEntry struct {
	ID        int64
	Session   string
	AgentID   string
	Operation LockAuditOperation
	Timestamp time.Time
}

// LockState summarizes a session's current lock holder, if any.
type LockState struct {
	Session   string
	Holder    *string
	ExpiresAt *time.Time
}

// SubmissionType classifies the effect an upsert had on a queue entry.
type SubmissionType string

const (
	SubmissionTypeNew         SubmissionType = "new"
	SubmissionTypeUpdated     SubmissionType = "updated"
	SubmissionTypeResubmitted SubmissionType = "resubmitted"
)

// QueueEntry is a single unit of work tracked by the merge queue.
type QueueEntry struct {
	ID               int64
	Workspace        string
	BeadID           *string
	Priority         int
	Status           QueueStatus
	AddedAt          time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     *string
	AgentID          *string
	DedupeKey        string
	HeadSHA          string
	TestedAgainstSHA *string
	AttemptCount     int
	MaxAttempts      int
	RebaseCount      int
	LastRebaseAt     *time.Time
	ParentWorkspace  *string
	StackDepth       int
	Dependents       []string
	StackRoot        *string
	StackMergeState  StackMergeState
}

// ConflictResolution is an append-only audit record of a conflict decision.
type ConflictResolution struct {
	ID         int64
	Timestamp  time.Time
	Session    string
	File       string
	Strategy   string
	Reason     *string
	Confidence *float64
	Decider    Decider
}

// WorkspaceInfo describes a workspace as reported by the VCS driver's
// WorkspaceList operation.
type WorkspaceInfo struct {
	Name    string
	Path    string
	IsStale bool
}

// ChangesSummary is the file-change summary returned by WorkspaceStatus.
type ChangesSummary struct {
	Modified  []string
	Added     []string
	Deleted   []string
	Renamed   []string
	Untracked []string
}

func (c ChangesSummary) Total() int {
	return len(c.Modified) + len(c.Added) + len(c.Deleted) + len(c.Renamed) + len(c.Untracked)
}

func (c ChangesSummary) HasChanges() bool { return c.Total() > 0 }

func (c ChangesSummary) HasTrackedChanges() bool {
	return len(c.Modified)+len(c.Added)+len(c.Deleted)+len(c.Renamed) > 0
}

// DiffStat is the insertions/deletions summary returned by WorkspaceDiffStat.
type DiffStat struct {
	Insertions int
	Deletions  int
}

// Severity ranks a ValidationIssue's urgency.
type Severity string

const (
	SeverityWarn     Severity = "warn"
	SeverityFail     Severity = "fail"
	SeverityCritical Severity = "critical"
)

func (a Severity) rank() int {
	switch a {
	case SeverityWarn:
		return 0
	case SeverityFail:
		return 1
	case SeverityCritical:
		return 2
	default:
		return -1
	}
}

// MoreSevereThan reports whether a outranks b.
func (a Severity) MoreSevereThan(b Severity) bool { return a.rank() > b.rank() }

// ValidationIssueKind names which workspace integrity check produced an issue.
type ValidationIssueKind string

const (
	IssueMissingDirectory ValidationIssueKind = "missing_directory"
	IssuePermissionDenied ValidationIssueKind = "permission_denied"
	IssueMissingJjDir     ValidationIssueKind = "missing_jj_dir"
	IssueCorruptedJjDir   ValidationIssueKind = "corrupted_jj_dir"
	IssueStaleLocks       ValidationIssueKind = "stale_locks"
)

// RepairStrategy orders remediation actions by risk, least to most destructive.
type RepairStrategy string

const (
	RepairNone              RepairStrategy = "no_repair"
	RepairClearLocks        RepairStrategy = "clear_locks"
	RepairFixJjDir          RepairStrategy = "fix_jj_dir"
	RepairRecreateWorkspace RepairStrategy = "recreate_workspace"
	RepairForgetAndRecreate RepairStrategy = "forget_and_recreate"
)

func (s RepairStrategy) risk() int {
	switch s {
	case RepairNone:
		return 0
	case RepairClearLocks:
		return 1
	case RepairFixJjDir:
		return 2
	case RepairRecreateWorkspace:
		return 3
	case RepairForgetAndRecreate:
		return 4
	default:
		return -1
	}
}

// MoreAggressiveThan reports whether s is riskier than other.
func (s RepairStrategy) MoreAggressiveThan(other RepairStrategy) bool {
	return s.risk() > other.risk()
}

// ValidationIssue is a single defect found by the workspace validator.
type ValidationIssue struct {
	Kind       ValidationIssueKind
	Severity   Severity
	Message    string
	Recommends RepairStrategy
}

// ValidationResult is the outcome of validating one workspace.
type ValidationResult struct {
	Workspace   string
	Path        string
	IsValid     bool
	Issues      []ValidationIssue
	MaxSeverity *Severity
	DurationMS  int64
}

// RepairResult is the outcome of applying a repair strategy to a workspace.
type RepairResult struct {
	Workspace string
	Success   bool
	Action    RepairStrategy
	Summary   string
	BackupID  *string
}
