package workspace

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/zjj/internal/models"
)

// staleLockAge is how old a working-copy lock file must be before it is
// flagged as stale rather than merely held.
const staleLockAge = time.Hour

// maxConcurrentValidations bounds how many workspaces Validator.ValidateAll
// inspects at once.
const maxConcurrentValidations = 10

// Validator inspects workspace directories for structural corruption.
type Validator struct {
	// now is overridable in tests so lock-age checks don't depend on wall time.
	now func() time.Time
}

// NewValidator returns a Validator using the real clock.
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// WithClock overrides the validator's notion of "now", for tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate runs the ordered integrity checks against one workspace and
// returns a complete ValidationResult. It never returns an error: failures
// to read the filesystem surface as issues, not as Go errors, so callers can
// always act on the result.
func (v *Validator) Validate(ctx context.Context, name, path string) models.ValidationResult {
	start := v.clock()
	result := models.ValidationResult{
		Workspace: name,
		Path:      path,
		IsValid:   true,
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			v.record(&result, models.ValidationIssue{
				Kind:       models.IssueMissingDirectory,
				Severity:   models.SeverityCritical,
				Message:    "workspace directory does not exist",
				Recommends: models.RepairForgetAndRecreate,
			})
			result.DurationMS = v.clock().Sub(start).Milliseconds()
			return result
		}
		v.record(&result, models.ValidationIssue{
			Kind:       models.IssuePermissionDenied,
			Severity:   models.SeverityFail,
			Message:    err.Error(),
			Recommends: models.RepairNone,
		})
		result.DurationMS = v.clock().Sub(start).Milliseconds()
		return result
	}
	if !info.IsDir() {
		v.record(&result, models.ValidationIssue{
			Kind:       models.IssueMissingDirectory,
			Severity:   models.SeverityCritical,
			Message:    "workspace path is not a directory",
			Recommends: models.RepairForgetAndRecreate,
		})
		result.DurationMS = v.clock().Sub(start).Milliseconds()
		return result
	}

	if _, err := os.ReadDir(path); err != nil {
		v.record(&result, models.ValidationIssue{
			Kind:       models.IssuePermissionDenied,
			Severity:   models.SeverityFail,
			Message:    err.Error(),
			Recommends: models.RepairNone,
		})
		result.DurationMS = v.clock().Sub(start).Milliseconds()
		return result
	}

	jjDir := filepath.Join(path, ".jj")
	jjInfo, err := os.Stat(jjDir)
	if err != nil || !jjInfo.IsDir() {
		v.record(&result, models.ValidationIssue{
			Kind:       models.IssueMissingJjDir,
			Severity:   models.SeverityFail,
			Message:    "missing .jj directory",
			Recommends: models.RepairRecreateWorkspace,
		})
		result.DurationMS = v.clock().Sub(start).Milliseconds()
		return result
	}

	if !v.hasNonEmptyOpStore(jjDir) {
		v.record(&result, models.ValidationIssue{
			Kind:       models.IssueCorruptedJjDir,
			Severity:   models.SeverityFail,
			Message:    "missing or empty .jj/repo/op_store",
			Recommends: models.RepairForgetAndRecreate,
		})
		result.DurationMS = v.clock().Sub(start).Milliseconds()
		return result
	}

	if stale, ok := v.staleLockInfo(jjDir); ok {
		_ = stale
		v.record(&result, models.ValidationIssue{
			Kind:       models.IssueStaleLocks,
			Severity:   models.SeverityWarn,
			Message:    "working copy lock is older than 1 hour",
			Recommends: models.RepairClearLocks,
		})
	}

	result.DurationMS = v.clock().Sub(start).Milliseconds()
	return result
}

// ValidateAll runs Validate over every named workspace concurrently, bounded
// to maxConcurrentValidations in flight at once, and returns results in the
// same order as the input.
func (v *Validator) ValidateAll(ctx context.Context, workspaces []models.WorkspaceInfo) ([]models.ValidationResult, error) {
	results := make([]models.ValidationResult, len(workspaces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentValidations)

	for i, ws := range workspaces {
		i, ws := i, ws
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = v.Validate(gctx, ws.Name, ws.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (v *Validator) clock() time.Time {
	if v.now != nil {
		return v.now()
	}
	return time.Now()
}

func (v *Validator) hasNonEmptyOpStore(jjDir string) bool {
	opStore := filepath.Join(jjDir, "repo", "op_store")
	entries, err := os.ReadDir(opStore)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// staleLockInfo reports whether jjDir's working-copy lock file exists and is
// older than staleLockAge.
func (v *Validator) staleLockInfo(jjDir string) (os.FileInfo, bool) {
	lockPath := filepath.Join(jjDir, "working_copy", "lock")
	info, err := os.Stat(lockPath)
	if err != nil {
		return nil, false
	}
	if v.clock().Sub(info.ModTime()) <= staleLockAge {
		return nil, false
	}
	return info, true
}

func (v *Validator) record(result *models.ValidationResult, issue models.ValidationIssue) {
	result.Issues = append(result.Issues, issue)
	if issue.Severity != models.SeverityWarn {
		result.IsValid = false
	}
	if result.MaxSeverity == nil || issue.Severity.MoreSevereThan(*result.MaxSeverity) {
		sev := issue.Severity
		result.MaxSeverity = &sev
	}
}
