package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/vcs"
)

// destructiveStrategies backs up the workspace before acting, if a backup
// manager is configured. Only strategies with an Apply implementation are
// listed here; RepairRecreateWorkspace will join once implemented.
var destructiveStrategies = map[models.RepairStrategy]bool{
	models.RepairForgetAndRecreate: true,
}

// RepairExecutor applies the most aggressive recommended repair strategy
// found by a Validator run.
type RepairExecutor struct {
	driver  vcs.Driver
	backups *BackupManager // nil disables backups
}

// NewRepairExecutor returns a RepairExecutor. backups may be nil to disable
// the backup-before-destructive-step contract.
func NewRepairExecutor(driver vcs.Driver, backups *BackupManager) *RepairExecutor {
	return &RepairExecutor{driver: driver, backups: backups}
}

// Repair picks the most aggressive strategy recommended by result's issues
// and executes it.
func (r *RepairExecutor) Repair(ctx context.Context, result models.ValidationResult) (models.RepairResult, error) {
	strategy := mostAggressive(result.Issues)
	return r.Apply(ctx, result.Workspace, result.Path, strategy)
}

// Apply executes a specific strategy directly, bypassing recommendation
// selection. Used by callers that want to force a particular repair.
func (r *RepairExecutor) Apply(ctx context.Context, workspaceName, path string, strategy models.RepairStrategy) (models.RepairResult, error) {
	result := models.RepairResult{Workspace: workspaceName, Action: strategy}

	if destructiveStrategies[strategy] && r.backups != nil {
		id, err := r.backups.CreateBackup(ctx, workspaceName, path)
		if err != nil {
			return result, fmt.Errorf("backup before %s: %w", strategy, err)
		}
		result.BackupID = &id
	}

	switch strategy {
	case models.RepairNone:
		result.Success = true
		result.Summary = "no repair necessary"
		return result, nil

	case models.RepairClearLocks:
		if err := clearWorkingCopyLock(path); err != nil {
			return result, err
		}
		result.Success = true
		result.Summary = "cleared stale working-copy lock"
		return result, nil

	case models.RepairForgetAndRecreate:
		if err := r.driver.WorkspaceForget(ctx, workspaceName); err != nil {
			return result, err
		}
		if err := os.RemoveAll(path); err != nil {
			return result, &models.IoError{Op: "remove_all", Path: path, Message: err.Error()}
		}
		result.Success = true
		result.Summary = "forgot workspace and removed directory"
		return result, nil

	default:
		return result, &models.RepairNotImplementedError{Strategy: string(strategy)}
	}
}

// clearWorkingCopyLock removes the working-copy lock file if present.
// Idempotent: removing an already-absent lock file succeeds.
func clearWorkingCopyLock(workspacePath string) error {
	lockPath := filepath.Join(workspacePath, ".jj", "working_copy", "lock")
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return &models.IoError{Op: "remove_lock", Path: lockPath, Message: err.Error()}
	}
	return nil
}

// mostAggressive returns the riskiest RepairStrategy recommended across all
// issues, defaulting to RepairNone when there are none.
func mostAggressive(issues []models.ValidationIssue) models.RepairStrategy {
	strategy := models.RepairNone
	for _, issue := range issues {
		if issue.Recommends.MoreAggressiveThan(strategy) {
			strategy = issue.Recommends
		}
	}
	return strategy
}
