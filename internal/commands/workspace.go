package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dotcommander/zjj/internal/app"
	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/output"
	"github.com/dotcommander/zjj/internal/vcs"
	"github.com/dotcommander/zjj/internal/workspace"
)

// NewWorkspaceCmd groups workspace lifecycle, integrity, and backup operations.
func NewWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Create, validate, repair, and back up jj workspaces",
	}
	cmd.AddCommand(newWorkspaceCreateCmd())
	cmd.AddCommand(newWorkspaceReleaseCmd())
	cmd.AddCommand(newWorkspaceValidateCmd())
	cmd.AddCommand(newWorkspaceValidateAllCmd())
	cmd.AddCommand(newWorkspaceRepairCmd())
	cmd.AddCommand(newWorkspaceBackupListCmd())
	cmd.AddCommand(newWorkspaceBackupRestoreCmd())
	return cmd
}

func newCLIDriver() (vcs.Driver, error) {
	return vcs.NewCLIDriver()
}

func newWorkspaceCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <path>",
		Short: "Add a workspace through jj, guarded for cleanup on failure",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := newCLIDriver()
			if err != nil {
				return cmdErr(err)
			}
			guard, err := workspace.CreateWorkspace(cmd.Context(), driver, args[0], args[1])
			if err != nil {
				return cmdErr(err)
			}
			guard.Disarm()
			return output.PrintSuccess(struct {
				Workspace string `json:"workspace"`
				Path      string `json:"path"`
			}{Workspace: args[0], Path: args[1]})
		},
	}
}

func newWorkspaceReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <name> <path>",
		Short: "Forget a workspace through jj and remove its directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := newCLIDriver()
			if err != nil {
				return cmdErr(err)
			}
			if err := driver.WorkspaceForget(cmd.Context(), args[0]); err != nil {
				return cmdErr(err)
			}
			if err := os.RemoveAll(args[1]); err != nil {
				return cmdErr(&models.IoError{Op: "remove_all", Path: args[1], Message: err.Error()})
			}
			return output.PrintSuccess(struct{}{})
		},
	}
}

func newWorkspaceValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <name> <path>",
		Short: "Run the integrity checks against one workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := workspace.NewValidator().Validate(cmd.Context(), args[0], args[1])
			return output.PrintSuccess(result)
		},
	}
}

func newWorkspaceValidateAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-all",
		Short: "Run the integrity checks against every workspace jj knows about",
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := newCLIDriver()
			if err != nil {
				return cmdErr(err)
			}
			workspaces, err := driver.WorkspaceList(cmd.Context())
			if err != nil {
				return cmdErr(err)
			}
			results, err := workspace.NewValidator().ValidateAll(cmd.Context(), workspaces)
			if err != nil {
				return cmdErr(err)
			}
			return output.PrintSuccess(results)
		},
	}
}

func newWorkspaceRepairCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "repair <name> <path>",
		Short: "Apply a named repair strategy, backing up first when destructive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, err := newCLIDriver()
			if err != nil {
				return cmdErr(err)
			}
			root, err := app.DataRoot()
			if err != nil {
				return cmdErr(err)
			}
			backups := workspace.NewBackupManager(root)
			executor := workspace.NewRepairExecutor(driver, backups)

			var result models.RepairResult
			if strategy != "" {
				result, err = executor.Apply(cmd.Context(), args[0], args[1], models.RepairStrategy(strategy))
			} else {
				validation := workspace.NewValidator().Validate(cmd.Context(), args[0], args[1])
				result, err = executor.Repair(cmd.Context(), validation)
			}
			if err != nil {
				return err
			}
			return output.PrintSuccess(result)
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "Repair strategy to apply (default: derive from validation)")
	return cmd
}

func newWorkspaceBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup-list",
		Short: "List known workspace backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := app.DataRoot()
			if err != nil {
				return cmdErr(err)
			}
			backups, err := workspace.NewBackupManager(root).ListBackups(cmd.Context())
			if err != nil {
				return cmdErr(err)
			}
			return output.PrintSuccess(backups)
		},
	}
}

func newWorkspaceBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup-restore <backup-id> <dest-path>",
		Short: "Copy a backup's contents back to a destination path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := app.DataRoot()
			if err != nil {
				return cmdErr(err)
			}
			dest, err := filepath.Abs(args[1])
			if err != nil {
				return cmdErr(err)
			}
			if err := workspace.NewBackupManager(root).RestoreBackup(cmd.Context(), args[0], dest); err != nil {
				return cmdErr(err)
			}
			return output.PrintSuccess(struct{}{})
		},
	}
}
