package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/zjj/internal/app"
	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/output"
	"github.com/dotcommander/zjj/internal/registry"
)

// NewSessionCmd groups session registry operations.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage named workspace sessions",
	}
	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionDeleteCmd())
	cmd.AddCommand(newSessionTransitionStatusCmd())
	cmd.AddCommand(newSessionTransitionWorkspaceStateCmd())
	cmd.AddCommand(newSessionSetParentCmd())
	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new session and its workspace path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				root, err := app.DataRoot()
				if err != nil {
					return err
				}
				session, err := registry.Create(cmd.Context(), db, root, args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(session)
			})
		},
	}
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				session, err := registry.Get(cmd.Context(), db, args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(session)
			})
		},
	}
}

func newSessionListCmd() *cobra.Command {
	var status, workspaceState string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				var f registry.Filter
				if status != "" {
					s := models.SessionStatus(status)
					f.Status = &s
				}
				if workspaceState != "" {
					w := models.WorkspaceState(workspaceState)
					f.WorkspaceState = &w
				}
				sessions, err := registry.List(cmd.Context(), db, f)
				if err != nil {
					return err
				}
				return output.PrintSuccess(sessions)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by session status")
	cmd.Flags().StringVar(&workspaceState, "workspace-state", "", "Filter by workspace state")
	return cmd
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a session row (does not tear down its on-disk workspace)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				if err := registry.Delete(cmd.Context(), db, args[0]); err != nil {
					return err
				}
				return output.PrintSuccess(struct{}{})
			})
		},
	}
}

func newSessionTransitionStatusCmd() *cobra.Command {
	var expectedVersion int
	cmd := &cobra.Command{
		Use:   "transition-status <name> <from> <to>",
		Short: "Move a session's status along its state machine",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				from := models.SessionStatus(args[1])
				to := models.SessionStatus(args[2])
				if err := registry.TransitionStatus(cmd.Context(), db, args[0], from, to, expectedVersion); err != nil {
					return err
				}
				return output.PrintSuccess(struct{}{})
			})
		},
	}
	cmd.Flags().IntVar(&expectedVersion, "expected-version", 0, "Optimistic concurrency version read before this call")
	return cmd
}

func newSessionTransitionWorkspaceStateCmd() *cobra.Command {
	var expectedVersion int
	cmd := &cobra.Command{
		Use:   "transition-workspace-state <name> <from> <to>",
		Short: "Move a session's workspace_state along its state machine",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				from := models.WorkspaceState(args[1])
				to := models.WorkspaceState(args[2])
				if err := registry.TransitionWorkspaceState(cmd.Context(), db, args[0], from, to, expectedVersion); err != nil {
					return err
				}
				return output.PrintSuccess(struct{}{})
			})
		},
	}
	cmd.Flags().IntVar(&expectedVersion, "expected-version", 0, "Optimistic concurrency version read before this call")
	return cmd
}

func newSessionSetParentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-parent <child> [parent]",
		Short: "Link or unlink a session's parent (omit parent to clear it)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				var parent *string
				if len(args) == 2 {
					parent = &args[1]
				}
				if err := registry.SetParent(cmd.Context(), db, args[0], parent); err != nil {
					return err
				}
				return output.PrintSuccess(struct{}{})
			})
		},
	}
}
