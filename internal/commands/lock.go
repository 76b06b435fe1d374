package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/zjj/internal/app"
	"github.com/dotcommander/zjj/internal/lockmgr"
	"github.com/dotcommander/zjj/internal/output"
)

func newLockManager(db *DB) *lockmgr.Manager {
	ttl := time.Duration(app.EffectiveRuntimeSettings().LockTTLSeconds) * time.Second
	return lockmgr.New(db, ttl)
}

// NewLockCmd groups lock manager operations.
func NewLockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Manage TTL-leased exclusive session locks",
	}
	cmd.AddCommand(newLockAcquireCmd())
	cmd.AddCommand(newLockUnlockCmd())
	cmd.AddCommand(newLockHeartbeatCmd())
	cmd.AddCommand(newLockStatusCmd())
	cmd.AddCommand(newLockListCmd())
	cmd.AddCommand(newLockAuditCmd())
	return cmd
}

func newLockAcquireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "acquire <session>",
		Short: "Acquire or idempotently refresh an exclusive lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			return withDB(cmd.Context(), func(db *DB) error {
				lock, err := newLockManager(db).Lock(cmd.Context(), args[0], agent)
				if err != nil {
					return err
				}
				return output.PrintSuccess(lock)
			})
		},
	}
}

func newLockUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <session>",
		Short: "Release a lock held by this agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			return withDB(cmd.Context(), func(db *DB) error {
				if err := newLockManager(db).Unlock(cmd.Context(), args[0], agent); err != nil {
					return err
				}
				return output.PrintSuccess(struct{}{})
			})
		},
	}
}

func newLockHeartbeatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat <session>",
		Short: "Extend the lease held by this agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			return withDB(cmd.Context(), func(db *DB) error {
				lock, err := newLockManager(db).Heartbeat(cmd.Context(), args[0], agent)
				if err != nil {
					return err
				}
				return output.PrintSuccess(lock)
			})
		},
	}
}

func newLockStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session>",
		Short: "Show the current lock state for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				state, err := newLockManager(db).State(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(state)
			})
		},
	}
}

func newLockListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all active leases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				locks, err := newLockManager(db).List(cmd.Context())
				if err != nil {
					return err
				}
				return output.PrintSuccess(locks)
			})
		},
	}
}

func newLockAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <session>",
		Short: "Show the append-only lock audit log for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				entries, err := newLockManager(db).AuditLog(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return output.PrintSuccess(entries)
			})
		},
	}
}
