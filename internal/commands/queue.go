package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dotcommander/zjj/internal/app"
	"github.com/dotcommander/zjj/internal/mergequeue"
	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/output"
)

// NewQueueCmd groups merge queue operations.
func NewQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the priority-ordered merge queue",
	}
	cmd.AddCommand(newQueueSubmitCmd())
	cmd.AddCommand(newQueueNextCmd())
	cmd.AddCommand(newQueueClaimCmd())
	cmd.AddCommand(newQueueStartCmd())
	cmd.AddCommand(newQueueMergingCmd())
	cmd.AddCommand(newQueueCompleteCmd())
	cmd.AddCommand(newQueueFailCmd())
	cmd.AddCommand(newQueueResetForRebaseCmd())
	cmd.AddCommand(newQueueAbandonCmd())
	cmd.AddCommand(newQueueGetCmd())
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueRecordConflictCmd())
	cmd.AddCommand(newQueueListConflictsCmd())
	return cmd
}

func newQueueSubmitCmd() *cobra.Command {
	var (
		beadID, agentID, testedAgainstSHA, parentWorkspace string
		priority, maxAttempts                              int
	)
	cmd := &cobra.Command{
		Use:   "submit <workspace> <dedupe-key> <head-sha>",
		Short: "Idempotently upsert a queue entry and compute its stack metadata",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				in := mergequeue.Submission{
					Workspace:   args[0],
					DedupeKey:   args[1],
					HeadSHA:     args[2],
					Priority:    priority,
					MaxAttempts: maxAttempts,
				}
				if beadID != "" {
					in.BeadID = &beadID
				}
				if agentID != "" {
					in.AgentID = &agentID
				}
				if testedAgainstSHA != "" {
					in.TestedAgainstSHA = &testedAgainstSHA
				}
				if parentWorkspace != "" {
					in.ParentWorkspace = &parentWorkspace
				}
				ceiling := app.EffectiveRuntimeSettings().MaxStackDepth
				result, err := mergequeue.Submit(cmd.Context(), db, in, ceiling)
				if err != nil {
					return err
				}
				return output.PrintSuccess(result)
			})
		},
	}
	cmd.Flags().StringVar(&beadID, "bead-id", "", "Opaque external issue identifier")
	cmd.Flags().StringVar(&agentID, "agent-id", "", "Submitting agent identifier")
	cmd.Flags().StringVar(&testedAgainstSHA, "tested-against-sha", "", "SHA this change was tested against")
	cmd.Flags().StringVar(&parentWorkspace, "parent-workspace", "", "Parent workspace, for stacked submissions")
	cmd.Flags().IntVar(&priority, "priority", 0, "Dispatch priority, lower dispatches first")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", mergequeue.DefaultMaxAttempts, "Maximum dispatch attempts before terminal failure")
	return cmd
}

func newQueueNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next dispatchable entry without claiming it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				entry, err := mergequeue.NextReady(cmd.Context(), db)
				if err != nil {
					return err
				}
				return output.PrintSuccess(entry)
			})
		},
	}
}

func parseQueueID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func newQueueClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <id>",
		Short: "Attempt the guarded Pending -> Claimed transition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			id, err := parseQueueID(args[0])
			if err != nil {
				return cmdErr(err)
			}
			return withDB(cmd.Context(), func(db *DB) error {
				claimed, err := mergequeue.Claim(cmd.Context(), db, id, agent)
				if err != nil {
					return err
				}
				type resp struct {
					Claimed bool `json:"claimed"`
				}
				return output.PrintSuccess(resp{Claimed: claimed})
			})
		},
	}
}

func idMutationCmd(use, short string, fn func(cmd *cobra.Command, db *DB, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return cmdErr(err)
			}
			return withDB(cmd.Context(), func(db *DB) error {
				return fn(cmd, db, id)
			})
		},
	}
}

func newQueueStartCmd() *cobra.Command {
	return idMutationCmd("start <id>", "Mark a claimed entry Running", func(cmd *cobra.Command, db *DB, id int64) error {
		if err := mergequeue.Start(cmd.Context(), db, id); err != nil {
			return err
		}
		return output.PrintSuccess(struct{}{})
	})
}

func newQueueMergingCmd() *cobra.Command {
	return idMutationCmd("merging <id>", "Mark a running entry Merging", func(cmd *cobra.Command, db *DB, id int64) error {
		if err := mergequeue.MarkMerging(cmd.Context(), db, id); err != nil {
			return err
		}
		return output.PrintSuccess(struct{}{})
	})
}

func newQueueCompleteCmd() *cobra.Command {
	return idMutationCmd("complete <id>", "Mark a merging entry Completed", func(cmd *cobra.Command, db *DB, id int64) error {
		if err := mergequeue.Complete(cmd.Context(), db, id); err != nil {
			return err
		}
		return output.PrintSuccess(struct{}{})
	})
}

func newQueueFailCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "fail <id>",
		Short: "Record a dispatch failure, redispatching until max attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return cmdErr(err)
			}
			return withDB(cmd.Context(), func(db *DB) error {
				if err := mergequeue.Fail(cmd.Context(), db, id, reason); err != nil {
					return err
				}
				return output.PrintSuccess(struct{}{})
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Failure reason recorded in the audit trail")
	return cmd
}

func newQueueResetForRebaseCmd() *cobra.Command {
	return idMutationCmd("reset-for-rebase <id>", "Return a running or merging entry to Pending for rebase", func(cmd *cobra.Command, db *DB, id int64) error {
		if err := mergequeue.ResetForRebase(cmd.Context(), db, id); err != nil {
			return err
		}
		return output.PrintSuccess(struct{}{})
	})
}

func newQueueAbandonCmd() *cobra.Command {
	return idMutationCmd("abandon <id>", "Abandon an entry, terminally", func(cmd *cobra.Command, db *DB, id int64) error {
		if err := mergequeue.Abandon(cmd.Context(), db, id); err != nil {
			return err
		}
		return output.PrintSuccess(struct{}{})
	})
}

func newQueueGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one queue entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return cmdErr(err)
			}
			return withDB(cmd.Context(), func(db *DB) error {
				entry, err := mergequeue.Get(cmd.Context(), db, id)
				if err != nil {
					return err
				}
				return output.PrintSuccess(entry)
			})
		},
	}
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				entries, err := mergequeue.List(cmd.Context(), db)
				if err != nil {
					return err
				}
				return output.PrintSuccess(entries)
			})
		},
	}
}

func newQueueRecordConflictCmd() *cobra.Command {
	var (
		session, file, strategy, reason string
		confidence                      float64
		human                           bool
	)
	cmd := &cobra.Command{
		Use:   "record-conflict",
		Short: "Append a conflict-resolution audit record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				decider := models.DeciderAI
				if human {
					decider = models.DeciderHuman
				}
				r := models.ConflictResolution{
					Session:  session,
					File:     file,
					Strategy: strategy,
					Decider:  decider,
				}
				if reason != "" {
					r.Reason = &reason
				}
				if confidence > 0 {
					r.Confidence = &confidence
				}
				id, err := mergequeue.RecordConflictResolution(cmd.Context(), db, r)
				if err != nil {
					return err
				}
				type resp struct {
					ID int64 `json:"id"`
				}
				return output.PrintSuccess(resp{ID: id})
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session the conflict occurred in")
	cmd.Flags().StringVar(&file, "file", "", "File the conflict touched")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Resolution strategy applied")
	cmd.Flags().StringVar(&reason, "reason", "", "Optional free-text reason")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "Optional confidence score in [0,1]")
	cmd.Flags().BoolVar(&human, "human", false, "Mark the decider as human rather than AI")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("strategy")
	return cmd
}

func newQueueListConflictsCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "list-conflicts",
		Short: "List conflict-resolution audit records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				records, err := mergequeue.ListConflictResolutions(cmd.Context(), db, mergequeue.ConflictResolutionFilter{Session: session})
				if err != nil {
					return err
				}
				return output.PrintSuccess(records)
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Filter by session")
	return cmd
}
