package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/zjj/internal/models"
	"github.com/dotcommander/zjj/internal/output"
	"github.com/dotcommander/zjj/internal/whatif"
)

// NewWhatifCmd groups dry-run previews that never mutate state.
func NewWhatifCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whatif",
		Short: "Preview a queue submission or a status transition without committing it",
	}
	cmd.AddCommand(newWhatifSubmissionCmd())
	cmd.AddCommand(newWhatifTransitionCmd())
	return cmd
}

func newWhatifSubmissionCmd() *cobra.Command {
	var parentWorkspace string
	cmd := &cobra.Command{
		Use:   "submission <workspace> <dedupe-key>",
		Short: "Preview dedupe and stack metadata for a hypothetical submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				var parent *string
				if parentWorkspace != "" {
					parent = &parentWorkspace
				}
				preview, err := whatif.PreviewSubmission(cmd.Context(), db, args[0], args[1], parent)
				if err != nil {
					return err
				}
				return output.PrintSuccess(preview)
			})
		},
	}
	cmd.Flags().StringVar(&parentWorkspace, "parent-workspace", "", "Hypothetical parent workspace, for stacked previews")
	return cmd
}

func newWhatifTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transition <session> <to>",
		Short: "Preview whether a status transition would be legal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(db *DB) error {
				to := models.SessionStatus(args[1])
				preview, err := whatif.PreviewStatusTransition(cmd.Context(), db, args[0], to)
				if err != nil {
					return err
				}
				return output.PrintSuccess(preview)
			})
		},
	}
}
