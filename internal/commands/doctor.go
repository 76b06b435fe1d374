package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/zjj/internal/app"
	"github.com/dotcommander/zjj/internal/doctor"
	"github.com/dotcommander/zjj/internal/output"
)

// NewDoctorCmd reports a read-only health snapshot of the data root.
func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report database reachability, lock counts, and recent recovery activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := app.DataRoot()
			if err != nil {
				return cmdErr(err)
			}
			report := doctor.Run(cmd.Context(), root)
			return output.PrintSuccess(report)
		},
	}
}
