package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/zjj/internal/app"
	"github.com/dotcommander/zjj/internal/output"
)

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	root := &cobra.Command{
		Use:           "zjj",
		Short:         "Workspace orchestration and merge-queue coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dataRoot, err := cmd.Flags().GetString("data-root"); err == nil && dataRoot != "" {
				app.SetDataRootOverride(dataRoot)
			}
			return app.EnsureDataRoot()
		},
	}

	root.PersistentFlags().String("data-root", "", "Override data root (default: $ZJJ_DATA_ROOT or ./.zjj)")
	root.PersistentFlags().StringP("agent", "a", "", "Agent name (default: $ZJJ_AGENT)")
	root.Flags().BoolP("version", "v", false, "version for zjj")

	root.AddCommand(NewSessionCmd())
	root.AddCommand(NewLockCmd())
	root.AddCommand(NewQueueCmd())
	root.AddCommand(NewWorkspaceCmd())
	root.AddCommand(NewDoctorCmd())
	root.AddCommand(NewWhatifCmd())

	err := root.Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			// cobra usage/parsing errors never pass through cmdErr, so the
			// JSON error envelope still needs printing here.
			slog.Default().Error("command failed", "error", err.Error())
			_ = output.PrintError(err)
		}
	}
	return err
}
