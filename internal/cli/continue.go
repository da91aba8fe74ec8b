package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// newContinueCmd creates the continue command
func newContinueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "continue",
		Short: "Resume the operation paused by a rebase conflict",
		Long: `Resume the paused operation after resolving its conflict. The conflicted
files must be resolved and staged first; rung refuses to continue while
conflict markers remain. Remaining branches are then rebased as planned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				result, err := app.Engine.Continue(ctx)
				if err != nil {
					return err
				}
				return reportResult(app, result)
			})
		},
	}

	return cmd
}
