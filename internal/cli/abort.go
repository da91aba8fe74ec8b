package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// newAbortCmd creates the abort command
func newAbortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Roll back the paused operation",
		Long: `Roll back the paused operation completely: any in-progress rebase is
aborted, branches already rebased are restored from the backup, refs the
operation created are deleted, and the previous topology is reinstated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				if err := app.Engine.Abort(ctx); err != nil {
					return err
				}
				app.Log.Info("operation aborted, all branches restored")
				return nil
			})
		},
	}

	return cmd
}
