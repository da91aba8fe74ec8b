package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/auswm85/rung/internal/output"
)

// newTrackCmd creates the track command
func newTrackCmd() *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "track <branch>",
		Short: "Add an existing branch to the stack",
		Long: `Add an existing branch to the stack under the given parent. Without
--parent the branch sits directly on the base branch. The parent's current
tip is recorded, so the branch counts as synced until the parent moves.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				branch, err := app.Engine.Track(ctx, args[0], parent)
				if err != nil {
					return err
				}

				parentName := branch.Parent
				if parentName == "" {
					parentName = app.Config.BaseBranch
				}
				app.Log.Info("tracking %s on %s", output.ColorBranchName(branch.Name, false), parentName)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent branch in the stack (defaults to the base branch)")

	return cmd
}

// newUntrackCmd creates the untrack command
func newUntrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "untrack <branch>",
		Short: "Remove a branch from the stack without deleting it",
		Long: `Remove a branch from the stack. The git branch itself is untouched; any
stacked children reattach to the removed branch's parent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				if err := app.Engine.Untrack(ctx, args[0]); err != nil {
					return err
				}
				app.Log.Info("no longer tracking %s", args[0])
				return nil
			})
		},
	}

	return cmd
}
