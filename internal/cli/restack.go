package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// newRestackCmd creates the restack command
func newRestackCmd() *cobra.Command {
	var (
		onto            string
		withDescendants bool
	)

	cmd := &cobra.Command{
		Use:   "restack <branch>",
		Short: "Move a branch onto a different parent",
		Long: `Move a branch onto a different parent, rebasing its commits there. The
topology is updated only after the rebase succeeds. With --with-descendants
the branch's descendants are rebased too so the whole subtree follows.

Moves that would create a dependency cycle are refused. Without --onto the
branch moves onto the base branch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				plan, err := app.Engine.PlanRestack(ctx, args[0], onto, withDescendants)
				if err != nil {
					return err
				}

				result, err := app.Engine.Execute(ctx, plan)
				if err != nil {
					return err
				}
				return reportResult(app, result)
			})
		},
	}

	cmd.Flags().StringVar(&onto, "onto", "", "New parent branch (defaults to the base branch)")
	cmd.Flags().BoolVar(&withDescendants, "with-descendants", false, "Also rebase the branch's descendants")

	return cmd
}
