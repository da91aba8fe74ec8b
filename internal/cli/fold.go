package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// newFoldCmd creates the fold command
func newFoldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fold <target> <branch>...",
		Short: "Fold branches into the branch below them",
		Long: `Fold one or more branches into the target branch beneath them. The folded
branches must form an unbroken, unforked chain growing up from the target.
Their commits are replayed onto the target, their refs are deleted, and any
children reattach to the target.

Folding does not touch GitHub: if a folded branch has an open pull
request, rung reports its number so you can close or retarget it.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				plan, err := app.Engine.PlanFold(ctx, args[0], args[1:])
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

	return cmd
}
