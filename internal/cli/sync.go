package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/auswm85/rung/internal/output"
)

// newSyncCmd creates the sync command
func newSyncCmd() *cobra.Command {
	var (
		force  bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "sync [branch]",
		Short: "Rebase stale branches onto their parents in dependency order",
		Long: `Rebase every stale branch onto its parent, parents before children, so
each branch ends up on its parent's final tip. With a branch argument only
that branch's ancestor chain is synced.

A branch whose remote counterpart has commits the local branch lacks is
refused unless --force is given. On a conflict the operation pauses;
resolve and run 'rung continue', or roll everything back with
'rung abort'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				scope := ""
				if len(args) == 1 {
					scope = args[0]
				}

				plan, err := app.Engine.PlanSync(ctx, scope, force)
				if err != nil {
					return err
				}
				if len(plan.Actions) == 0 {
					app.Log.Info("everything is in sync")
					return nil
				}

				if dryRun {
					app.Log.Info("would rebase:")
					for _, action := range plan.Actions {
						app.Log.Info("  %s onto %s", output.ColorBranchName(action.Branch, false), action.Onto)
					}
					return nil
				}

				result, err := app.Engine.Execute(ctx, plan)
				if err != nil {
					return err
				}
				return reportResult(app, result)
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Sync branches even when the remote counterpart has diverged")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show the rebase plan without executing it")

	return cmd
}
