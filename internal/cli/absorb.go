package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/auswm85/rung/internal/output"
)

// newAbsorbCmd creates the absorb command
func newAbsorbCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "absorb",
		Short: "Turn staged changes into fixup commits on the commits they amend",
		Long: `Attribute each staged hunk to the commit in the current branch that last
touched its lines and create one fixup commit per attributed commit. Hunks
that cannot be attributed to exactly one commit in the branch's own range
are left staged, with the reason reported.

Run 'git rebase --autosquash' afterwards to squash the fixups into place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				branchName, err := app.Adapter.CurrentBranch(ctx)
				if err != nil {
					return err
				}

				if dryRun {
					mappings, err := app.Engine.PlanAbsorb(ctx, branchName)
					if err != nil {
						return err
					}
					if len(mappings) == 0 {
						app.Log.Info("nothing staged")
						return nil
					}
					for _, mapping := range mappings {
						if mapping.Attributable() {
							app.Log.Info("%s %s:%d would amend %s",
								output.ColorGreen("✓"), mapping.Hunk.File, mapping.Hunk.NewStart, mapping.Target[:min(8, len(mapping.Target))])
						} else {
							app.Log.Info("%s %s:%d stays staged (%s)",
								output.ColorDim("·"), mapping.Hunk.File, mapping.Hunk.NewStart, mapping.Reason)
						}
					}
					return nil
				}

				result, err := app.Engine.Absorb(ctx, branchName)
				if err != nil {
					return err
				}

				if len(result.Fixups) == 0 && len(result.Unmapped) == 0 {
					app.Log.Info("nothing staged")
					return nil
				}
				for _, fixup := range result.Fixups {
					app.Log.Info("%s fixup %s amends %s (%d hunks)",
						output.ColorGreen("✓"), fixup.Commit[:min(8, len(fixup.Commit))], fixup.Target[:min(8, len(fixup.Target))], fixup.Hunks)
				}
				for _, mapping := range result.Unmapped {
					app.Log.Warn("%s:%d left staged (%s)", mapping.Hunk.File, mapping.Hunk.NewStart, mapping.Reason)
				}
				if len(result.Fixups) > 0 {
					app.Log.Tip("run 'git rebase --autosquash %s' to squash the fixups", app.Config.BaseBranch)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show the attribution without creating fixup commits")

	return cmd
}
