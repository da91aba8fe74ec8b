package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/auswm85/rung/internal/output"
)

// newUndoCmd creates the undo command
func newUndoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Restore the stack to its state before the last operation",
		Long: `Restore every branch and the stack topology to the snapshot taken before
the most recent completed operation. Each operation consumes one snapshot,
so repeated undos step further back until no snapshots remain.

Refused while an operation is paused; continue or abort it first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				backup, err := app.Engine.UndoLast(ctx)
				if err != nil {
					return err
				}

				app.Log.Info("restored %d branches from the snapshot taken before %s (%s)",
					len(backup.Branches), backup.Operation, backup.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				for name := range backup.Branches {
					app.Log.Info("%s %s", output.ColorGreen("✓"), name)
				}
				return nil
			})
		},
	}

	return cmd
}
