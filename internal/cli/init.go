package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/auswm85/rung/internal/config"
)

// newInitCmd creates the init command
func newInitCmd() *cobra.Command {
	var (
		baseBranch string
		remote     string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize rung state in this repository",
		Long: `Initialize rung state in this repository. Creates the .git/rung
directory with an empty stack and writes the configuration file. Safe to
run again; existing stack state is preserved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := app.Store.Init(); err != nil {
					return err
				}

				cfg := app.Config
				if baseBranch != "" {
					cfg.BaseBranch = baseBranch
				}
				if remote != "" {
					cfg.Remote = remote
				}
				if err := config.Save(app.Repo.Root(), cfg); err != nil {
					return err
				}

				app.Log.Info("initialized rung in %s", app.Repo.RungDir())
				app.Log.Info("base branch: %s, remote: %s", cfg.BaseBranch, cfg.Remote)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&baseBranch, "base", "", "Base branch the stack forest grows from (default "+config.Default().BaseBranch+")")
	cmd.Flags().StringVar(&remote, "remote", "", "Remote used for divergence checks (default "+config.Default().Remote+")")

	return cmd
}
