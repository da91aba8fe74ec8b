package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/auswm85/rung/internal/engine"
)

// newSplitCmd creates the split command
func newSplitCmd() *cobra.Command {
	var at []string

	cmd := &cobra.Command{
		Use:   "split <branch>",
		Short: "Split a branch into a chain of smaller branches",
		Long: `Split a branch at one or more of its commits. Each --at point becomes a
new branch holding the commits up to it, chained oldest first below the
original branch. No history is rewritten; the original branch keeps its
tip and ends up parented on the newest new branch.

Points are given as <commit>:<name> and must be listed oldest first, for
example:

  rung split feature --at 4f21ab9:feature-db --at 88c0d12:feature-api`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parseSplitPoints(at)
			if err != nil {
				return err
			}

			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				plan, err := app.Engine.PlanSplit(ctx, args[0], points)
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

	cmd.Flags().StringArrayVar(&at, "at", nil, "Split point as <commit>:<name>, repeatable, oldest first")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

func parseSplitPoints(specs []string) ([]engine.SplitPoint, error) {
	points := make([]engine.SplitPoint, 0, len(specs))
	for _, spec := range specs {
		commit, name, ok := strings.Cut(spec, ":")
		if !ok || commit == "" || name == "" {
			return nil, fmt.Errorf("invalid split point %q: expected <commit>:<name>", spec)
		}
		points = append(points, engine.SplitPoint{Commit: commit, Name: name})
	}
	return points, nil
}
