package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auswm85/rung/internal/engine"
	"github.com/auswm85/rung/internal/github"
	"github.com/auswm85/rung/internal/output"
)

// newStatusCmd creates the status command
func newStatusCmd() *cobra.Command {
	var withPRs bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stack forest and which branches need a sync",
		Long: `Show the stack forest with each branch's relationship to its parent.
A branch is marked when its parent has moved since it was last rebased.
With --prs, pull request numbers are fetched from GitHub and shown, along
with any PR whose base no longer matches the branch's parent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, app *App) error {
				if err := requireInitialized(app); err != nil {
					return err
				}

				stack, err := app.Store.LoadStack()
				if err != nil {
					return err
				}
				if stack.Len() == 0 {
					app.Log.Info("stack is empty")
					return nil
				}

				statuses, err := app.Engine.Status(ctx)
				if err != nil {
					return err
				}

				var prs map[string]*github.PRInfo
				if withPRs {
					prs = fetchPRs(ctx, app, stack.Names())
				}

				currentBranch, err := app.Adapter.CurrentBranch(ctx)
				if err != nil {
					currentBranch = ""
				}

				// The renderer asks for children by the name it prints;
				// roots are tracked with an empty parent
				children := func(branchName string) []string {
					if branchName == app.Config.BaseBranch {
						return stack.ChildrenOf("")
					}
					return stack.ChildrenOf(branchName)
				}

				renderer := output.NewForestRenderer(currentBranch, app.Config.BaseBranch, children)
				for _, status := range statuses {
					renderer.SetAnnotation(status.Name, annotationFor(status, prs[status.Name], app.Config.BaseBranch))
				}
				for _, line := range renderer.Render() {
					app.Log.Info("%s", line)
				}

				if state, err := app.Store.LoadOpState(); err == nil && state != nil {
					app.Log.Newline()
					app.Log.Warn("%s operation in progress (paused at %s): continue or abort it", state.Kind, state.PausedAt)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withPRs, "prs", false, "Fetch and show pull request numbers from GitHub")

	return cmd
}

// fetchPRs looks up open PRs for all stack branches. Failures degrade to
// output without PR columns rather than failing the status command.
func fetchPRs(ctx context.Context, app *App, branchNames []string) map[string]*github.PRInfo {
	remoteURL := app.Repo.RemoteURL(app.Config.Remote)
	if remoteURL == "" {
		app.Log.Debug("remote %s has no URL, skipping PR fetch", app.Config.Remote)
		return nil
	}
	client, err := github.NewClient(ctx, remoteURL)
	if err != nil {
		app.Log.Debug("PR fetch unavailable: %v", err)
		return nil
	}
	return github.FetchAll(ctx, client, branchNames)
}

func annotationFor(status engine.BranchStatus, pr *github.PRInfo, baseBranch string) output.BranchAnnotation {
	annotation := output.BranchAnnotation{
		NeedsSync: status.State == engine.StateDiverged,
	}
	if status.Ahead > 0 || status.Behind > 0 {
		annotation.Label = fmt.Sprintf("%d ahead, %d behind", status.Ahead, status.Behind)
	}

	if pr != nil {
		annotation.PRNumber = &pr.Number
		expectedBase := status.Parent
		if expectedBase == "" {
			expectedBase = baseBranch
		}
		if pr.Base != "" && pr.Base != expectedBase {
			annotation.PRBase = fmt.Sprintf("%s, expected %s", pr.Base, expectedBase)
		}
	}
	return annotation
}
