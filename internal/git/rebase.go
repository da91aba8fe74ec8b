package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// RebaseOnto replays the commits of branchName that sit above oldBase onto
// newBase, then moves the branch ref to the rewritten tip.
//
// The rebase runs on a detached HEAD so worktree checkout conflicts cannot
// occur. On conflict the rebase is left in progress for the caller to
// resolve; the conflicting paths are reported in the outcome.
func (a *adapter) RebaseOnto(ctx context.Context, branchName, oldBase, newBase string) (RebaseOutcome, error) {
	branchRev, err := a.CurrentTip(ctx, branchName)
	if err != nil {
		return RebaseOutcome{}, err
	}

	// git rebase --onto <newBase> <oldBase> <branchRev> detaches HEAD at
	// the rewritten commit
	_, err = a.runner.Run(ctx, "rebase", "--onto", newBase, oldBase, branchRev)
	if err != nil {
		if a.IsMidRebase(ctx) {
			files, filesErr := a.ConflictingFiles(ctx)
			if filesErr != nil {
				files = nil
			}
			return RebaseOutcome{Conflict: true, Files: files}, nil
		}
		// Failed for a reason other than conflicts. Clean up any partial
		// rebase state and surface the failure.
		_, _ = a.runner.Run(ctx, "rebase", "--abort")
		return RebaseOutcome{}, fmt.Errorf("rebase of %s failed: %w", branchName, err)
	}

	newRev, err := a.runner.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return RebaseOutcome{}, fmt.Errorf("failed to resolve rebased tip: %w", err)
	}

	if _, err := a.runner.Run(ctx, "update-ref", "refs/heads/"+branchName, newRev); err != nil {
		return RebaseOutcome{}, fmt.Errorf("failed to update %s: %w", branchName, err)
	}

	return RebaseOutcome{NewTip: newRev}, nil
}

// RebaseContinue resumes a conflicted rebase after the caller resolved and
// staged the conflicting files, then moves the branch ref to the new tip
func (a *adapter) RebaseContinue(ctx context.Context, branchName string) (RebaseOutcome, error) {
	_, err := a.runner.Run(ctx, "-c", "core.editor=true", "rebase", "--continue")
	if err != nil {
		if a.IsMidRebase(ctx) {
			files, filesErr := a.ConflictingFiles(ctx)
			if filesErr != nil {
				files = nil
			}
			return RebaseOutcome{Conflict: true, Files: files}, nil
		}
		return RebaseOutcome{}, fmt.Errorf("rebase continue failed: %w", err)
	}

	newRev, err := a.runner.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return RebaseOutcome{}, fmt.Errorf("failed to resolve rebased tip: %w", err)
	}

	if _, err := a.runner.Run(ctx, "update-ref", "refs/heads/"+branchName, newRev); err != nil {
		return RebaseOutcome{}, fmt.Errorf("failed to update %s: %w", branchName, err)
	}

	return RebaseOutcome{NewTip: newRev}, nil
}

// RebaseAbort aborts an in-progress rebase
func (a *adapter) RebaseAbort(ctx context.Context) error {
	_, err := a.runner.Run(ctx, "rebase", "--abort")
	if err != nil {
		return fmt.Errorf("rebase abort failed: %w", err)
	}
	return nil
}

// IsMidRebase reports whether a rebase is currently in progress, detected
// via the rebase-merge/rebase-apply directories. This outlives REBASE_HEAD
// which can persist after a finished rebase.
func (a *adapter) IsMidRebase(ctx context.Context) bool {
	gitDir, err := a.runner.Run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return false
	}

	if _, err := os.Stat(filepath.Join(gitDir, "rebase-merge")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(gitDir, "rebase-apply")); err == nil {
		return true
	}
	return false
}

// ConflictingFiles returns the paths with unresolved conflict markers
func (a *adapter) ConflictingFiles(ctx context.Context) ([]string, error) {
	return a.runner.RunLines(ctx, "diff", "--name-only", "--diff-filter=U")
}
