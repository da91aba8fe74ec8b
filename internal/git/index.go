package git

import (
	"context"
	"fmt"
)

// ApplyToIndex applies a patch to the index only, leaving the working
// tree untouched
func (a *adapter) ApplyToIndex(ctx context.Context, patch string) error {
	_, err := a.runner.RunWithInput(ctx, patch, "apply", "--cached", "--unidiff-zero", "-")
	if err != nil {
		return fmt.Errorf("failed to apply patch to index: %w", err)
	}
	return nil
}

// ResetIndex unstages everything, keeping working tree contents
func (a *adapter) ResetIndex(ctx context.Context) error {
	_, err := a.runner.Run(ctx, "reset", "--quiet", "HEAD")
	return err
}

// CommitFixup commits the current index as a fixup of the target commit
// and returns the new commit SHA
func (a *adapter) CommitFixup(ctx context.Context, targetSHA string) (string, error) {
	_, err := a.runner.Run(ctx, "commit", "--no-verify", "--fixup="+targetSHA)
	if err != nil {
		return "", fmt.Errorf("failed to create fixup commit: %w", err)
	}
	return a.runner.Run(ctx, "rev-parse", "HEAD")
}
