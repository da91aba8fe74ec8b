package git

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func (a *adapter) resolveCommit(rev string) (*object.Commit, error) {
	hash, err := a.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	commit, err := a.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", rev, err)
	}
	return commit, nil
}

// MergeBase returns the merge base between two revisions
func (a *adapter) MergeBase(ctx context.Context, rev1, rev2 string) (string, error) {
	commit1, err := a.resolveCommit(rev1)
	if err != nil {
		return "", err
	}
	commit2, err := a.resolveCommit(rev2)
	if err != nil {
		return "", err
	}

	bases, err := commit1.MergeBase(commit2)
	if err != nil {
		return "", fmt.Errorf("failed to find merge base: %w", err)
	}
	if len(bases) == 0 {
		return "", fmt.Errorf("no merge base between %s and %s", rev1, rev2)
	}
	return bases[0].Hash.String(), nil
}

// IsAncestor reports whether ancestor is reachable from descendant
func (a *adapter) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	ancestorCommit, err := a.resolveCommit(ancestor)
	if err != nil {
		return false, err
	}
	descendantCommit, err := a.resolveCommit(descendant)
	if err != nil {
		return false, err
	}

	if ancestorCommit.Hash == descendantCommit.Hash {
		return true, nil
	}
	return ancestorCommit.IsAncestor(descendantCommit)
}
