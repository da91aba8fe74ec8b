package engine

import (
	"context"
	"fmt"
	"strings"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

// PlanSplit computes the decomposition of a branch into a chain of new
// branches, one per split point. Points must name commits on the direct
// line from the branch's parent to its tip, oldest first. Splitting only
// creates refs and edits topology; no history is rewritten.
func (e *Engine) PlanSplit(ctx context.Context, branchName string, points []SplitPoint) (*Plan, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no split points given")
	}

	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}

	branch := stack.Branch(branchName)
	if branch == nil {
		return nil, fmt.Errorf("%w: %s", rungerrors.ErrNotInStack, branchName)
	}

	seen := make(map[string]bool)
	for _, point := range points {
		if err := ValidateBranchName(point.Name); err != nil {
			return nil, err
		}
		if stack.Contains(point.Name) || seen[point.Name] {
			return nil, fmt.Errorf("%w: %s", rungerrors.ErrDuplicateBranch, point.Name)
		}
		if exists, err := e.adapter.BranchExists(ctx, point.Name); err == nil && exists {
			return nil, fmt.Errorf("%w: ref %s already exists", rungerrors.ErrDuplicateBranch, point.Name)
		}
		seen[point.Name] = true
	}

	parentRef := branch.Parent
	if parentRef == "" {
		parentRef = e.cfg.BaseBranch
	}
	parentTip, err := e.adapter.CurrentTip(ctx, parentRef)
	if err != nil {
		return nil, err
	}
	tip, err := e.adapter.CurrentTip(ctx, branchName)
	if err != nil {
		return nil, err
	}

	// rev-list output is newest first; the points must appear in strictly
	// descending positions to be oldest first on the line
	line, err := e.adapter.CommitsBetween(ctx, parentTip, tip)
	if err != nil {
		return nil, err
	}

	resolved := make([]SplitPoint, len(points))
	lastIndex := len(line)
	for i, point := range points {
		index := findCommit(line, point.Commit)
		if index < 0 {
			return nil, fmt.Errorf("commit %s is not between %s and %s",
				point.Commit, parentDisplay(branch.Parent, e.cfg.BaseBranch), branchName)
		}
		if index >= lastIndex {
			return nil, fmt.Errorf("split points must be ordered oldest first: %s is not above %s",
				point.Commit, points[i-1].Commit)
		}
		lastIndex = index
		resolved[i] = SplitPoint{Commit: line[index], Name: point.Name}
	}

	return &Plan{
		Kind:     OpSplit,
		Branches: []string{branchName},
		Split: &SplitSpec{
			Branch: branchName,
			Points: resolved,
		},
	}, nil
}

// findCommit locates a commit in a rev-list line, accepting abbreviated
// ids
func findCommit(line []string, commit string) int {
	for i, sha := range line {
		if sha == commit || (len(commit) >= 7 && strings.HasPrefix(sha, commit)) {
			return i
		}
	}
	return -1
}
