package engine

import (
	"context"
	"fmt"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

// Track adds an existing git branch to the stack under the given parent.
// An empty parent stacks the branch directly on the base branch. The
// parent's current tip is recorded so the branch starts out synced.
func (e *Engine) Track(ctx context.Context, branchName, parent string) (*Branch, error) {
	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}

	exists, err := e.adapter.BranchExists(ctx, branchName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("branch %s does not exist", branchName)
	}

	branch, err := stack.AddBranch(branchName, parent)
	if err != nil {
		return nil, err
	}

	tip, err := e.adapter.CurrentTip(ctx, branchName)
	if err != nil {
		return nil, err
	}
	branch.Tip = tip

	parentRef := parent
	if parentRef == "" {
		parentRef = e.cfg.BaseBranch
	}
	if parentTip, err := e.adapter.CurrentTip(ctx, parentRef); err == nil {
		branch.LastKnownParentTip = parentTip
	}

	if err := e.store.SaveStack(stack); err != nil {
		return nil, err
	}
	return branch, nil
}

// Untrack removes a branch from the stack without touching its git ref.
// Children reattach to the removed branch's parent.
func (e *Engine) Untrack(ctx context.Context, branchName string) error {
	state, err := e.store.LoadOpState()
	if err != nil {
		return err
	}
	if state != nil {
		return fmt.Errorf("%w: %s operation pending, continue or abort it first",
			rungerrors.ErrOperationInProgress, state.Kind)
	}

	stack, err := e.store.LoadStack()
	if err != nil {
		return err
	}
	if err := stack.RemoveBranch(branchName); err != nil {
		return err
	}
	return e.store.SaveStack(stack)
}
