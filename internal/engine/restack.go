package engine

import (
	"context"
	"fmt"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

// PlanRestack computes the plan moving branch onto newParent, refusing
// any reparent that would create a cycle. The topology edit itself is
// applied only after every rewrite action succeeds. An empty newParent
// moves the branch onto the base branch.
func (e *Engine) PlanRestack(ctx context.Context, branchName, newParent string, withDescendants bool) (*Plan, error) {
	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}

	branch := stack.Branch(branchName)
	if branch == nil {
		return nil, fmt.Errorf("%w: %s", rungerrors.ErrNotInStack, branchName)
	}
	if newParent != "" && !stack.Contains(newParent) {
		return nil, fmt.Errorf("%w: %s", rungerrors.ErrUnknownParent, newParent)
	}
	if newParent == branch.Parent {
		return nil, fmt.Errorf("%s is already parented on %s", branchName, parentDisplay(newParent, e.cfg.BaseBranch))
	}
	if err := stack.CheckReparent(branchName, newParent); err != nil {
		return nil, err
	}

	plan := &Plan{
		Kind: OpRestack,
		Restack: &RestackSpec{
			Branch:          branchName,
			NewParent:       newParent,
			WithDescendants: withDescendants,
		},
	}

	action, err := e.restackAction(ctx, stack, branchName, newParent)
	if err != nil {
		return nil, err
	}
	plan.Actions = append(plan.Actions, action)
	plan.Branches = append(plan.Branches, branchName)

	if withDescendants {
		for _, descendant := range stack.Descendants(branchName) {
			parent := stack.Branch(descendant).Parent
			action, err := e.restackAction(ctx, stack, descendant, parent)
			if err != nil {
				return nil, err
			}
			plan.Actions = append(plan.Actions, action)
			plan.Branches = append(plan.Branches, descendant)
		}
	}

	return plan, nil
}

// restackAction builds the rewrite step for one branch moving onto the
// given parent (its existing one for descendants, the new one for the
// restacked branch itself)
func (e *Engine) restackAction(ctx context.Context, stack *Stack, branchName, ontoParent string) (RebaseAction, error) {
	branch := stack.Branch(branchName)

	ontoRef := ontoParent
	if ontoRef == "" {
		ontoRef = e.cfg.BaseBranch
	}
	ontoTip, err := e.adapter.CurrentTip(ctx, ontoRef)
	if err != nil {
		return RebaseAction{}, err
	}

	oldBase := branch.LastKnownParentTip
	if oldBase == "" {
		tip, err := e.adapter.CurrentTip(ctx, branchName)
		if err != nil {
			return RebaseAction{}, err
		}
		currentParentRef := branch.Parent
		if currentParentRef == "" {
			currentParentRef = e.cfg.BaseBranch
		}
		currentParentTip, err := e.adapter.CurrentTip(ctx, currentParentRef)
		if err != nil {
			return RebaseAction{}, err
		}
		oldBase, err = e.adapter.MergeBase(ctx, tip, currentParentTip)
		if err != nil {
			return RebaseAction{}, err
		}
	}

	return RebaseAction{
		Branch:  branchName,
		Onto:    ontoRef,
		OldBase: oldBase,
		NewBase: ontoTip,
	}, nil
}

func parentDisplay(parent, base string) string {
	if parent == "" {
		return base
	}
	return parent
}
