package engine

import (
	"context"
	"fmt"
	"sync"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

// BranchState is a branch's relation to its parent
type BranchState string

const (
	// StateSynced means the branch sits on its parent's current tip
	StateSynced BranchState = "synced"
	// StateDiverged means the parent has moved since the last sync
	StateDiverged BranchState = "diverged"
)

// BranchStatus reports one branch's sync state and commit counts
type BranchStatus struct {
	Name   string      `json:"name"`
	Parent string      `json:"parent"`
	State  BranchState `json:"state"`

	// Ahead counts commits unique to the branch, Behind counts parent
	// commits the branch has not been rebased onto yet
	Ahead  int  `json:"ahead"`
	Behind int  `json:"behind"`
	PR     *int `json:"pr,omitempty"`
}

// Status computes every branch's sync state. Read-only, so the per-branch
// queries run concurrently.
func (e *Engine) Status(ctx context.Context) ([]BranchStatus, error) {
	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}

	branches := stack.Branches()
	statuses := make([]BranchStatus, len(branches))
	errs := make([]error, len(branches))

	var wg sync.WaitGroup
	for i, branch := range branches {
		wg.Add(1)
		go func(i int, branch *Branch) {
			defer wg.Done()
			statuses[i], errs[i] = e.branchStatus(ctx, branch)
		}(i, branch)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return statuses, nil
}

func (e *Engine) branchStatus(ctx context.Context, branch *Branch) (BranchStatus, error) {
	status := BranchStatus{Name: branch.Name, Parent: branch.Parent, PR: branch.PR}

	parentRef := branch.Parent
	if parentRef == "" {
		parentRef = e.cfg.BaseBranch
	}

	parentTip, err := e.adapter.CurrentTip(ctx, parentRef)
	if err != nil {
		return status, err
	}
	tip, err := e.adapter.CurrentTip(ctx, branch.Name)
	if err != nil {
		return status, err
	}

	ahead, behind, err := e.adapter.AheadBehind(ctx, tip, parentTip)
	if err != nil {
		return status, err
	}
	status.Ahead = ahead
	status.Behind = behind

	onParent, err := e.adapter.IsAncestor(ctx, parentTip, tip)
	if err != nil {
		return status, err
	}
	if onParent && (branch.LastKnownParentTip == "" || branch.LastKnownParentTip == parentTip) {
		status.State = StateSynced
	} else {
		status.State = StateDiverged
	}
	return status, nil
}

// PlanSync computes the bottom-up rewrite plan bringing stale branches
// back onto their parents' current tips. Pure: no refs or state change
// until Execute. Scope names a single branch to sync the root-to-branch
// chain for, or "" for the whole forest.
func (e *Engine) PlanSync(ctx context.Context, scope string, force bool) (*Plan, error) {
	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}

	var order []string
	if scope == "" {
		order = forestOrder(stack)
	} else {
		order, err = stack.AncestorChain(scope)
		if err != nil {
			return nil, err
		}
	}

	plan := &Plan{Kind: OpSync}
	planned := make(map[string]bool)

	for _, name := range order {
		branch := stack.Branch(name)
		if branch == nil {
			continue
		}

		parentRef := branch.Parent
		if parentRef == "" {
			parentRef = e.cfg.BaseBranch
		}
		parentTip, err := e.adapter.CurrentTip(ctx, parentRef)
		if err != nil {
			return nil, err
		}
		tip, err := e.adapter.CurrentTip(ctx, name)
		if err != nil {
			return nil, err
		}

		stale := branch.LastKnownParentTip != parentTip
		if !stale {
			onParent, err := e.adapter.IsAncestor(ctx, parentTip, tip)
			if err != nil {
				return nil, err
			}
			stale = !onParent
		}

		// A branch whose parent will be rewritten needs a rewrite too,
		// even if it was in sync with the parent's old tip
		if !stale && !planned[branch.Parent] {
			continue
		}

		if err := e.checkDivergence(ctx, name, tip, force); err != nil {
			return nil, err
		}

		oldBase := branch.LastKnownParentTip
		if oldBase == "" {
			oldBase, err = e.adapter.MergeBase(ctx, tip, parentTip)
			if err != nil {
				return nil, err
			}
		}

		plan.Actions = append(plan.Actions, RebaseAction{
			Branch:  name,
			Onto:    parentRef,
			OldBase: oldBase,
			NewBase: parentTip,
		})
		plan.Branches = append(plan.Branches, name)
		planned[name] = true
	}

	return plan, nil
}

// checkDivergence refuses to rewrite a branch whose local tip and remote
// counterpart have both advanced: a true fork, where a rebase would
// silently discard one side's work
func (e *Engine) checkDivergence(ctx context.Context, name, tip string, force bool) error {
	if force {
		return nil
	}

	remoteTip, err := e.adapter.RemoteTip(ctx, e.cfg.Remote, name)
	if err != nil || remoteTip == "" || remoteTip == tip {
		return nil
	}

	ahead, behind, err := e.adapter.AheadBehind(ctx, tip, remoteTip)
	if err != nil {
		return nil
	}
	if ahead > 0 && behind > 0 {
		return fmt.Errorf("%w: %s and %s/%s have both advanced (%d and %d commits); use --force to override",
			rungerrors.ErrDiverged, name, e.cfg.Remote, name, ahead, behind)
	}
	return nil
}

// forestOrder returns every branch parents-first, walking each root's
// subtree depth first in insertion order
func forestOrder(stack *Stack) []string {
	var order []string
	var walk func(name string)
	seen := make(map[string]bool)
	walk = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		order = append(order, name)
		for _, child := range stack.ChildrenOf(name) {
			walk(child)
		}
	}
	for _, root := range stack.ChildrenOf("") {
		walk(root)
	}
	return order
}
