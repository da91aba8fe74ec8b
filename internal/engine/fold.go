package engine

import (
	"context"
	"fmt"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

// PlanFold computes the collapse of a parent-to-child chain into its
// oldest branch. Sources must form an unbroken chain growing up from
// target, with no forks anywhere along it. Each source's unique commits
// are replayed onto the running target tip; refs and topology entries are
// removed only after every rewrite succeeds.
func (e *Engine) PlanFold(ctx context.Context, target string, sources []string) (*Plan, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no branches to fold")
	}

	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}

	if !stack.Contains(target) {
		return nil, fmt.Errorf("%w: %s", rungerrors.ErrNotInStack, target)
	}

	// Validate the chain: each source is the sole child of the branch
	// below it
	previous := target
	for _, name := range sources {
		branch := stack.Branch(name)
		if branch == nil {
			return nil, fmt.Errorf("%w: %s", rungerrors.ErrNotInStack, name)
		}
		if branch.Parent != previous {
			return nil, fmt.Errorf("%s is not a child of %s: fold requires an unbroken chain", name, previous)
		}
		if children := stack.ChildrenOf(previous); len(children) != 1 {
			return nil, fmt.Errorf("%s has %d children: fold requires an unforked chain", previous, len(children))
		}
		previous = name
	}

	plan := &Plan{
		Kind:     OpFold,
		Branches: append([]string{target}, sources...),
		Fold: &FoldSpec{
			Target:  target,
			Sources: sources,
		},
	}

	for _, name := range sources {
		branch := stack.Branch(name)

		oldBase := branch.LastKnownParentTip
		if oldBase == "" {
			tip, err := e.adapter.CurrentTip(ctx, name)
			if err != nil {
				return nil, err
			}
			parentTip, err := e.adapter.CurrentTip(ctx, branch.Parent)
			if err != nil {
				return nil, err
			}
			oldBase, err = e.adapter.MergeBase(ctx, tip, parentTip)
			if err != nil {
				return nil, err
			}
		}

		targetTip, err := e.adapter.CurrentTip(ctx, target)
		if err != nil {
			return nil, err
		}

		plan.Actions = append(plan.Actions, RebaseAction{
			Branch:  name,
			Onto:    target,
			OldBase: oldBase,
			NewBase: targetTip,
		})
	}

	return plan, nil
}
