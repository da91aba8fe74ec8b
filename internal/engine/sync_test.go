package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

func planBranches(plan *Plan) []string {
	var names []string
	for _, action := range plan.Actions {
		names = append(names, action.Branch)
	}
	return names
}

func TestStatus(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a", "b", "c")
	ctx := context.Background()

	t.Run("all synced", func(t *testing.T) {
		statuses, err := e.Status(ctx)
		require.NoError(t, err)
		require.Len(t, statuses, 3)
		for _, status := range statuses {
			require.Equal(t, StateSynced, status.State, status.Name)
			require.Equal(t, 1, status.Ahead, status.Name)
			require.Zero(t, status.Behind, status.Name)
		}
	})

	t.Run("base moved", func(t *testing.T) {
		mock.advance("main")

		statuses, err := e.Status(ctx)
		require.NoError(t, err)
		byName := make(map[string]BranchStatus)
		for _, status := range statuses {
			byName[status.Name] = status
		}

		require.Equal(t, StateDiverged, byName["a"].State)
		require.Equal(t, 1, byName["a"].Behind)
		require.Equal(t, StateSynced, byName["b"].State)
		require.Equal(t, StateSynced, byName["c"].State)
	})
}

func TestSyncFullPass(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a", "b", "c")
	ctx := context.Background()

	mock.advance("main")

	plan, err := e.PlanSync(ctx, "", false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, planBranches(plan))

	result, err := e.Execute(ctx, plan)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, []string{"a", "b", "c"}, result.Completed)
	require.Empty(t, result.Remaining)

	// Every branch now descends from its parent's final tip and records it
	stack, err := store.LoadStack()
	require.NoError(t, err)
	parentTip := mock.refs["main"]
	for _, name := range []string{"a", "b", "c"} {
		branch := stack.Branch(name)
		require.Equal(t, mock.refs[name], branch.Tip, name)
		require.Equal(t, parentTip, branch.LastKnownParentTip, name)
		onParent, err := mock.IsAncestor(ctx, parentTip, branch.Tip)
		require.NoError(t, err)
		require.True(t, onParent, name)
		parentTip = branch.Tip
	}

	// Operation record cleared, backup retained for undo
	state, err := store.LoadOpState()
	require.NoError(t, err)
	require.Nil(t, state)
	_, err = store.LatestBackupID()
	require.NoError(t, err)
}

func TestSyncSkipsWhenNothingStale(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a", "b")

	plan, err := e.PlanSync(context.Background(), "", false)
	require.NoError(t, err)
	require.Empty(t, plan.Actions)
}

func TestSyncConflictPausesAndContinues(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a", "b", "c")
	ctx := context.Background()

	mock.advance("main")
	mock.conflictOn["b"] = true
	mock.conflictFiles = []string{"src/auth.go"}

	plan, err := e.PlanSync(ctx, "", false)
	require.NoError(t, err)

	result, err := e.Execute(ctx, plan)
	require.NoError(t, err)
	require.Equal(t, StatusPaused, result.Status)
	require.Equal(t, "b", result.PausedAt)
	require.Equal(t, []string{"a"}, result.Completed)
	require.Equal(t, []string{"c"}, result.Remaining)
	require.Equal(t, []string{"src/auth.go"}, result.ConflictFiles)

	// A second mutation is refused while the operation is pending
	_, err = e.Execute(ctx, plan)
	require.ErrorIs(t, err, rungerrors.ErrOperationInProgress)

	t.Run("continue with unresolved files", func(t *testing.T) {
		_, err := e.Continue(ctx)
		require.ErrorIs(t, err, rungerrors.ErrStillConflicted)
	})

	t.Run("continue after resolution", func(t *testing.T) {
		mock.unresolved = nil

		result, err := e.Continue(ctx)
		require.NoError(t, err)
		require.Equal(t, StatusCompleted, result.Status)
		require.Equal(t, []string{"a", "b", "c"}, result.Completed)

		state, err := store.LoadOpState()
		require.NoError(t, err)
		require.Nil(t, state)
	})
}

func TestContinueWithoutOperation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.Continue(context.Background())
	require.ErrorIs(t, err, rungerrors.ErrNoOperationInProgress)
}

func TestContinuePausedButNoRebase(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a", "b")
	ctx := context.Background()

	mock.advance("main")
	mock.conflictOn["a"] = true
	plan, err := e.PlanSync(ctx, "", false)
	require.NoError(t, err)
	_, err = e.Execute(ctx, plan)
	require.NoError(t, err)

	// Conflict resolved out of band in a way that also ended the rebase:
	// refuse rather than guess
	mock.midRebase = false
	mock.unresolved = nil
	_, err = e.Continue(ctx)
	require.ErrorIs(t, err, rungerrors.ErrStillConflicted)
}

func TestAbortRestoresAllBranches(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a", "b", "c")
	ctx := context.Background()

	original := map[string]string{"a": mock.refs["a"], "b": mock.refs["b"], "c": mock.refs["c"]}

	mock.advance("main")
	mock.conflictOn["b"] = true
	mock.conflictFiles = []string{"src/auth.go"}

	plan, err := e.PlanSync(ctx, "", false)
	require.NoError(t, err)
	result, err := e.Execute(ctx, plan)
	require.NoError(t, err)
	require.Equal(t, StatusPaused, result.Status)

	require.NoError(t, e.Abort(ctx))
	require.False(t, mock.midRebase)
	for name, tip := range original {
		require.Equal(t, tip, mock.refs[name], name)
	}

	stack, err := store.LoadStack()
	require.NoError(t, err)
	for name := range original {
		require.Equal(t, original[name], stack.Branch(name).Tip, name)
	}

	// Idempotent: the second abort is a no-op error, never destructive
	err = e.Abort(ctx)
	require.ErrorIs(t, err, rungerrors.ErrNoOperationInProgress)
	for name, tip := range original {
		require.Equal(t, tip, mock.refs[name], name)
	}
}

func TestCancellationBetweenActions(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock.advance("main")
	plan, err := e.PlanSync(context.Background(), "", false)
	require.NoError(t, err)

	_, err = e.Execute(ctx, plan)
	require.ErrorIs(t, err, context.Canceled)

	// The operation record survives for continue or abort
	state, err := store.LoadOpState()
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NoError(t, e.Abort(context.Background()))
}

func TestDivergenceGuard(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a")
	ctx := context.Background()

	// Remote counterpart forked: both sides have a commit the other lacks
	forkPoint := mock.commits[mock.refs["a"]]
	mock.remote["a"] = mock.newCommit(forkPoint)
	mock.advance("main")

	_, err := e.PlanSync(ctx, "", false)
	require.ErrorIs(t, err, rungerrors.ErrDiverged)

	plan, err := e.PlanSync(ctx, "", true)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, planBranches(plan))
}

func TestUndoThenResyncIsDeterministic(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a", "b")
	ctx := context.Background()

	originalTips := map[string]string{"a": mock.refs["a"], "b": mock.refs["b"]}
	mock.advance("main")

	firstPlan, err := e.PlanSync(ctx, "", false)
	require.NoError(t, err)
	_, err = e.Execute(ctx, firstPlan)
	require.NoError(t, err)

	backup, err := e.UndoLast(ctx)
	require.NoError(t, err)
	require.Equal(t, originalTips["a"], backup.Branches["a"])
	require.Equal(t, originalTips["a"], mock.refs["a"])
	require.Equal(t, originalTips["b"], mock.refs["b"])

	// Topology and recorded parent tips rolled back too, so replanning
	// yields the identical plan
	secondPlan, err := e.PlanSync(ctx, "", false)
	require.NoError(t, err)
	require.Equal(t, firstPlan.Actions, secondPlan.Actions)

	result, err := e.Execute(ctx, secondPlan)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)

	_, err = e.UndoLast(ctx)
	require.NoError(t, err)
	_, err = e.UndoLast(ctx)
	require.ErrorIs(t, err, rungerrors.ErrNoBackupFound)
}

func TestSyncScopedToChain(t *testing.T) {
	e, mock, store := newTestEngine(t)
	stack := seedChain(t, store, mock, "a", "b")

	// A sibling of b on top of a, outside the chain to b
	siblingTip := mock.newCommit(mock.refs["a"])
	mock.refs["sibling"] = siblingTip
	branch, err := stack.AddBranch("sibling", "a")
	require.NoError(t, err)
	branch.Tip = siblingTip
	branch.LastKnownParentTip = mock.refs["a"]
	require.NoError(t, store.SaveStack(stack))

	mock.advance("main")

	plan, err := e.PlanSync(context.Background(), "b", false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, planBranches(plan))
}
