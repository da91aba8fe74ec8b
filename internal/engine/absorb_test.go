package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	rungerrors "github.com/auswm85/rung/internal/errors"
	"github.com/auswm85/rung/internal/git"
)

func ownedLines(owner string, count int) []string {
	owners := make([]string, count)
	for i := range owners {
		owners[i] = owner
	}
	return owners
}

func TestPlanAbsorbAttribution(t *testing.T) {
	e, mock, store := newTestEngine(t)
	stack := seedChain(t, store, mock, "a")
	c1 := mock.refs["a"]
	c2 := mock.advance("a")
	stack.Branch("a").Tip = c2
	require.NoError(t, store.SaveStack(stack))
	ctx := context.Background()

	t.Run("single owner in range", func(t *testing.T) {
		mock.staged = []git.Hunk{{File: "auth.go", OldStart: 3, OldCount: 2, NewStart: 3, NewCount: 2}}
		mock.blames = map[string][]string{"auth.go": ownedLines(c1, 10)}

		mappings, err := e.PlanAbsorb(ctx, "a")
		require.NoError(t, err)
		require.Len(t, mappings, 1)
		require.True(t, mappings[0].Attributable())
		require.Equal(t, c1, mappings[0].Target)
	})

	t.Run("lines owned by two commits", func(t *testing.T) {
		owners := append(ownedLines(c1, 3), ownedLines(c2, 3)...)
		mock.staged = []git.Hunk{{File: "auth.go", OldStart: 2, OldCount: 4, NewStart: 2, NewCount: 4}}
		mock.blames = map[string][]string{"auth.go": owners}

		mappings, err := e.PlanAbsorb(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, ReasonMultipleCommits, mappings[0].Reason)
	})

	t.Run("new file", func(t *testing.T) {
		mock.staged = []git.Hunk{{File: "fresh.go", NewFile: true, NewStart: 1, NewCount: 5}}

		mappings, err := e.PlanAbsorb(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, ReasonNewFile, mappings[0].Reason)
	})

	t.Run("file without history", func(t *testing.T) {
		mock.staged = []git.Hunk{{File: "unknown.go", OldStart: 1, OldCount: 2, NewStart: 1, NewCount: 2}}
		mock.blames = map[string][]string{}

		mappings, err := e.PlanAbsorb(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, ReasonNewFile, mappings[0].Reason)
	})

	t.Run("insert only", func(t *testing.T) {
		mock.staged = []git.Hunk{{File: "auth.go", OldStart: 4, OldCount: 0, NewStart: 5, NewCount: 3}}
		mock.blames = map[string][]string{"auth.go": ownedLines(c1, 10)}

		mappings, err := e.PlanAbsorb(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, ReasonInsertOnly, mappings[0].Reason)
	})

	t.Run("owner on base branch", func(t *testing.T) {
		mock.staged = []git.Hunk{{File: "auth.go", OldStart: 1, OldCount: 2, NewStart: 1, NewCount: 2}}
		mock.blames = map[string][]string{"auth.go": ownedLines(mock.refs["main"], 10)}

		mappings, err := e.PlanAbsorb(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, ReasonBaseBranch, mappings[0].Reason)
	})

	t.Run("owner outside range", func(t *testing.T) {
		stray := mock.newCommit(mock.refs["main"])
		mock.staged = []git.Hunk{{File: "auth.go", OldStart: 1, OldCount: 2, NewStart: 1, NewCount: 2}}
		mock.blames = map[string][]string{"auth.go": ownedLines(stray, 10)}

		mappings, err := e.PlanAbsorb(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, ReasonOutsideRange, mappings[0].Reason)
	})

	t.Run("blame failure", func(t *testing.T) {
		// Blame range runs past the file's recorded lines
		mock.staged = []git.Hunk{{File: "auth.go", OldStart: 9, OldCount: 5, NewStart: 9, NewCount: 5}}
		mock.blames = map[string][]string{"auth.go": ownedLines(c1, 10)}

		mappings, err := e.PlanAbsorb(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, ReasonBlameError, mappings[0].Reason)
	})

	t.Run("nothing staged", func(t *testing.T) {
		mock.staged = nil
		mappings, err := e.PlanAbsorb(ctx, "a")
		require.NoError(t, err)
		require.Empty(t, mappings)
	})
}

func TestAbsorbCreatesFixups(t *testing.T) {
	e, mock, store := newTestEngine(t)
	stack := seedChain(t, store, mock, "a")
	c1 := mock.refs["a"]
	c2 := mock.advance("a")
	stack.Branch("a").Tip = c2
	require.NoError(t, store.SaveStack(stack))
	mock.current = "a"
	ctx := context.Background()

	// Two hunks owned by c1, one by c2, one unattributable new file
	mock.staged = []git.Hunk{
		{File: "auth.go", OldStart: 1, OldCount: 2, NewStart: 1, NewCount: 2},
		{File: "auth.go", OldStart: 8, OldCount: 1, NewStart: 8, NewCount: 2},
		{File: "token.go", OldStart: 4, OldCount: 1, NewStart: 4, NewCount: 1},
		{File: "fresh.go", NewFile: true, NewStart: 1, NewCount: 3},
	}
	mock.blames = map[string][]string{
		"auth.go":  ownedLines(c1, 10),
		"token.go": ownedLines(c2, 10),
	}

	result, err := e.Absorb(ctx, "a")
	require.NoError(t, err)
	require.Len(t, result.Fixups, 2)
	require.Equal(t, c1, result.Fixups[0].Target)
	require.Equal(t, 2, result.Fixups[0].Hunks)
	require.Equal(t, c2, result.Fixups[1].Target)
	require.Equal(t, 1, result.Fixups[1].Hunks)
	require.Len(t, result.Unmapped, 1)
	require.Equal(t, ReasonNewFile, result.Unmapped[0].Reason)

	require.Equal(t, 1, mock.resetCalls)
	require.Equal(t, []string{c1, c2}, mock.fixupTargets)
	// One patch per fixup plus the restaged leftover
	require.Len(t, mock.appliedPatches, 3)

	// Stack tracks the tip the fixups moved
	reloaded, err := store.LoadStack()
	require.NoError(t, err)
	require.Equal(t, mock.refs["a"], reloaded.Branch("a").Tip)

	// A backup was taken before the index was touched
	_, err = store.LatestBackupID()
	require.NoError(t, err)
}

func TestAbsorbRestagesLeftoversOnError(t *testing.T) {
	e, mock, store := newTestEngine(t)
	stack := seedChain(t, store, mock, "a")
	c1 := mock.refs["a"]
	c2 := mock.advance("a")
	stack.Branch("a").Tip = c2
	require.NoError(t, store.SaveStack(stack))
	mock.current = "a"
	ctx := context.Background()

	mock.staged = []git.Hunk{
		{File: "auth.go", OldStart: 1, OldCount: 2, NewStart: 1, NewCount: 2},
		{File: "token.go", OldStart: 4, OldCount: 1, NewStart: 4, NewCount: 1},
		{File: "fresh.go", NewFile: true, NewStart: 1, NewCount: 3},
	}
	mock.blames = map[string][]string{
		"auth.go":  ownedLines(c1, 10),
		"token.go": ownedLines(c2, 10),
	}

	mock.failFixupOn = c1
	_, err := e.Absorb(ctx, "a")
	require.Error(t, err)

	// The first group's fixup failed after staging it, so the second
	// group and the unmapped hunk go back into the index
	require.Len(t, mock.appliedPatches, 2)
	require.Contains(t, mock.appliedPatches[1], "token.go")
	require.Contains(t, mock.appliedPatches[1], "fresh.go")
	require.Empty(t, mock.fixupTargets)
}

func TestAbsorbGuards(t *testing.T) {
	e, mock, store := newTestEngine(t)
	seedChain(t, store, mock, "a")
	ctx := context.Background()

	t.Run("wrong branch checked out", func(t *testing.T) {
		mock.current = "main"
		_, err := e.Absorb(ctx, "a")
		require.Error(t, err)
	})

	t.Run("not in stack", func(t *testing.T) {
		mock.current = "nope"
		mock.refs["nope"] = mock.refs["main"]
		_, err := e.Absorb(ctx, "nope")
		require.ErrorIs(t, err, rungerrors.ErrNotInStack)
	})

	t.Run("operation pending", func(t *testing.T) {
		require.NoError(t, store.SaveOpState(&OpState{Kind: OpSync}))
		defer func() { require.NoError(t, store.ClearOpState()) }()

		mock.current = "a"
		_, err := e.Absorb(ctx, "a")
		require.ErrorIs(t, err, rungerrors.ErrOperationInProgress)
	})
}
