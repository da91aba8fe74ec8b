package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auswm85/rung/internal/config"
	"github.com/auswm85/rung/internal/output"
)

func newTestEngine(t *testing.T) (*Engine, *mockAdapter, *Store) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "rung"))
	require.NoError(t, store.Init())
	mock := newMockAdapter()
	return New(mock, store, config.Default(), output.NewSplog()), mock, store
}

// seedChain builds a linear stack, each branch one commit above its
// parent and fully synced, and persists it
func seedChain(t *testing.T, store *Store, m *mockAdapter, names ...string) *Stack {
	t.Helper()
	stack := NewStack()

	parentName := ""
	parentTip := m.refs["main"]
	for _, name := range names {
		tip := m.newCommit(parentTip)
		m.refs[name] = tip

		branch, err := stack.AddBranch(name, parentName)
		require.NoError(t, err)
		branch.Tip = tip
		branch.LastKnownParentTip = parentTip

		parentName = name
		parentTip = tip
	}

	require.NoError(t, store.SaveStack(stack))
	return stack
}
