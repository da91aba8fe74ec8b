package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "rung"))
	require.NoError(t, store.Init())
	return store
}

func TestStoreInit(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "rung"))
	require.False(t, store.Initialized())

	require.NoError(t, store.Init())
	require.True(t, store.Initialized())

	stack, err := store.LoadStack()
	require.NoError(t, err)
	require.Zero(t, stack.Len())

	// Re-init must not wipe existing state
	_, err = stack.AddBranch("a", "")
	require.NoError(t, err)
	require.NoError(t, store.SaveStack(stack))
	require.NoError(t, store.Init())

	stack, err = store.LoadStack()
	require.NoError(t, err)
	require.True(t, stack.Contains("a"))
}

func TestLoadStackNotInitialized(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "rung"))
	_, err := store.LoadStack()
	require.ErrorIs(t, err, rungerrors.ErrNotInitialized)
}

func TestLoadStackCorrupt(t *testing.T) {
	for name, contents := range map[string]string{
		"truncated":  "{broken",
		"null entry": `{"branches":[null]}`,
	} {
		t.Run(name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), stackFileName), []byte(contents), 0644))

			_, err := store.LoadStack()
			require.ErrorIs(t, err, rungerrors.ErrCorruptState)

			var corrupt *rungerrors.CorruptStateError
			require.ErrorAs(t, err, &corrupt)
			require.Contains(t, corrupt.File, stackFileName)
		})
	}
}

func TestOpStateLifecycle(t *testing.T) {
	store := newTestStore(t)

	state, err := store.LoadOpState()
	require.NoError(t, err)
	require.Nil(t, state)

	saved := &OpState{
		Kind:      OpSync,
		BackupID:  "100",
		Completed: []string{"a"},
		Remaining: []RebaseAction{{Branch: "b", Onto: "a", OldBase: "x", NewBase: "y"}},
		PausedAt:  "b",
	}
	require.NoError(t, store.SaveOpState(saved))

	state, err = store.LoadOpState()
	require.NoError(t, err)
	require.Equal(t, saved.Kind, state.Kind)
	require.Equal(t, saved.Remaining, state.Remaining)
	require.Equal(t, "b", state.PausedAt)

	require.NoError(t, store.ClearOpState())
	state, err = store.LoadOpState()
	require.NoError(t, err)
	require.Nil(t, state)

	// Clearing twice is fine
	require.NoError(t, store.ClearOpState())
}

func TestOpStateCorrupt(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), opStateFileName), []byte("nope"), 0644))

	_, err := store.LoadOpState()
	require.ErrorIs(t, err, rungerrors.ErrCorruptState)
}

func TestBackupLifecycle(t *testing.T) {
	store := newTestStore(t)
	mock := newMockAdapter()
	ctx := context.Background()

	stack := seedChain(t, store, mock, "a", "b")

	backup, err := store.CreateBackup(ctx, mock, OpSync, stack, []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, OpSync, backup.Operation)
	require.Equal(t, mock.refs["a"], backup.Branches["a"])
	require.Equal(t, mock.refs["b"], backup.Branches["b"])
	require.NotEmpty(t, backup.Stack)

	loaded, err := store.LoadBackup(backup.ID)
	require.NoError(t, err)
	require.Equal(t, backup.Branches, loaded.Branches)

	latest, err := store.LatestBackupID()
	require.NoError(t, err)
	require.Equal(t, backup.ID, latest)

	require.NoError(t, store.DeleteBackup(backup.ID))
	_, err = store.LoadBackup(backup.ID)
	require.ErrorIs(t, err, rungerrors.ErrNoBackupFound)

	_, err = store.LatestBackupID()
	require.ErrorIs(t, err, rungerrors.ErrNoBackupFound)
}

func TestBackupIDsMonotonic(t *testing.T) {
	store := newTestStore(t)
	mock := newMockAdapter()
	ctx := context.Background()
	stack := seedChain(t, store, mock, "a")

	var ids []string
	for i := 0; i < 3; i++ {
		backup, err := store.CreateBackup(ctx, mock, OpSync, stack, []string{"a"})
		require.NoError(t, err)
		ids = append(ids, backup.ID)
	}

	listed, err := store.ListBackupIDs()
	require.NoError(t, err)
	require.Equal(t, ids, listed)

	latest, err := store.LatestBackupID()
	require.NoError(t, err)
	require.Equal(t, ids[2], latest)
}

func TestPruneBackups(t *testing.T) {
	store := newTestStore(t)
	mock := newMockAdapter()
	ctx := context.Background()
	stack := seedChain(t, store, mock, "a")

	var ids []string
	for i := 0; i < 5; i++ {
		backup, err := store.CreateBackup(ctx, mock, OpSync, stack, []string{"a"})
		require.NoError(t, err)
		ids = append(ids, backup.ID)
	}

	require.NoError(t, store.PruneBackups(2))

	remaining, err := store.ListBackupIDs()
	require.NoError(t, err)
	require.Equal(t, ids[3:], remaining)

	// Zero retention means keep everything
	require.NoError(t, store.PruneBackups(0))
	remaining, err = store.ListBackupIDs()
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestRestoreBackupAggregatesFailures(t *testing.T) {
	store := newTestStore(t)
	mock := newMockAdapter()
	ctx := context.Background()
	stack := seedChain(t, store, mock, "a", "b")

	backup, err := store.CreateBackup(ctx, mock, OpSync, stack, []string{"a", "b"})
	require.NoError(t, err)

	// Branch refs moved and one deleted entirely
	originalA := mock.refs["a"]
	originalB := mock.refs["b"]
	mock.advance("a")
	require.NoError(t, mock.DeleteRef(ctx, "b"))

	require.NoError(t, RestoreBackup(ctx, mock, backup))
	require.Equal(t, originalA, mock.refs["a"])
	require.Equal(t, originalB, mock.refs["b"])
}
