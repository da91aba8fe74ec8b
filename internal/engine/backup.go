package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	rungerrors "github.com/auswm85/rung/internal/errors"
	"github.com/auswm85/rung/internal/git"
)

// Backup snapshots branch tips and the stack definition immediately before
// a mutating operation's first rewrite. Never mutated after creation.
type Backup struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"createdAt"`
	Operation OperationKind     `json:"operation"`
	Branches  map[string]string `json:"branches"`

	// Stack is the serialized stack at backup time, restored alongside
	// the refs so undo rolls topology back too
	Stack json.RawMessage `json:"stack,omitempty"`
}

func (st *Store) backupPath(id string) string {
	return filepath.Join(st.dir, backupsDirName, id+".json")
}

// CreateBackup records the current tip of each listed branch plus the
// stack snapshot, and persists it atomically
func (st *Store) CreateBackup(ctx context.Context, adapter git.Adapter, kind OperationKind, stack *Stack, branchNames []string) (*Backup, error) {
	tips := make(map[string]string, len(branchNames))
	for _, name := range branchNames {
		tip, err := adapter.CurrentTip(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %s: %w", name, err)
		}
		tips[name] = tip
	}

	snapshot, err := json.Marshal(stack)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot stack: %w", err)
	}

	backup := &Backup{
		ID:        newBackupID(st),
		CreatedAt: time.Now().UTC(),
		Operation: kind,
		Branches:  tips,
		Stack:     snapshot,
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := st.writeAtomic(filepath.Join(backupsDirName, backup.ID+".json"), data); err != nil {
		return nil, err
	}
	return backup, nil
}

// newBackupID returns a unix-timestamp id, bumped past any existing
// backup file so ids stay monotonic within a second
func newBackupID(st *Store) string {
	ts := time.Now().Unix()
	for {
		id := strconv.FormatInt(ts, 10)
		if _, err := os.Stat(st.backupPath(id)); os.IsNotExist(err) {
			return id
		}
		ts++
	}
}

// LoadBackup reads a backup by id. Fails with NoBackupFound for unknown
// ids and CorruptState for unparseable files.
func (st *Store) LoadBackup(id string) (*Backup, error) {
	path := st.backupPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", rungerrors.ErrNoBackupFound, id)
		}
		return nil, fmt.Errorf("failed to read backup %s: %w", id, err)
	}

	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, &rungerrors.CorruptStateError{File: path, Reason: err.Error()}
	}
	return &backup, nil
}

// DeleteBackup removes a backup by id
func (st *Store) DeleteBackup(id string) error {
	err := os.Remove(st.backupPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup %s: %w", id, err)
	}
	return nil
}

// ListBackupIDs returns all backup ids, oldest first
func (st *Store) ListBackupIDs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(st.dir, backupsDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i], 10, 64)
		b, errB := strconv.ParseInt(ids[j], 10, 64)
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
	return ids, nil
}

// LatestBackupID returns the newest backup id. Fails with NoBackupFound
// when there are none.
func (st *Store) LatestBackupID() (string, error) {
	ids, err := st.ListBackupIDs()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", rungerrors.ErrNoBackupFound
	}
	return ids[len(ids)-1], nil
}

// PruneBackups deletes the oldest backups beyond the retention count.
// Only called after an operation completes, never while one is pending.
func (st *Store) PruneBackups(retention int) error {
	if retention <= 0 {
		return nil
	}
	ids, err := st.ListBackupIDs()
	if err != nil {
		return err
	}
	for len(ids) > retention {
		if err := st.DeleteBackup(ids[0]); err != nil {
			return err
		}
		ids = ids[1:]
	}
	return nil
}

// RestoreBackup resets every recorded branch to its saved tip. Partial
// failure still attempts every branch and aggregates what failed. The
// backup itself is not deleted here; callers decide.
func RestoreBackup(ctx context.Context, adapter git.Adapter, backup *Backup) error {
	failed := make(map[string]error)
	var restored []string

	for name, tip := range backup.Branches {
		exists, err := adapter.BranchExists(ctx, name)
		if err == nil && !exists {
			err = adapter.CreateRef(ctx, name, tip)
		} else {
			err = adapter.ResetHard(ctx, name, tip)
		}
		if err != nil {
			failed[name] = err
			continue
		}
		restored = append(restored, name)
	}
	sort.Strings(restored)

	if len(failed) > 0 {
		return &rungerrors.RestoreError{BackupID: backup.ID, Restored: restored, Failed: failed}
	}
	return nil
}
