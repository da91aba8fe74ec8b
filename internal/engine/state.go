package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

const (
	stackFileName   = "stack.json"
	opStateFileName = "op_state.json"
	backupsDirName  = "backups"
)

// Store persists engine state under .git/rung/. Every file is structured
// JSON so manual recovery with a text editor stays possible, and every
// write goes through write-temp-then-rename.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the given .git/rung directory
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory
func (st *Store) Dir() string {
	return st.dir
}

// Initialized reports whether the repository has been set up for rung
func (st *Store) Initialized() bool {
	_, err := os.Stat(filepath.Join(st.dir, stackFileName))
	return err == nil
}

// Init creates the state directory and an empty stack. Safe to call on an
// already initialized repository.
func (st *Store) Init() error {
	if err := os.MkdirAll(filepath.Join(st.dir, backupsDirName), 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if st.Initialized() {
		return nil
	}
	return st.SaveStack(NewStack())
}

// LoadStack reads the persisted stack. Fails with NotInitialized when the
// repository was never set up, and CorruptState when the file is present
// but unparseable.
func (st *Store) LoadStack() (*Stack, error) {
	path := filepath.Join(st.dir, stackFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rungerrors.ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to read stack: %w", err)
	}

	stack := NewStack()
	if err := json.Unmarshal(data, stack); err != nil {
		return nil, &rungerrors.CorruptStateError{File: path, Reason: err.Error()}
	}
	return stack, nil
}

// SaveStack atomically replaces the persisted stack
func (st *Store) SaveStack(stack *Stack) error {
	data, err := json.MarshalIndent(stack, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode stack: %w", err)
	}
	return st.writeAtomic(stackFileName, data)
}

// LoadOpState reads the in-progress operation record. Returns nil when no
// operation is pending.
func (st *Store) LoadOpState() (*OpState, error) {
	path := filepath.Join(st.dir, opStateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read operation state: %w", err)
	}

	var state OpState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &rungerrors.CorruptStateError{File: path, Reason: err.Error()}
	}
	return &state, nil
}

// SaveOpState atomically replaces the in-progress operation record
func (st *Store) SaveOpState(state *OpState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode operation state: %w", err)
	}
	return st.writeAtomic(opStateFileName, data)
}

// ClearOpState removes the in-progress operation record
func (st *Store) ClearOpState() error {
	err := os.Remove(filepath.Join(st.dir, opStateFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear operation state: %w", err)
	}
	return nil
}

func (st *Store) writeAtomic(name string, data []byte) error {
	path := filepath.Join(st.dir, name)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(name)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return os.Rename(f.Name(), path)
}
