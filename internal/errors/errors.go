// Package errors provides sentinel errors and custom error types for the rung engine.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Topology errors. Always local and recoverable: the caller fixes its
// input and retries. Returned before any mutation begins.
var (
	// ErrCyclicDependency indicates a reparent would make a branch its own ancestor
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrUnknownParent indicates the named parent branch is not in the stack
	ErrUnknownParent = errors.New("unknown parent branch")

	// ErrDuplicateBranch indicates the branch is already tracked in the stack
	ErrDuplicateBranch = errors.New("duplicate branch")

	// ErrNotInStack indicates the branch is not tracked in the stack
	ErrNotInStack = errors.New("branch not in stack")

	// ErrInvalidBranchName indicates the branch name is not a usable git ref name
	ErrInvalidBranchName = errors.New("invalid branch name")
)

// State errors. Signal a violated precondition; the engine never guesses
// intent, it surfaces the exact missing condition.
var (
	// ErrOperationInProgress indicates another mutating operation holds the
	// advisory lock; it must be continued or aborted first
	ErrOperationInProgress = errors.New("operation in progress")

	// ErrNoOperationInProgress indicates continue/abort was called with no
	// pending operation record on disk
	ErrNoOperationInProgress = errors.New("no operation in progress")

	// ErrNoBackupFound indicates there is no backup to restore
	ErrNoBackupFound = errors.New("no backup found")

	// ErrCorruptState indicates a persisted state file could not be parsed
	ErrCorruptState = errors.New("corrupt state")

	// ErrStillConflicted indicates continue was requested while the repository
	// still has unresolved conflicts (or is in an ambiguous half-resolved state)
	ErrStillConflicted = errors.New("still conflicted")

	// ErrNotInitialized indicates the .git/rung directory has not been set up
	ErrNotInitialized = errors.New("not initialized - run `rung init` first")

	// ErrNotARepository indicates the working directory is not a git repository
	ErrNotARepository = errors.New("not a git repository")

	// ErrDiverged indicates a branch and its remote counterpart have both
	// advanced independently and rewriting would discard one side's work
	ErrDiverged = errors.New("branch diverged from remote")
)

// ErrConflict is the sentinel for rebase conflicts. Conflicts are expected
// and pause the operation; they are not engine failures.
var ErrConflict = errors.New("rebase conflict")

// ConflictError reports the branch and files blocked by unresolved conflict markers
type ConflictError struct {
	Branch string
	Files  []string
}

func (e *ConflictError) Error() string {
	if len(e.Files) == 0 {
		return fmt.Sprintf("conflict while rewriting %s", e.Branch)
	}
	return fmt.Sprintf("conflict while rewriting %s: %s", e.Branch, strings.Join(e.Files, ", "))
}

// Is returns true if the target error is ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewConflictError creates a new ConflictError
func NewConflictError(branch string, files []string) *ConflictError {
	return &ConflictError{Branch: branch, Files: files}
}

// CorruptStateError reports which persisted file failed to parse
type CorruptStateError struct {
	File   string
	Reason string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state in %s: %s", e.File, e.Reason)
}

// Is returns true if the target error is ErrCorruptState
func (e *CorruptStateError) Is(target error) bool {
	return target == ErrCorruptState
}

// NewCorruptStateError creates a new CorruptStateError
func NewCorruptStateError(file, reason string) *CorruptStateError {
	return &CorruptStateError{File: file, Reason: reason}
}

// CycleError reports the branch pair whose reparenting would form a cycle
type CycleError struct {
	Branch    string
	NewParent string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cannot make %s a child of %s: %s is an ancestor of %s", e.Branch, e.NewParent, e.Branch, e.NewParent)
}

// Is returns true if the target error is ErrCyclicDependency
func (e *CycleError) Is(target error) bool {
	return target == ErrCyclicDependency
}

// RestoreError aggregates per-branch failures from a backup restore.
// Restore attempts every recorded branch rather than stopping at the first
// error, so callers see exactly which refs still need manual recovery.
type RestoreError struct {
	BackupID string
	Restored []string
	Failed   map[string]error
}

func (e *RestoreError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("restore of backup %s incomplete: restored [%s], failed [%s]",
		e.BackupID, strings.Join(e.Restored, ", "), strings.Join(names, ", "))
}

// GitCommandError represents an error from a git command execution
type GitCommandError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("git command failed: %s", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

// NewGitCommandError creates a new GitCommandError
func NewGitCommandError(command string, args []string, stdout, stderr string, err error) *GitCommandError {
	return &GitCommandError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}
