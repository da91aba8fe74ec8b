package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/auswm85/rung/internal/config"
	rungerrors "github.com/auswm85/rung/internal/errors"
	"github.com/auswm85/rung/internal/git"
	"github.com/auswm85/rung/internal/output"
)

// Engine orchestrates mutating operations over the stack. It holds no
// state between invocations: everything is loaded from the store, mutated,
// and persisted again, so each CLI process starts fresh.
type Engine struct {
	adapter git.Adapter
	store   *Store
	cfg     *config.Config
	log     *output.Splog
}

// New creates an engine over the given adapter and state store
func New(adapter git.Adapter, store *Store, cfg *config.Config, log *output.Splog) *Engine {
	if log == nil {
		log = output.NewSplog()
	}
	return &Engine{adapter: adapter, store: store, cfg: cfg, log: log}
}

// Store exposes the underlying state store
func (e *Engine) Store() *Store {
	return e.store
}

// Execute runs a computed plan. It refuses to start while another
// operation is pending, snapshots a backup before the first rewrite, and
// persists progress after every action so a crash or conflict always
// leaves a resumable record.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	pending, err := e.store.LoadOpState()
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: %s operation pending, continue or abort it first",
			rungerrors.ErrOperationInProgress, pending.Kind)
	}

	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}

	originalBranch, err := e.adapter.CurrentBranch(ctx)
	if err != nil {
		originalBranch = ""
	}

	snapshot, err := json.Marshal(stack)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot stack: %w", err)
	}

	backup, err := e.store.CreateBackup(ctx, e.adapter, plan.Kind, stack, plan.Branches)
	if err != nil {
		return nil, err
	}
	e.log.Debug("created backup %s covering %d branches", backup.ID, len(backup.Branches))

	state := &OpState{
		Kind:           plan.Kind,
		BackupID:       backup.ID,
		StartedAt:      time.Now().UTC(),
		OriginalBranch: originalBranch,
		Completed:      []string{},
		Remaining:      plan.Actions,
		OriginalStack:  snapshot,
		Restack:        plan.Restack,
		Split:          plan.Split,
		Fold:           plan.Fold,
	}
	if err := e.store.SaveOpState(state); err != nil {
		return nil, err
	}

	return e.run(ctx, state, stack)
}

// Continue resumes a paused operation after the caller resolved the
// conflict that stopped it
func (e *Engine) Continue(ctx context.Context) (*Result, error) {
	state, err := e.store.LoadOpState()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, rungerrors.ErrNoOperationInProgress
	}

	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}

	if state.PausedAt != "" {
		if !e.adapter.IsMidRebase(ctx) {
			// Paused but no rebase in progress: the conflict may have
			// been resolved out of band in a way we cannot verify.
			// Refuse rather than guess; abort remains available.
			return nil, fmt.Errorf("%w: paused at %s but no rebase in progress",
				rungerrors.ErrStillConflicted, state.PausedAt)
		}

		files, err := e.adapter.ConflictingFiles(ctx)
		if err == nil && len(files) > 0 {
			return nil, fmt.Errorf("%w: unresolved files: %v", rungerrors.ErrStillConflicted, files)
		}

		outcome, err := e.adapter.RebaseContinue(ctx, state.PausedAt)
		if err != nil {
			return nil, err
		}
		if outcome.Conflict {
			state.ConflictFiles = outcome.Files
			if err := e.store.SaveOpState(state); err != nil {
				return nil, err
			}
			return pausedResult(state), nil
		}

		if len(state.Remaining) == 0 || state.Remaining[0].Branch != state.PausedAt {
			return nil, &rungerrors.CorruptStateError{
				File:   opStateFileName,
				Reason: fmt.Sprintf("pausedAt %s does not match pending actions", state.PausedAt),
			}
		}
		action := state.Remaining[0]
		newBase, err := e.adapter.CurrentTip(ctx, action.Onto)
		if err != nil {
			return nil, err
		}
		state.PausedAt = ""
		state.ConflictFiles = nil
		if err := e.completeAction(ctx, state, stack, action, outcome.NewTip, newBase); err != nil {
			return nil, err
		}
	}

	return e.run(ctx, state, stack)
}

// run executes remaining actions sequentially, then finalizes. Later
// actions always observe earlier rewrites: each step resolves its onto
// branch at execution time.
func (e *Engine) run(ctx context.Context, state *OpState, stack *Stack) (*Result, error) {
	for len(state.Remaining) > 0 {
		// Cancellation is honored only between actions; a half-applied
		// rewrite would have no checkpoint to resume from.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		action := state.Remaining[0]
		newBase, err := e.adapter.CurrentTip(ctx, action.Onto)
		if err != nil {
			return nil, err
		}

		e.log.Debug("rebasing %s onto %s (%s)", action.Branch, action.Onto, shortSHA(newBase))
		outcome, err := e.adapter.RebaseOnto(ctx, action.Branch, action.OldBase, newBase)
		if err != nil {
			// Adapter failure is fatal for this step; the operation
			// state stays on disk for inspection, retry, or abort.
			return nil, err
		}

		if outcome.Conflict {
			state.PausedAt = action.Branch
			state.ConflictFiles = outcome.Files
			if err := e.store.SaveOpState(state); err != nil {
				return nil, err
			}
			e.log.Debug("conflict on %s: %v", action.Branch, outcome.Files)
			return pausedResult(state), nil
		}

		if err := e.completeAction(ctx, state, stack, action, outcome.NewTip, newBase); err != nil {
			return nil, err
		}
	}

	return e.finalize(ctx, state, stack)
}

// completeAction records a successful rewrite in the stack and the
// operation state
func (e *Engine) completeAction(ctx context.Context, state *OpState, stack *Stack, action RebaseAction, newTip, newBase string) error {
	if state.Kind == OpFold && state.Fold != nil {
		// The folded branch's commits now sit on the target; advance the
		// target so the next source rebases onto them
		if err := e.adapter.ResetHard(ctx, state.Fold.Target, newTip); err != nil {
			return err
		}
		if target := stack.Branch(state.Fold.Target); target != nil {
			target.Tip = newTip
		}
	} else if branch := stack.Branch(action.Branch); branch != nil {
		branch.Tip = newTip
		branch.LastKnownParentTip = newBase
	}

	state.Completed = append(state.Completed, action.Branch)
	state.Remaining = state.Remaining[1:]

	if err := e.store.SaveStack(stack); err != nil {
		return err
	}
	return e.store.SaveOpState(state)
}

// finalize applies the operation's topology edits, which only happen after
// every rewrite action succeeded
func (e *Engine) finalize(ctx context.Context, state *OpState, stack *Stack) (*Result, error) {
	result := &Result{
		Status:    StatusCompleted,
		Kind:      state.Kind,
		Completed: state.Completed,
		Remaining: []string{},
	}

	switch state.Kind {
	case OpRestack:
		if state.Restack != nil {
			if err := stack.Reparent(state.Restack.Branch, state.Restack.NewParent); err != nil {
				return nil, err
			}
		}

	case OpSplit:
		if state.Split != nil {
			if err := e.applySplit(ctx, state, stack); err != nil {
				return nil, err
			}
			for _, point := range state.Split.Points {
				result.Completed = append(result.Completed, point.Name)
			}
		}

	case OpFold:
		if state.Fold != nil {
			notes, err := e.applyFold(ctx, state, stack)
			if err != nil {
				return nil, err
			}
			result.FoldedPRs = notes
		}
	}

	if err := e.store.SaveStack(stack); err != nil {
		return nil, err
	}

	if state.OriginalBranch != "" {
		if exists, err := e.adapter.BranchExists(ctx, state.OriginalBranch); err == nil && exists {
			_ = e.adapter.Checkout(ctx, state.OriginalBranch)
		}
	}

	if err := e.store.ClearOpState(); err != nil {
		return nil, err
	}
	if err := e.store.PruneBackups(e.cfg.BackupRetention); err != nil {
		e.log.Debug("backup pruning failed: %v", err)
	}

	return result, nil
}

// applySplit creates the new branch refs oldest first and rewires the
// topology. Each created ref is recorded before the next is made, so an
// interrupted split can always be rolled back.
func (e *Engine) applySplit(ctx context.Context, state *OpState, stack *Stack) error {
	spec := state.Split
	source := stack.Branch(spec.Branch)
	if source == nil {
		return fmt.Errorf("%w: %s", rungerrors.ErrNotInStack, spec.Branch)
	}

	prevName := source.Parent
	prevTip := source.LastKnownParentTip
	if prevTip == "" {
		ontoName := prevName
		if ontoName == "" {
			ontoName = e.cfg.BaseBranch
		}
		prevTip, _ = e.adapter.CurrentTip(ctx, ontoName)
	}
	for _, point := range spec.Points {
		// Record the ref before creating it; Abort tolerates deleting
		// a ref that was never made, but cannot find an unrecorded one.
		state.CreatedRefs = append(state.CreatedRefs, point.Name)
		if err := e.store.SaveOpState(state); err != nil {
			return err
		}
		if err := e.adapter.CreateRef(ctx, point.Name, point.Commit); err != nil {
			return err
		}

		branch, err := stack.AddBranch(point.Name, prevName)
		if err != nil {
			return err
		}
		branch.Tip = point.Commit
		branch.LastKnownParentTip = prevTip

		prevName = point.Name
		prevTip = point.Commit
	}

	if err := stack.Reparent(spec.Branch, prevName); err != nil {
		return err
	}
	source.LastKnownParentTip = prevTip
	return nil
}

// applyFold deletes the folded refs and their topology entries. Children
// reattach through RemoveBranch's reparenting, ending up on the target.
func (e *Engine) applyFold(ctx context.Context, state *OpState, stack *Stack) ([]PRNote, error) {
	var notes []PRNote
	for _, name := range state.Fold.Sources {
		if branch := stack.Branch(name); branch != nil && branch.PR != nil {
			notes = append(notes, PRNote{Branch: name, Number: *branch.PR})
		}
		if err := e.adapter.DeleteRef(ctx, name); err != nil {
			return nil, err
		}
		if err := stack.RemoveBranch(name); err != nil {
			return nil, err
		}
	}
	return notes, nil
}

// Abort rolls a pending operation back: any in-progress rebase is
// aborted, refs created so far are deleted, every backed-up branch is
// restored, and the pre-operation topology is reinstated. Safe to call
// repeatedly; a second call finds no pending operation.
func (e *Engine) Abort(ctx context.Context) error {
	state, err := e.store.LoadOpState()
	if err != nil {
		return err
	}
	if state == nil {
		return rungerrors.ErrNoOperationInProgress
	}

	if e.adapter.IsMidRebase(ctx) {
		_ = e.adapter.RebaseAbort(ctx)
	}

	for _, ref := range state.CreatedRefs {
		_ = e.adapter.DeleteRef(ctx, ref)
	}

	backup, err := e.store.LoadBackup(state.BackupID)
	if err != nil {
		return err
	}

	if err := RestoreBackup(ctx, e.adapter, backup); err != nil {
		// Backup and operation state stay on disk so abort can be
		// retried after the underlying failure is addressed
		return err
	}

	if len(backup.Stack) > 0 {
		stack := NewStack()
		if err := json.Unmarshal(backup.Stack, stack); err != nil {
			return &rungerrors.CorruptStateError{File: state.BackupID + ".json", Reason: err.Error()}
		}
		if err := e.store.SaveStack(stack); err != nil {
			return err
		}
	}

	if err := e.store.DeleteBackup(state.BackupID); err != nil {
		return err
	}
	if err := e.store.ClearOpState(); err != nil {
		return err
	}

	if state.OriginalBranch != "" {
		if exists, err := e.adapter.BranchExists(ctx, state.OriginalBranch); err == nil && exists {
			_ = e.adapter.Checkout(ctx, state.OriginalBranch)
		}
	}
	return nil
}

// UndoLast restores the most recent backup and deletes it. Refused while
// an operation is pending; continue or abort first.
func (e *Engine) UndoLast(ctx context.Context) (*Backup, error) {
	state, err := e.store.LoadOpState()
	if err != nil {
		return nil, err
	}
	if state != nil {
		return nil, fmt.Errorf("%w: %s operation pending, continue or abort it first",
			rungerrors.ErrOperationInProgress, state.Kind)
	}

	id, err := e.store.LatestBackupID()
	if err != nil {
		return nil, err
	}
	backup, err := e.store.LoadBackup(id)
	if err != nil {
		return nil, err
	}

	if err := RestoreBackup(ctx, e.adapter, backup); err != nil {
		return nil, err
	}

	if len(backup.Stack) > 0 {
		stack := NewStack()
		if err := json.Unmarshal(backup.Stack, stack); err != nil {
			return nil, &rungerrors.CorruptStateError{File: id + ".json", Reason: err.Error()}
		}
		if err := e.store.SaveStack(stack); err != nil {
			return nil, err
		}
	}

	if err := e.store.DeleteBackup(id); err != nil {
		return nil, err
	}
	return backup, nil
}

func pausedResult(state *OpState) *Result {
	remaining := []string{}
	for _, action := range state.Remaining[1:] {
		remaining = append(remaining, action.Branch)
	}
	return &Result{
		Status:        StatusPaused,
		Kind:          state.Kind,
		Completed:     state.Completed,
		Remaining:     remaining,
		PausedAt:      state.PausedAt,
		ConflictFiles: state.ConflictFiles,
	}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
