package engine

import (
	"context"
	"errors"
	"fmt"

	rungerrors "github.com/auswm85/rung/internal/errors"
	"github.com/auswm85/rung/internal/git"
)

// UnmappedReason explains why a staged hunk could not be attributed to a
// single owning commit
type UnmappedReason string

const (
	// ReasonNewFile means the file has no history in the rebaseable range
	ReasonNewFile UnmappedReason = "new file"
	// ReasonInsertOnly means the hunk adds lines without touching any
	// existing ones, so blame has nothing to attribute
	ReasonInsertOnly UnmappedReason = "insert-only hunk"
	// ReasonMultipleCommits means the touched lines belong to more than
	// one commit
	ReasonMultipleCommits UnmappedReason = "multiple commits"
	// ReasonBaseBranch means the owning commit is already on the base
	// branch
	ReasonBaseBranch UnmappedReason = "commit on base branch"
	// ReasonOutsideRange means the owning commit is not in the
	// rebaseable range
	ReasonOutsideRange UnmappedReason = "target outside range"
	// ReasonBlameError means blame itself failed for the hunk
	ReasonBlameError UnmappedReason = "blame error"
)

// HunkMapping is the attribution decision for one staged hunk
type HunkMapping struct {
	Hunk git.Hunk

	// Target is the owning commit when the hunk is attributable
	Target string

	// Reason is set when the hunk is unattributable
	Reason UnmappedReason
}

// Attributable reports whether the hunk mapped to a single owning commit
func (m HunkMapping) Attributable() bool {
	return m.Reason == ""
}

// Fixup is one created fixup commit
type Fixup struct {
	Target string `json:"target"`
	Commit string `json:"commit"`
	Hunks  int    `json:"hunks"`
}

// AbsorbResult summarizes an absorb run
type AbsorbResult struct {
	Branch   string        `json:"branch"`
	Fixups   []Fixup       `json:"fixups,omitempty"`
	Unmapped []HunkMapping `json:"unmapped,omitempty"`
}

// PlanAbsorb attributes every currently staged hunk to the commit in the
// branch's rebaseable range that last touched its lines. Pure: inspects
// only, creates nothing.
func (e *Engine) PlanAbsorb(ctx context.Context, branchName string) ([]HunkMapping, error) {
	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}
	branch := stack.Branch(branchName)
	if branch == nil {
		return nil, fmt.Errorf("%w: %s", rungerrors.ErrNotInStack, branchName)
	}

	hunks, err := e.adapter.StagedHunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(hunks) == 0 {
		return nil, nil
	}

	parentRef := branch.Parent
	if parentRef == "" {
		parentRef = e.cfg.BaseBranch
	}
	parentTip, err := e.adapter.CurrentTip(ctx, parentRef)
	if err != nil {
		return nil, err
	}
	tip, err := e.adapter.CurrentTip(ctx, branchName)
	if err != nil {
		return nil, err
	}

	line, err := e.adapter.CommitsBetween(ctx, parentTip, tip)
	if err != nil {
		return nil, err
	}
	inRange := make(map[string]bool, len(line))
	for _, sha := range line {
		inRange[sha] = true
	}

	mappings := make([]HunkMapping, 0, len(hunks))
	for _, hunk := range hunks {
		mappings = append(mappings, e.mapHunk(ctx, hunk, tip, parentTip, inRange))
	}
	return mappings, nil
}

// mapHunk classifies one hunk. Blame runs at the branch tip over the
// hunk's pre-image lines; the staged index is never consulted because the
// edit being absorbed is exactly what diverges from the tip.
func (e *Engine) mapHunk(ctx context.Context, hunk git.Hunk, tip, parentTip string, inRange map[string]bool) HunkMapping {
	mapping := HunkMapping{Hunk: hunk}

	if hunk.NewFile {
		mapping.Reason = ReasonNewFile
		return mapping
	}
	if hunk.InsertOnly() {
		mapping.Reason = ReasonInsertOnly
		return mapping
	}

	endLine := hunk.OldStart + hunk.OldCount - 1
	owners, err := e.adapter.Blame(ctx, hunk.File, hunk.OldStart, endLine, tip)
	if err != nil {
		if isNoHistory(err) {
			mapping.Reason = ReasonNewFile
		} else {
			mapping.Reason = ReasonBlameError
		}
		return mapping
	}

	unique := make(map[string]bool)
	for _, owner := range owners {
		unique[owner] = true
	}
	if len(unique) != 1 {
		mapping.Reason = ReasonMultipleCommits
		return mapping
	}

	owner := owners[0]
	if !inRange[owner] {
		if onBase, err := e.adapter.IsAncestor(ctx, owner, parentTip); err == nil && onBase {
			mapping.Reason = ReasonBaseBranch
		} else {
			mapping.Reason = ReasonOutsideRange
		}
		return mapping
	}

	mapping.Target = owner
	return mapping
}

// Absorb attributes the staged hunks and creates one fixup commit per
// owning commit. Unattributable hunks are left staged for the caller.
func (e *Engine) Absorb(ctx context.Context, branchName string) (*AbsorbResult, error) {
	pending, err := e.store.LoadOpState()
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: %s operation pending, continue or abort it first",
			rungerrors.ErrOperationInProgress, pending.Kind)
	}

	current, err := e.adapter.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	if current != branchName {
		return nil, fmt.Errorf("absorb must run on the checked out branch: on %s, asked for %s", current, branchName)
	}

	mappings, err := e.PlanAbsorb(ctx, branchName)
	if err != nil {
		return nil, err
	}

	result := &AbsorbResult{Branch: branchName}
	if len(mappings) == 0 {
		return result, nil
	}

	// Stable grouping: targets in order of first appearance
	groups := make(map[string][]git.Hunk)
	var targets []string
	for _, mapping := range mappings {
		if !mapping.Attributable() {
			result.Unmapped = append(result.Unmapped, mapping)
			continue
		}
		if _, seen := groups[mapping.Target]; !seen {
			targets = append(targets, mapping.Target)
		}
		groups[mapping.Target] = append(groups[mapping.Target], mapping.Hunk)
	}

	if len(targets) == 0 {
		return result, nil
	}

	stack, err := e.store.LoadStack()
	if err != nil {
		return nil, err
	}

	backup, err := e.store.CreateBackup(ctx, e.adapter, OpAbsorb, stack, []string{branchName})
	if err != nil {
		return nil, err
	}
	e.log.Debug("created backup %s before absorb", backup.ID)

	if err := e.adapter.ResetIndex(ctx); err != nil {
		return nil, err
	}

	for i, target := range targets {
		hunks := groups[target]
		if err := e.adapter.ApplyToIndex(ctx, git.Patch(hunks)); err != nil {
			e.restageLeftovers(ctx, targets[i:], groups, result.Unmapped)
			return nil, fmt.Errorf("failed to stage hunks for %s: %w", shortSHA(target), err)
		}
		commit, err := e.adapter.CommitFixup(ctx, target)
		if err != nil {
			// The failed group is already staged, so only later groups
			// need restaging
			e.restageLeftovers(ctx, targets[i+1:], groups, result.Unmapped)
			return nil, err
		}
		result.Fixups = append(result.Fixups, Fixup{Target: target, Commit: commit, Hunks: len(hunks)})
	}

	// Put unattributable hunks back in the index so the caller's staging
	// is preserved
	e.restageLeftovers(ctx, nil, nil, result.Unmapped)

	if branch := stack.Branch(branchName); branch != nil {
		if tip, err := e.adapter.CurrentTip(ctx, branchName); err == nil {
			branch.Tip = tip
		}
		if err := e.store.SaveStack(stack); err != nil {
			return nil, err
		}
	}
	if err := e.store.PruneBackups(e.cfg.BackupRetention); err != nil {
		e.log.Debug("backup pruning failed: %v", err)
	}

	return result, nil
}

// restageLeftovers puts hunks that were not turned into fixups back in
// the index so an interrupted absorb does not drop the caller's staged
// work.
func (e *Engine) restageLeftovers(ctx context.Context, targets []string, groups map[string][]git.Hunk, unmapped []HunkMapping) {
	var leftover []git.Hunk
	for _, target := range targets {
		leftover = append(leftover, groups[target]...)
	}
	for _, mapping := range unmapped {
		leftover = append(leftover, mapping.Hunk)
	}
	if len(leftover) == 0 {
		return
	}
	if err := e.adapter.ApplyToIndex(ctx, git.Patch(leftover)); err != nil {
		e.log.Debug("failed to restage leftover hunks: %v", err)
	}
}

func isNoHistory(err error) bool {
	return errors.Is(err, git.ErrNoHistory)
}
