package engine

import (
	"encoding/json"
	"time"
)

// OperationKind identifies which mutating operation owns a plan or an
// in-progress state record
type OperationKind string

const (
	// OpSync rebases stale branches onto their moved parents
	OpSync OperationKind = "sync"
	// OpRestack moves a branch (and optionally its descendants) onto a
	// different parent
	OpRestack OperationKind = "restack"
	// OpSplit decomposes one branch's commits into a chain of branches
	OpSplit OperationKind = "split"
	// OpFold collapses a parent-to-child chain into its oldest branch
	OpFold OperationKind = "fold"
	// OpAbsorb attributes staged edits to the commits that own them.
	// Only used to label backups; absorb is not resumable.
	OpAbsorb OperationKind = "absorb"
)

// RebaseAction is one history rewrite step: replay the commits of Branch
// above OldBase onto the tip of the Onto branch. NewBase records the tip
// predicted at plan time for display; the executor re-resolves Onto when
// the action runs so each step lands on its parent's final tip.
type RebaseAction struct {
	Branch  string `json:"branch"`
	Onto    string `json:"onto"`
	OldBase string `json:"oldBase"`
	NewBase string `json:"newBase"`
}

// RestackSpec is the topology edit applied after a restack plan's actions
// all succeed
type RestackSpec struct {
	Branch          string `json:"branch"`
	NewParent       string `json:"newParent,omitempty"`
	WithDescendants bool   `json:"withDescendants,omitempty"`
}

// SplitPoint names one new branch and the commit it will point at
type SplitPoint struct {
	Commit string `json:"commit"`
	Name   string `json:"name"`
}

// SplitSpec describes a split: points are ordered oldest first along the
// line from the branch's parent to its tip
type SplitSpec struct {
	Branch string       `json:"branch"`
	Points []SplitPoint `json:"points"`
}

// FoldSpec describes a fold: sources are the branches collapsed into
// Target, ordered bottom-up along the chain
type FoldSpec struct {
	Target  string   `json:"target"`
	Sources []string `json:"sources"`
}

// Plan is a fully computed mutation, safe to display without side effects
type Plan struct {
	Kind    OperationKind  `json:"kind"`
	Actions []RebaseAction `json:"actions"`

	// Branches lists every branch the backup must cover
	Branches []string `json:"branches"`

	Restack *RestackSpec `json:"restack,omitempty"`
	Split   *SplitSpec   `json:"split,omitempty"`
	Fold    *FoldSpec    `json:"fold,omitempty"`
}

// OpState is the single persisted in-progress operation record. Its
// presence on disk is the advisory lock refusing concurrent mutations.
type OpState struct {
	Kind           OperationKind  `json:"kind"`
	BackupID       string         `json:"backupId"`
	StartedAt      time.Time      `json:"startedAt"`
	OriginalBranch string         `json:"originalBranch,omitempty"`
	Completed      []string       `json:"completed"`
	Remaining      []RebaseAction `json:"remaining"`

	// PausedAt is set while a conflict blocks progress. The paused
	// action stays at the head of Remaining.
	PausedAt      string   `json:"pausedAt,omitempty"`
	ConflictFiles []string `json:"conflictFiles,omitempty"`

	// CreatedRefs tracks refs created so far by a split, so abort can
	// delete them
	CreatedRefs []string `json:"createdRefs,omitempty"`

	// OriginalStack is the stack as serialized before the operation,
	// for topology rollback on abort
	OriginalStack json.RawMessage `json:"originalStack,omitempty"`

	Restack *RestackSpec `json:"restack,omitempty"`
	Split   *SplitSpec   `json:"split,omitempty"`
	Fold    *FoldSpec    `json:"fold,omitempty"`
}

// ResultStatus is the terminal state of an execute or continue call
type ResultStatus string

const (
	// StatusCompleted means every action ran and topology was finalized
	StatusCompleted ResultStatus = "completed"
	// StatusPaused means a conflict stopped the operation; resolve and
	// continue, or abort
	StatusPaused ResultStatus = "paused"
)

// PRNote reports a pull request attached to a branch the operation
// removed, for the caller to close or retarget
type PRNote struct {
	Branch string `json:"branch"`
	Number int    `json:"number"`
}

// Result summarizes an execute or continue call
type Result struct {
	Status        ResultStatus  `json:"status"`
	Kind          OperationKind `json:"kind"`
	Completed     []string      `json:"completed"`
	Remaining     []string      `json:"remaining"`
	PausedAt      string        `json:"pausedAt,omitempty"`
	ConflictFiles []string      `json:"conflictFiles,omitempty"`

	// FoldedPRs lists PRs on folded branches needing close or retarget
	FoldedPRs []PRNote `json:"foldedPRs,omitempty"`
}
