package git

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoHistory indicates that a file has no blame history at the requested
// revision (typically a file new to the working tree)
var ErrNoHistory = errors.New("no history for file")

// RebaseOutcome is the result of a single rebase step
type RebaseOutcome struct {
	// Conflict is true when the rebase stopped on conflicting files and
	// is waiting for resolution
	Conflict bool

	// Files lists the conflicting paths when Conflict is set
	Files []string

	// NewTip is the rewritten branch tip on success
	NewTip string
}

// Adapter is the capability surface the engine consumes. It covers ref
// reads and writes, single rebase steps, history queries, blame, and the
// index operations used by absorb.
type Adapter interface {
	// Branches and refs
	CurrentBranch(ctx context.Context) (string, error)
	BranchExists(ctx context.Context, branchName string) (bool, error)
	CurrentTip(ctx context.Context, branchName string) (string, error)
	RemoteTip(ctx context.Context, remote, branchName string) (string, error)
	CreateRef(ctx context.Context, branchName, sha string) error
	DeleteRef(ctx context.Context, branchName string) error
	ResetHard(ctx context.Context, branchName, sha string) error
	Checkout(ctx context.Context, branchName string) error

	// Rebase steps
	RebaseOnto(ctx context.Context, branchName, oldBase, newBase string) (RebaseOutcome, error)
	RebaseContinue(ctx context.Context, branchName string) (RebaseOutcome, error)
	RebaseAbort(ctx context.Context) error
	IsMidRebase(ctx context.Context) bool
	ConflictingFiles(ctx context.Context) ([]string, error)

	// History queries
	MergeBase(ctx context.Context, rev1, rev2 string) (string, error)
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
	CommitsBetween(ctx context.Context, base, head string) ([]string, error)
	AheadBehind(ctx context.Context, local, remote string) (int, int, error)

	// Staged changes and blame
	StagedHunks(ctx context.Context) ([]Hunk, error)
	Blame(ctx context.Context, file string, startLine, endLine int, rev string) ([]string, error)

	// Index operations
	ApplyToIndex(ctx context.Context, patch string) error
	ResetIndex(ctx context.Context) error
	CommitFixup(ctx context.Context, targetSHA string) (string, error)
}

// adapter implements Adapter over a CommandRunner and a go-git repository
type adapter struct {
	repo   *Repository
	runner *CommandRunner
}

// NewAdapter creates an Adapter for the repository containing path
func NewAdapter(path string) (Adapter, *Repository, error) {
	repo, err := OpenRepository(path)
	if err != nil {
		return nil, nil, err
	}
	return &adapter{
		repo:   repo,
		runner: NewCommandRunner(repo.Root()),
	}, repo, nil
}

func (a *adapter) CurrentBranch(ctx context.Context) (string, error) {
	return a.runner.Run(ctx, "branch", "--show-current")
}

func (a *adapter) BranchExists(ctx context.Context, branchName string) (bool, error) {
	_, err := a.runner.Run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+branchName)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (a *adapter) CurrentTip(ctx context.Context, branchName string) (string, error) {
	sha, err := a.runner.Run(ctx, "rev-parse", "refs/heads/"+branchName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", branchName, err)
	}
	return sha, nil
}

// RemoteTip returns the remote tracking ref's tip, or "" when the branch
// has no remote counterpart
func (a *adapter) RemoteTip(ctx context.Context, remote, branchName string) (string, error) {
	sha, err := a.runner.Run(ctx, "rev-parse", "--verify", "--quiet",
		fmt.Sprintf("refs/remotes/%s/%s", remote, branchName))
	if err != nil {
		return "", nil
	}
	return sha, nil
}

func (a *adapter) CreateRef(ctx context.Context, branchName, sha string) error {
	_, err := a.runner.Run(ctx, "update-ref", "refs/heads/"+branchName, sha, "")
	return err
}

func (a *adapter) DeleteRef(ctx context.Context, branchName string) error {
	_, err := a.runner.Run(ctx, "update-ref", "-d", "refs/heads/"+branchName)
	return err
}

// ResetHard moves a branch ref to the given commit. The working tree is
// only touched when the branch is currently checked out.
func (a *adapter) ResetHard(ctx context.Context, branchName, sha string) error {
	current, err := a.CurrentBranch(ctx)
	if err == nil && current == branchName {
		_, err = a.runner.Run(ctx, "reset", "--hard", sha)
		return err
	}
	_, err = a.runner.Run(ctx, "update-ref", "refs/heads/"+branchName, sha)
	return err
}

func (a *adapter) Checkout(ctx context.Context, branchName string) error {
	_, err := a.runner.Run(ctx, "checkout", branchName)
	return err
}

func (a *adapter) AheadBehind(ctx context.Context, local, remote string) (int, int, error) {
	output, err := a.runner.Run(ctx, "rev-list", "--left-right", "--count", local+"..."+remote)
	if err != nil {
		return 0, 0, err
	}

	fields := strings.Fields(output)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", output)
	}
	ahead, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", output)
	}
	behind, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", output)
	}
	return ahead, behind, nil
}

func (a *adapter) CommitsBetween(ctx context.Context, base, head string) ([]string, error) {
	return a.runner.RunLines(ctx, "rev-list", base+".."+head)
}
