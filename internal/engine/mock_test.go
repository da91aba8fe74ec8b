package engine

import (
	"context"
	"fmt"

	"github.com/auswm85/rung/internal/git"
)

// mockAdapter simulates a repository with an in-memory commit graph and
// ref table, plus scriptable rebase conflicts
type mockAdapter struct {
	commits map[string]string // sha -> parent sha, "" for the root
	refs    map[string]string // branch -> tip
	remote  map[string]string // branch -> remote tracking tip
	current string
	seq     int

	midRebase     bool
	pendingRebase *pendingRebase
	conflictOn    map[string]bool // next rebase of branch conflicts
	conflictFiles []string
	unresolved    []string
	failCreateRef string // CreateRef of this name errors

	staged         []git.Hunk
	blames         map[string][]string // file -> owner sha per line (index 0 = line 1)
	appliedPatches []string
	resetCalls     int
	fixupTargets   []string
	failFixupOn    string // CommitFixup of this target errors
}

type pendingRebase struct {
	branch  string
	oldBase string
	newBase string
}

func newMockAdapter() *mockAdapter {
	m := &mockAdapter{
		commits:    make(map[string]string),
		refs:       make(map[string]string),
		remote:     make(map[string]string),
		conflictOn: make(map[string]bool),
		blames:     make(map[string][]string),
	}
	root := m.newCommit("")
	m.refs["main"] = root
	m.current = "main"
	return m
}

func (m *mockAdapter) newCommit(parent string) string {
	m.seq++
	sha := fmt.Sprintf("sha%03d", m.seq)
	m.commits[sha] = parent
	return sha
}

// advance adds one commit on top of a branch and returns the new tip
func (m *mockAdapter) advance(branch string) string {
	tip := m.newCommit(m.refs[branch])
	m.refs[branch] = tip
	return tip
}

func (m *mockAdapter) ancestorSet(sha string) map[string]bool {
	set := make(map[string]bool)
	for sha != "" {
		set[sha] = true
		sha = m.commits[sha]
	}
	return set
}

func (m *mockAdapter) CurrentBranch(ctx context.Context) (string, error) {
	return m.current, nil
}

func (m *mockAdapter) BranchExists(ctx context.Context, name string) (bool, error) {
	_, ok := m.refs[name]
	return ok, nil
}

func (m *mockAdapter) CurrentTip(ctx context.Context, name string) (string, error) {
	tip, ok := m.refs[name]
	if !ok {
		return "", fmt.Errorf("unknown branch %s", name)
	}
	return tip, nil
}

func (m *mockAdapter) RemoteTip(ctx context.Context, remote, name string) (string, error) {
	return m.remote[name], nil
}

func (m *mockAdapter) CreateRef(ctx context.Context, name, sha string) error {
	if name == m.failCreateRef {
		return fmt.Errorf("cannot create ref %s", name)
	}
	m.refs[name] = sha
	return nil
}

func (m *mockAdapter) DeleteRef(ctx context.Context, name string) error {
	delete(m.refs, name)
	return nil
}

func (m *mockAdapter) ResetHard(ctx context.Context, name, sha string) error {
	m.refs[name] = sha
	return nil
}

func (m *mockAdapter) Checkout(ctx context.Context, name string) error {
	m.current = name
	return nil
}

func (m *mockAdapter) RebaseOnto(ctx context.Context, branch, oldBase, newBase string) (git.RebaseOutcome, error) {
	if m.conflictOn[branch] {
		delete(m.conflictOn, branch)
		m.midRebase = true
		m.pendingRebase = &pendingRebase{branch: branch, oldBase: oldBase, newBase: newBase}
		m.unresolved = m.conflictFiles
		return git.RebaseOutcome{Conflict: true, Files: m.conflictFiles}, nil
	}
	return git.RebaseOutcome{NewTip: m.replay(branch, oldBase, newBase)}, nil
}

// replay moves the commits of branch above oldBase onto newBase
func (m *mockAdapter) replay(branch, oldBase, newBase string) string {
	count := 0
	for sha := m.refs[branch]; sha != "" && sha != oldBase; sha = m.commits[sha] {
		count++
	}
	tip := newBase
	for i := 0; i < count; i++ {
		tip = m.newCommit(tip)
	}
	m.refs[branch] = tip
	return tip
}

func (m *mockAdapter) RebaseContinue(ctx context.Context, branch string) (git.RebaseOutcome, error) {
	if m.pendingRebase == nil {
		return git.RebaseOutcome{}, fmt.Errorf("no rebase in progress")
	}
	pending := m.pendingRebase
	m.pendingRebase = nil
	m.midRebase = false
	m.unresolved = nil
	return git.RebaseOutcome{NewTip: m.replay(pending.branch, pending.oldBase, pending.newBase)}, nil
}

func (m *mockAdapter) RebaseAbort(ctx context.Context) error {
	m.pendingRebase = nil
	m.midRebase = false
	m.unresolved = nil
	return nil
}

func (m *mockAdapter) IsMidRebase(ctx context.Context) bool {
	return m.midRebase
}

func (m *mockAdapter) ConflictingFiles(ctx context.Context) ([]string, error) {
	return m.unresolved, nil
}

func (m *mockAdapter) MergeBase(ctx context.Context, rev1, rev2 string) (string, error) {
	set := m.ancestorSet(rev1)
	for sha := rev2; sha != ""; sha = m.commits[sha] {
		if set[sha] {
			return sha, nil
		}
	}
	return "", fmt.Errorf("no merge base between %s and %s", rev1, rev2)
}

func (m *mockAdapter) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	for sha := descendant; sha != ""; sha = m.commits[sha] {
		if sha == ancestor {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAdapter) CommitsBetween(ctx context.Context, base, head string) ([]string, error) {
	exclude := m.ancestorSet(base)
	var commits []string
	for sha := head; sha != "" && !exclude[sha]; sha = m.commits[sha] {
		commits = append(commits, sha)
	}
	return commits, nil
}

func (m *mockAdapter) AheadBehind(ctx context.Context, local, remote string) (int, int, error) {
	ahead, err := m.CommitsBetween(ctx, remote, local)
	if err != nil {
		return 0, 0, err
	}
	behind, err := m.CommitsBetween(ctx, local, remote)
	if err != nil {
		return 0, 0, err
	}
	return len(ahead), len(behind), nil
}

func (m *mockAdapter) StagedHunks(ctx context.Context) ([]git.Hunk, error) {
	return m.staged, nil
}

func (m *mockAdapter) Blame(ctx context.Context, file string, startLine, endLine int, rev string) ([]string, error) {
	owners, ok := m.blames[file]
	if !ok {
		return nil, fmt.Errorf("%w: %s", git.ErrNoHistory, file)
	}
	if startLine < 1 || endLine > len(owners) {
		return nil, fmt.Errorf("blame range out of bounds for %s", file)
	}
	return owners[startLine-1 : endLine], nil
}

func (m *mockAdapter) ApplyToIndex(ctx context.Context, patch string) error {
	m.appliedPatches = append(m.appliedPatches, patch)
	return nil
}

func (m *mockAdapter) ResetIndex(ctx context.Context) error {
	m.resetCalls++
	return nil
}

func (m *mockAdapter) CommitFixup(ctx context.Context, target string) (string, error) {
	if target == m.failFixupOn {
		return "", fmt.Errorf("fixup commit failed for %s", target)
	}
	m.fixupTargets = append(m.fixupTargets, target)
	return m.advance(m.current), nil
}

var _ git.Adapter = (*mockAdapter)(nil)
