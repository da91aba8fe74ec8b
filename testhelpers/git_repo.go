// Package testhelpers provides a real git repository fixture for tests
// that exercise the repository adapter end to end.
package testhelpers

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// GitRepo is a throwaway git repository rooted in a test temp directory
type GitRepo struct {
	Dir string
}

// NewGitRepo initializes a fresh repository with main checked out and an
// initial commit, isolated from any global git configuration
func NewGitRepo(t *testing.T) *GitRepo {
	t.Helper()

	dir := t.TempDir()
	repo := &GitRepo{Dir: dir}

	cmd := exec.Command("git", "-c", "init.defaultBranch=main", "-c", "core.autocrlf=false", "init", dir, "-b", "main")
	cmd.Env = isolatedEnv()
	require.NoError(t, cmd.Run(), "failed to init repo")

	repo.Git(t, "config", "user.name", "Test User")
	repo.Git(t, "config", "user.email", "test@example.com")
	repo.Git(t, "config", "commit.gpgsign", "false")

	repo.CommitFile(t, "README.md", "initial\n", "initial commit")
	return repo
}

// Git runs a git command in the repository and fails the test on error
func (r *GitRepo) Git(t *testing.T, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	cmd.Env = isolatedEnv()
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s failed:\n%s", strings.Join(args, " "), output)
	return strings.TrimSpace(string(output))
}

// CommitFile writes the file and commits it, returning the new HEAD sha
func (r *GitRepo) CommitFile(t *testing.T, name, contents, message string) string {
	t.Helper()

	path := filepath.Join(r.Dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	r.Git(t, "add", name)
	r.Git(t, "commit", "--no-verify", "-m", message)
	return r.Head(t)
}

// StageFile writes the file and stages it without committing
func (r *GitRepo) StageFile(t *testing.T, name, contents string) {
	t.Helper()

	path := filepath.Join(r.Dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	r.Git(t, "add", name)
}

// CreateBranch creates and checks out a branch at the current HEAD
func (r *GitRepo) CreateBranch(t *testing.T, name string) {
	t.Helper()
	r.Git(t, "checkout", "-b", name)
}

// Checkout switches to an existing branch
func (r *GitRepo) Checkout(t *testing.T, name string) {
	t.Helper()
	r.Git(t, "checkout", name)
}

// Head returns the current HEAD sha
func (r *GitRepo) Head(t *testing.T) string {
	t.Helper()
	return r.Git(t, "rev-parse", "HEAD")
}

// Tip returns the sha a branch points at
func (r *GitRepo) Tip(t *testing.T, branchName string) string {
	t.Helper()
	return r.Git(t, "rev-parse", "refs/heads/"+branchName)
}

// Branches returns all local branch names, sorted by git
func (r *GitRepo) Branches(t *testing.T) []string {
	t.Helper()
	output := r.Git(t, "for-each-ref", "refs/heads/", "--format=%(refname:short)")
	if output == "" {
		return nil
	}
	return strings.Split(output, "\n")
}

// Messages returns the commit subjects reachable from rev, newest first
func (r *GitRepo) Messages(t *testing.T, rev string) []string {
	t.Helper()
	output := r.Git(t, "log", "--format=%s", rev)
	if output == "" {
		return nil
	}
	return strings.Split(output, "\n")
}

// isolatedEnv returns an environment that ignores the host's git config
func isolatedEnv() []string {
	return append(os.Environ(),
		"GIT_CONFIG_GLOBAL=/dev/null",
		"GIT_CONFIG_SYSTEM=/dev/null",
		fmt.Sprintf("GIT_AUTHOR_DATE=%s", "2024-01-01T00:00:00Z"),
		fmt.Sprintf("GIT_COMMITTER_DATE=%s", "2024-01-01T00:00:00Z"),
	)
}
