package git

import (
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"

	rungerrors "github.com/auswm85/rung/internal/errors"
)

// Repository wraps a go-git repository together with its worktree root
type Repository struct {
	*gogit.Repository
	root string
}

// OpenRepository opens the git repository containing path, walking up
// parent directories as git itself does
func OpenRepository(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := gogit.PlainOpenWithOptions(absPath, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", rungerrors.ErrNotARepository, absPath)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	return &Repository{
		Repository: repo,
		root:       worktree.Filesystem.Root(),
	}, nil
}

// Root returns the worktree root directory
func (r *Repository) Root() string {
	return r.root
}

// GitDir returns the path to the .git directory
func (r *Repository) GitDir() string {
	return filepath.Join(r.root, ".git")
}

// RungDir returns the path to the .git/rung state directory
func (r *Repository) RungDir() string {
	return filepath.Join(r.root, ".git", "rung")
}

// RemoteURL returns the fetch URL of the named remote, or an empty string
// when the remote is not configured
func (r *Repository) RemoteURL(name string) string {
	remote, err := r.Remote(name)
	if err != nil {
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}
