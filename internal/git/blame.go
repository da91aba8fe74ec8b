package git

import (
	"context"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

// Blame returns the commit that last modified each line of file in the
// inclusive 1-indexed range [startLine, endLine], evaluated at rev.
// Returns ErrNoHistory when the file does not exist at rev.
func (a *adapter) Blame(ctx context.Context, file string, startLine, endLine int, rev string) ([]string, error) {
	commit, err := a.resolveCommit(rev)
	if err != nil {
		return nil, err
	}

	if _, err := commit.File(file); err != nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrNoHistory, file, rev)
	}

	result, err := gogit.Blame(commit, file)
	if err != nil {
		return nil, fmt.Errorf("blame of %s failed: %w", file, err)
	}

	if startLine < 1 || endLine < startLine || endLine > len(result.Lines) {
		return nil, fmt.Errorf("blame range %d-%d out of bounds for %s (%d lines)",
			startLine, endLine, file, len(result.Lines))
	}

	shas := make([]string, 0, endLine-startLine+1)
	for i := startLine - 1; i < endLine; i++ {
		shas = append(shas, result.Lines[i].Hash.String())
	}
	return shas, nil
}
