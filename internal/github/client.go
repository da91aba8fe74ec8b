// Package github resolves pull request information for stack branches.
package github

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// PRInfo is the subset of pull request state the stack cares about
type PRInfo struct {
	Number int
	URL    string
	Title  string
	State  string
	Base   string
	Draft  bool
}

// Client looks up pull requests by head branch
type Client interface {
	// PRForBranch returns the most recent pull request whose head is the
	// given branch, or nil when none exists
	PRForBranch(ctx context.Context, branchName string) (*PRInfo, error)
}

type client struct {
	gh    *github.Client
	owner string
	repo  string
}

// NewClient builds a client for the repository behind the given remote
// URL. The token comes from GITHUB_TOKEN, GH_TOKEN, or the gh CLI; when
// none is available an error is returned so callers can degrade to
// offline output.
func NewClient(ctx context.Context, remoteURL string) (Client, error) {
	info, err := ParseRemoteURL(remoteURL)
	if err != nil {
		return nil, err
	}

	token, err := resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))

	if info.Hostname != "github.com" {
		baseURL, err := url.Parse(fmt.Sprintf("https://%s/api/v3/", info.Hostname))
		if err != nil {
			return nil, fmt.Errorf("failed to parse base URL for %s: %w", info.Hostname, err)
		}
		uploadURL, err := url.Parse(fmt.Sprintf("https://%s/api/uploads/", info.Hostname))
		if err != nil {
			return nil, fmt.Errorf("failed to parse upload URL for %s: %w", info.Hostname, err)
		}
		gh.BaseURL = baseURL
		gh.UploadURL = uploadURL
	}

	return &client{gh: gh, owner: info.Owner, repo: info.Repo}, nil
}

func (c *client) PRForBranch(ctx context.Context, branchName string) (*PRInfo, error) {
	prs, _, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		Head:        fmt.Sprintf("%s:%s", c.owner, branchName),
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s: %w", branchName, err)
	}
	if len(prs) == 0 {
		return nil, nil
	}

	pr := prs[0]
	info := &PRInfo{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
		Title:  pr.GetTitle(),
		State:  strings.ToUpper(pr.GetState()),
		Draft:  pr.GetDraft(),
	}
	if pr.Base != nil {
		info.Base = pr.Base.GetRef()
	}
	return info, nil
}

// FetchAll looks up PRs for all branches in parallel. Lookup failures
// leave the branch out of the result rather than failing the whole fetch.
func FetchAll(ctx context.Context, c Client, branchNames []string) map[string]*PRInfo {
	results := make([]*PRInfo, len(branchNames))

	var wg sync.WaitGroup
	for i, name := range branchNames {
		wg.Add(1)
		go func(slot int, branchName string) {
			defer wg.Done()
			info, err := c.PRForBranch(ctx, branchName)
			if err != nil {
				return
			}
			results[slot] = info
		}(i, name)
	}
	wg.Wait()

	found := make(map[string]*PRInfo)
	for i, name := range branchNames {
		if results[i] != nil {
			found[name] = results[i]
		}
	}
	return found
}

// resolveToken finds a GitHub token in the environment or from the gh CLI
func resolveToken(ctx context.Context) (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}
	if token := os.Getenv("GH_TOKEN"); token != "" {
		return token, nil
	}

	out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		return "", fmt.Errorf("no GitHub token: set GITHUB_TOKEN or run gh auth login")
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", fmt.Errorf("no GitHub token: set GITHUB_TOKEN or run gh auth login")
	}
	return token, nil
}
