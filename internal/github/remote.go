package github

import (
	"fmt"
	"strings"
)

// RepoInfo is the repository coordinates parsed from a git remote URL
type RepoInfo struct {
	Hostname string
	Owner    string
	Repo     string
}

// ParseRemoteURL extracts hostname, owner, and repo from a git remote
// URL. Both HTTPS and SSH forms are accepted, for github.com and
// enterprise hosts alike:
//
//   - https://github.com/owner/repo.git
//   - git@github.com:owner/repo.git
//   - https://github.company.com/owner/repo.git
func ParseRemoteURL(remoteURL string) (*RepoInfo, error) {
	remoteURL = strings.TrimSpace(remoteURL)
	remoteURL = strings.TrimSuffix(remoteURL, ".git")
	if remoteURL == "" {
		return nil, fmt.Errorf("empty remote URL")
	}

	var hostname, path string
	switch {
	case strings.Contains(remoteURL, "://"):
		rest := remoteURL[strings.Index(remoteURL, "://")+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return nil, fmt.Errorf("remote URL %q has no repository path", remoteURL)
		}
		hostname = rest[:slash]
		path = rest[slash+1:]

	case strings.Contains(remoteURL, "@"):
		rest := remoteURL[strings.Index(remoteURL, "@")+1:]
		colon := strings.Index(rest, ":")
		if colon < 0 {
			return nil, fmt.Errorf("remote URL %q has no repository path", remoteURL)
		}
		hostname = rest[:colon]
		path = rest[colon+1:]

	default:
		return nil, fmt.Errorf("unrecognized remote URL %q", remoteURL)
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("remote URL %q has no owner/repo path", remoteURL)
	}

	return &RepoInfo{Hostname: hostname, Owner: parts[0], Repo: parts[1]}, nil
}
