package git

import (
	"context"
	"fmt"
	"strings"
)

// hostMarker is the hosting-provider domain a remote URL must contain.
const hostMarker = "github.com"

// RepoInfo identifies a repository on the hosting provider.
type RepoInfo struct {
	Owner string
	Repo  string
}

// GetRemoteOriginURL returns the URL of the "origin" remote.
func (s *GitService) GetRemoteOriginURL(ctx context.Context, repoPath string) (string, error) {
	output, err := s.executor.Output(ctx, repoPath, "git", "remote", "get-url", "origin")
	if err != nil {
		return "", fmt.Errorf("failed to get remote origin URL: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// ParseRemote extracts owner and repo from a remote URL. Recognized shapes:
//
//	git@<host>:<owner>/<repo>[.git]    where <host> contains github.com
//	https://github.com/<owner>/<repo>[.git]
//
// Path segments past <owner>/<repo> are ignored; anything else fails with a
// parse error naming the URL.
func ParseRemote(url string) (RepoInfo, error) {
	url = strings.TrimSpace(url)

	// SSH form: git@github.com:owner/repo.git
	if strings.HasPrefix(url, "git@") {
		host, path, ok := strings.Cut(strings.TrimPrefix(url, "git@"), ":")
		if ok && strings.Contains(host, hostMarker) {
			if info, ok := splitOwnerRepo(path); ok {
				return info, nil
			}
		}
		return RepoInfo{}, fmt.Errorf("unsupported remote URL format: %s", url)
	}

	// HTTPS form: https://github.com/owner/repo.git
	httpsPrefix := "https://" + hostMarker + "/"
	if strings.HasPrefix(url, httpsPrefix) {
		if info, ok := splitOwnerRepo(strings.TrimPrefix(url, httpsPrefix)); ok {
			return info, nil
		}
	}

	return RepoInfo{}, fmt.Errorf("unsupported remote URL format: %s", url)
}

// splitOwnerRepo extracts owner and repo from "owner/repo[.git][/...]",
// ignoring any trailing path segments.
func splitOwnerRepo(path string) (RepoInfo, bool) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoInfo{}, false
	}
	repo := strings.TrimSuffix(parts[1], ".git")
	if repo == "" {
		return RepoInfo{}, false
	}
	return RepoInfo{Owner: parts[0], Repo: repo}, true
}
