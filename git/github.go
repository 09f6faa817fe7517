package git

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/zhubert/dispatch-core/config"
	"github.com/zhubert/dispatch-core/logger"
)

// API headers sent on every hosting API request.
const (
	acceptHeader = "application/vnd.github+json"
	apiVersion   = "2022-11-28"
	userAgent    = "dispatch-core"
	envTokenName = "GITHUB_TOKEN"
)

// resolveToken finds a hosting API access token. Resolution order, stopping
// at the first success: the credentials file's github_token field, the gh
// CLI's stored token, then the GITHUB_TOKEN environment variable.
func (s *GitService) resolveToken(ctx context.Context) (string, error) {
	creds, err := config.LoadCredentials()
	if err == nil && creds.GitHubToken != "" {
		return creds.GitHubToken, nil
	}

	if output, err := s.executor.Output(ctx, "", "gh", "auth", "token"); err == nil {
		if token := strings.TrimSpace(string(output)); token != "" {
			return token, nil
		}
	}

	if token := os.Getenv(envTokenName); token != "" {
		return token, nil
	}

	return "", fmt.Errorf("%w: no GitHub token found; add github_token to the credentials file, "+
		"authenticate with gh, or set %s", ErrAuth, envTokenName)
}

// pullRequest is the JSON body of the PR creation call.
type pullRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// CreatePullRequest opens a pull request for headBranch against baseBranch
// on the repository origin points at, and returns the PR's web URL.
func (s *GitService) CreatePullRequest(ctx context.Context, repoPath, title, body, headBranch, baseBranch string) (string, error) {
	log := logger.WithComponent("git")

	remoteURL, err := s.GetRemoteOriginURL(ctx, repoPath)
	if err != nil {
		return "", err
	}

	info, err := ParseRemote(remoteURL)
	if err != nil {
		return "", err
	}

	token, err := s.resolveToken(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(pullRequest{
		Title: title,
		Body:  body,
		Head:  headBranch,
		Base:  baseBranch,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode pull request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls", s.apiBaseURL, info.Owner, info.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build pull request call: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	log.Info("creating pull request",
		"owner", info.Owner,
		"repo", info.Repo,
		"head", headBranch,
		"base", baseBranch)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: pull request call failed: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read pull request response: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("pull request creation failed with status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		HTMLURL string `json:"html_url"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse pull request response: %w", err)
	}
	if result.HTMLURL == "" {
		return "", fmt.Errorf("pull request response missing html_url")
	}

	log.Info("pull request created", "url", result.HTMLURL)
	return result.HTMLURL, nil
}
