// Package git implements the publish pipeline for session working copies:
// feature branch creation, staging and committing the agent's changes,
// authenticated pushes to origin, and pull request creation against the
// GitHub REST API.
//
// The package is organized into focused modules:
//   - service.go: GitService struct and constructors
//   - branch.go: branch name generation and checkout
//   - commit.go: staging, committing, commit-and-push
//   - push.go: push with ordered credential strategies
//   - remote.go: remote URL parsing
//   - github.go: pull request creation and token resolution
package git

import (
	"errors"
	"net/http"
	"time"

	pexec "github.com/zhubert/dispatch-core/exec"
)

// Sentinel errors for the publish pipeline.
var (
	// ErrAuth indicates no credential strategy or token source succeeded.
	ErrAuth = errors.New("authentication failed")
	// ErrNetwork indicates the hosting API could not be reached.
	ErrNetwork = errors.New("network request failed")
)

// defaultAPIBaseURL is the GitHub REST API root.
const defaultAPIBaseURL = "https://api.github.com"

// GitService provides git and hosting-API operations with explicit
// dependency injection. Each instance holds its own executor and HTTP
// client, enabling proper testing and avoiding global state.
type GitService struct {
	executor   pexec.CommandExecutor
	httpClient *http.Client
	apiBaseURL string
}

// NewGitService creates a GitService with the default real executor.
func NewGitService() *GitService {
	return NewGitServiceWithExecutor(pexec.NewRealExecutor())
}

// NewGitServiceWithExecutor creates a GitService with a custom executor.
// This is primarily used for testing where a mock executor is needed.
func NewGitServiceWithExecutor(exec pexec.CommandExecutor) *GitService {
	return &GitService{
		executor:   exec,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBaseURL: defaultAPIBaseURL,
	}
}

// SetAPIBaseURL overrides the hosting API root (for tests against a local
// test server).
func (s *GitService) SetAPIBaseURL(url string) {
	s.apiBaseURL = url
}

// SetHTTPClient overrides the HTTP client used for hosting API calls.
func (s *GitService) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}
