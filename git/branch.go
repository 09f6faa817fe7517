package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zhubert/dispatch-core/logger"
)

// Configuration constants for branch operations
const (
	// BranchNamespace prefixes every generated feature branch name.
	BranchNamespace = "claude/"

	// MaxSlugLength is the maximum length for the descriptive slug portion
	// of a generated branch name (before the timestamp suffix).
	MaxSlugLength = 30
)

// GenerateBranchName derives a feature branch name from a task description:
// a lowercase alphanumeric-and-hyphen slug truncated to MaxSlugLength, under
// the fixed namespace, with a millisecond timestamp suffix so two calls with
// the same description at different instants never collide.
func GenerateBranchName(description string) string {
	slug := slugify(description)
	if slug == "" {
		slug = "task"
	}
	return fmt.Sprintf("%s%s-%d", BranchNamespace, slug, time.Now().UnixMilli())
}

// slugify lowercases the description and replaces every non-alphanumeric
// run with a single hyphen, trimming and truncating the result.
func slugify(description string) string {
	description = strings.ToLower(description)

	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, c := range description {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteRune('-')
			lastHyphen = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
		slug = strings.TrimRight(slug, "-")
	}
	return slug
}

// CreateFeatureBranch creates branchName from the current head commit and
// checks it out. The branch's base commit is identical to the pre-branch
// head (no merge, no rebase).
func (s *GitService) CreateFeatureBranch(ctx context.Context, repoPath, branchName string) error {
	output, err := s.executor.CombinedOutput(ctx, repoPath, "git", "checkout", "-b", branchName)
	if err != nil {
		return fmt.Errorf("failed to create branch %s: %s: %w",
			branchName, strings.TrimSpace(string(output)), err)
	}

	logger.WithComponent("git").Info("created feature branch", "branch", branchName, "repoPath", repoPath)
	return nil
}

// GetCurrentBranch returns the name of the currently checked out branch.
// Returns an error if HEAD is detached or the command fails.
func (s *GitService) GetCurrentBranch(ctx context.Context, repoPath string) (string, error) {
	output, err := s.executor.Output(ctx, repoPath, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}

	branch := strings.TrimSpace(string(output))
	if branch == "HEAD" {
		return "", fmt.Errorf("HEAD is detached (not on a branch)")
	}

	return branch, nil
}
