package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhubert/dispatch-core/logger"
)

// Fallback identity used when the repository has no user.name/user.email
// configured (a fresh working copy on a machine without global git config).
const (
	fallbackAuthorName  = "Claude"
	fallbackAuthorEmail = "claude@dispatch.dev"
)

// StageAllChanges stages every working-tree change, including new and
// deleted files.
func (s *GitService) StageAllChanges(ctx context.Context, repoPath string) error {
	output, err := s.executor.CombinedOutput(ctx, repoPath, "git", "add", "-A")
	if err != nil {
		return fmt.Errorf("git add failed: %s: %w", strings.TrimSpace(string(output)), err)
	}
	return nil
}

// hasConfiguredIdentity reports whether the repository resolves a commit
// identity (user.email set locally or globally).
func (s *GitService) hasConfiguredIdentity(ctx context.Context, repoPath string) bool {
	output, err := s.executor.Output(ctx, repoPath, "git", "config", "user.email")
	return err == nil && strings.TrimSpace(string(output)) != ""
}

// CreateCommit commits the staged tree as a child of the current head and
// returns the new commit id. Uses the repository's configured identity when
// available, otherwise the fixed fallback identity. --allow-empty keeps a
// no-op agent run from failing the pipeline.
func (s *GitService) CreateCommit(ctx context.Context, repoPath, message string) (string, error) {
	log := logger.WithComponent("git")

	args := []string{}
	if !s.hasConfiguredIdentity(ctx, repoPath) {
		log.Debug("no commit identity configured, using fallback", "repoPath", repoPath)
		args = append(args,
			"-c", "user.name="+fallbackAuthorName,
			"-c", "user.email="+fallbackAuthorEmail,
		)
	}
	args = append(args, "commit", "--allow-empty", "-m", message)

	output, err := s.executor.CombinedOutput(ctx, repoPath, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git commit failed: %s: %w", strings.TrimSpace(string(output)), err)
	}

	head, err := s.executor.Output(ctx, repoPath, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve new commit: %w", err)
	}

	commitID := strings.TrimSpace(string(head))
	log.Info("created commit", "commit", commitID, "repoPath", repoPath)
	return commitID, nil
}

// CommitAndPush stages everything, commits it, derives the current branch
// from head, and pushes it to origin. The first failing step aborts the
// sequence without retry.
func (s *GitService) CommitAndPush(ctx context.Context, repoPath, message string) error {
	if err := s.StageAllChanges(ctx, repoPath); err != nil {
		return err
	}

	if _, err := s.CreateCommit(ctx, repoPath, message); err != nil {
		return err
	}

	branch, err := s.GetCurrentBranch(ctx, repoPath)
	if err != nil {
		return err
	}

	return s.PushToRemote(ctx, repoPath, branch)
}
