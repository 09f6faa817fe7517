// Package checkout provides session-scoped working copies of source
// repositories. Each session gets a full recursive copy of the caller's
// repository under the checkouts root, so the agent process never mutates
// the original checkout.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	pexec "github.com/zhubert/dispatch-core/exec"
	"github.com/zhubert/dispatch-core/logger"
	"github.com/zhubert/dispatch-core/paths"
)

// ErrSessionExists indicates a working copy already exists for the session id.
var ErrSessionExists = errors.New("working copy already exists for session")

// dirPrefix is the naming convention for session working copies under the
// checkouts root. The orphan sweep removes every entry matching it.
const dirPrefix = "session-"

// Service provides working-copy operations with explicit dependency injection.
type Service struct {
	executor pexec.CommandExecutor
}

// NewService creates a Service with the default real executor.
func NewService() *Service {
	return &Service{executor: pexec.NewRealExecutor()}
}

// NewServiceWithExecutor creates a Service with a custom executor.
// This is primarily used for testing where a mock executor is needed.
func NewServiceWithExecutor(exec pexec.CommandExecutor) *Service {
	return &Service{executor: exec}
}

// WorkDirFor returns the working copy path for a session id without
// touching the filesystem.
func WorkDirFor(sessionID string) (string, error) {
	root, err := paths.CheckoutsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, dirPrefix+sessionID), nil
}

// Isolate produces an independent working copy of sourcePath for the given
// session. It fails with ErrSessionExists if a copy for the session already
// exists, copies the source tree recursively, and validates the result is a
// usable git repository. The source is never mutated; on validation failure
// the partial copy is removed.
func (s *Service) Isolate(ctx context.Context, sourcePath, sessionID string) (string, error) {
	log := logger.WithSession(sessionID)
	startTime := time.Now()

	workDir, err := WorkDirFor(sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve checkouts directory: %w", err)
	}

	if _, err := os.Stat(workDir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}

	if err := os.MkdirAll(filepath.Dir(workDir), 0755); err != nil {
		return "", fmt.Errorf("failed to create checkouts directory: %w", err)
	}

	log.Info("isolating repository", "source", sourcePath, "workDir", workDir)
	if err := copyTree(sourcePath, workDir); err != nil {
		// Remove whatever was copied before the failure
		os.RemoveAll(workDir)
		return "", fmt.Errorf("failed to copy repository: %w", err)
	}

	// The copy must itself be a usable git repository
	output, err := s.executor.CombinedOutput(ctx, workDir, "git", "rev-parse", "--git-dir")
	if err != nil {
		os.RemoveAll(workDir)
		return "", fmt.Errorf("copied directory is not a git repository: %s: %w",
			strings.TrimSpace(string(output)), err)
	}

	log.Info("repository isolated", "workDir", workDir, "duration", time.Since(startTime))
	return workDir, nil
}

// copyTree recursively copies src into dst, preserving file modes and
// symlinks. dst must not exist.
func copyTree(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}

	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return err
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return err
			}
		case info.IsDir():
			if err := copyTree(srcPath, dstPath); err != nil {
				return err
			}
		default:
			if err := copyFile(srcPath, dstPath, info.Mode().Perm()); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReclaimOrphans removes every session-prefixed entry under the checkouts
// root and returns how many were removed. It does not consult the session
// registry, so it must only run at process start before any session is
// active. A missing checkouts root is not an error.
func (s *Service) ReclaimOrphans() (int, error) {
	log := logger.WithComponent("checkout")

	root, err := paths.CheckoutsDir()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve checkouts directory: %w", err)
	}

	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read checkouts directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn("failed to remove orphaned working copy", "path", path, "error", err)
			continue
		}
		log.Info("reclaimed orphaned working copy", "path", path)
		removed++
	}

	if removed > 0 {
		log.Info("orphan reclaim complete", "removed", removed)
	}
	return removed, nil
}

// Cleanup removes a session's working copy. Idempotent: a missing copy is
// not an error.
func (s *Service) Cleanup(sessionID string) error {
	workDir, err := WorkDirFor(sessionID)
	if err != nil {
		return err
	}
	return s.CleanupDir(workDir)
}

// CleanupDir recursively removes a working copy by path. Idempotent.
func (s *Service) CleanupDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove working copy %s: %w", path, err)
	}
	return nil
}
