package checkout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	pexec "github.com/zhubert/dispatch-core/exec"
	"github.com/zhubert/dispatch-core/paths"
)

// setupTestPaths points path resolution at a temp directory.
func setupTestPaths(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	paths.Reset()
	t.Cleanup(paths.Reset)
}

// createSourceRepo builds a fake repository tree to isolate.
func createSourceRepo(t *testing.T) string {
	t.Helper()
	src := t.TempDir()

	if err := os.MkdirAll(filepath.Join(src, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(src, ".git", "HEAD"), "ref: refs/heads/main\n")
	writeFile(t, filepath.Join(src, "main.go"), "package main\n")
	if err := os.MkdirAll(filepath.Join(src, "pkg", "util"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(src, "pkg", "util", "util.go"), "package util\n")
	return src
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestIsolateCopiesTree(t *testing.T) {
	setupTestPaths(t)
	src := createSourceRepo(t)

	svc := NewServiceWithExecutor(pexec.NewMockExecutor(nil))
	workDir, err := svc.Isolate(context.Background(), src, "sess-1")
	if err != nil {
		t.Fatalf("Isolate: %v", err)
	}

	expected, _ := WorkDirFor("sess-1")
	if workDir != expected {
		t.Errorf("workDir = %q, want %q", workDir, expected)
	}

	for _, rel := range []string{".git/HEAD", "main.go", "pkg/util/util.go"} {
		if _, err := os.Stat(filepath.Join(workDir, rel)); err != nil {
			t.Errorf("copied tree missing %s: %v", rel, err)
		}
	}

	// Source must be untouched
	if _, err := os.Stat(filepath.Join(src, "main.go")); err != nil {
		t.Errorf("source mutated: %v", err)
	}
}

func TestIsolateSessionExists(t *testing.T) {
	setupTestPaths(t)
	src := createSourceRepo(t)

	existing, _ := WorkDirFor("sess-1")
	if err := os.MkdirAll(existing, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(existing, "keep.txt"), "existing content")

	svc := NewServiceWithExecutor(pexec.NewMockExecutor(nil))
	_, err := svc.Isolate(context.Background(), src, "sess-1")
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("Isolate error = %v, want ErrSessionExists", err)
	}

	// The existing working copy must be left untouched
	data, err := os.ReadFile(filepath.Join(existing, "keep.txt"))
	if err != nil || string(data) != "existing content" {
		t.Errorf("existing working copy was modified: %q %v", data, err)
	}
}

func TestIsolateValidationFailureRemovesCopy(t *testing.T) {
	setupTestPaths(t)
	src := createSourceRepo(t)

	mock := pexec.NewMockExecutor(nil)
	mock.AddExactMatch("git", []string{"rev-parse", "--git-dir"}, pexec.MockResponse{
		Stderr: []byte("fatal: not a git repository"),
		Err:    fmt.Errorf("exit status 128"),
	})

	svc := NewServiceWithExecutor(mock)
	_, err := svc.Isolate(context.Background(), src, "sess-1")
	if err == nil {
		t.Fatal("expected validation error")
	}

	workDir, _ := WorkDirFor("sess-1")
	if _, statErr := os.Stat(workDir); !os.IsNotExist(statErr) {
		t.Error("partial copy not removed after validation failure")
	}
}

func TestReclaimOrphans(t *testing.T) {
	setupTestPaths(t)

	root, err := paths.CheckoutsDir()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"session-aaa", "session-bbb", "unrelated"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0755); err != nil {
			t.Fatal(err)
		}
	}

	svc := NewService()
	removed, err := svc.ReclaimOrphans()
	if err != nil {
		t.Fatalf("ReclaimOrphans: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	if _, err := os.Stat(filepath.Join(root, "unrelated")); err != nil {
		t.Error("unrelated entry was removed")
	}
	for _, name := range []string{"session-aaa", "session-bbb"} {
		if _, err := os.Stat(filepath.Join(root, name)); !os.IsNotExist(err) {
			t.Errorf("%s not removed", name)
		}
	}
}

func TestReclaimOrphansMissingRoot(t *testing.T) {
	setupTestPaths(t)

	svc := NewService()
	removed, err := svc.ReclaimOrphans()
	if err != nil {
		t.Fatalf("ReclaimOrphans on missing root: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	setupTestPaths(t)

	workDir, _ := WorkDirFor("sess-1")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		t.Fatal(err)
	}

	svc := NewService()
	if err := svc.Cleanup("sess-1"); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Error("working copy not removed")
	}

	// Cleaning up again is not an error
	if err := svc.Cleanup("sess-1"); err != nil {
		t.Errorf("second Cleanup: %v", err)
	}
}

func TestCopyTreePreservesSymlinks(t *testing.T) {
	setupTestPaths(t)
	src := createSourceRepo(t)

	if err := os.Symlink("main.go", filepath.Join(src, "link.go")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	svc := NewServiceWithExecutor(pexec.NewMockExecutor(nil))
	workDir, err := svc.Isolate(context.Background(), src, "sess-1")
	if err != nil {
		t.Fatalf("Isolate: %v", err)
	}

	target, err := os.Readlink(filepath.Join(workDir, "link.go"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "main.go" {
		t.Errorf("symlink target = %q, want main.go", target)
	}
}
