package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pexec "github.com/zhubert/dispatch-core/exec"
)

func TestPushFirstStrategyWins(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SSH_AUTH_SOCK", "/tmp/agent.sock")

	mock := pexec.NewMockExecutor(nil)
	svc := NewGitServiceWithExecutor(mock)

	if err := svc.PushToRemote(context.Background(), "/work", "claude/add-x-1"); err != nil {
		t.Fatalf("PushToRemote: %v", err)
	}

	calls := mock.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("got %d push attempts, want 1", len(calls))
	}
	refspec := calls[0].Args[len(calls[0].Args)-1]
	if refspec != "refs/heads/claude/add-x-1:refs/heads/claude/add-x-1" {
		t.Errorf("refspec = %q", refspec)
	}
	// The agent strategy pushes with git's default environment
	if len(calls[0].Env) != 0 {
		t.Errorf("ssh-agent strategy set env: %v", calls[0].Env)
	}
}

func TestPushSSHKeyStrategyEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SSH_AUTH_SOCK", "")

	keyPath := filepath.Join(home, ".ssh", "id_ed25519")
	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, []byte("key"), 0600); err != nil {
		t.Fatal(err)
	}

	mock := pexec.NewMockExecutor(nil)
	svc := NewGitServiceWithExecutor(mock)

	if err := svc.PushToRemote(context.Background(), "/work", "claude/add-x-1"); err != nil {
		t.Fatalf("PushToRemote: %v", err)
	}

	calls := mock.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("got %d push attempts, want 1", len(calls))
	}
	if len(calls[0].Env) != 1 || !strings.Contains(calls[0].Env[0], "GIT_SSH_COMMAND=ssh -i "+keyPath) {
		t.Errorf("key strategy env = %v", calls[0].Env)
	}
}

func TestPushFallsThroughToNextStrategy(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SSH_AUTH_SOCK", "/tmp/agent.sock")

	mock := pexec.NewMockExecutor(nil)

	// Fail only the first push attempt; the second falls through to the
	// default empty-success response.
	attempts := 0
	mock.AddRule(func(dir, name string, args []string) bool {
		if name != "git" || len(args) == 0 || args[0] != "push" {
			return false
		}
		attempts++
		return attempts == 1
	}, pexec.MockResponse{
		Stderr: []byte("Permission denied (publickey)"),
		Err:    fmt.Errorf("exit status 128"),
	})

	svc := NewGitServiceWithExecutor(mock)
	if err := svc.PushToRemote(context.Background(), "/work", "claude/add-x-1"); err != nil {
		t.Fatalf("PushToRemote: %v", err)
	}

	if got := len(mock.GetCalls()); got != 2 {
		t.Errorf("got %d push attempts, want 2", got)
	}
}

func TestPushAllStrategiesFail(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SSH_AUTH_SOCK", "")

	mock := pexec.NewMockExecutor(nil)
	mock.AddPrefixMatch("git", []string{"push"}, pexec.MockResponse{
		Stderr: []byte("fatal: could not read Username"),
		Err:    fmt.Errorf("exit status 128"),
	})

	svc := NewGitServiceWithExecutor(mock)
	err := svc.PushToRemote(context.Background(), "/work", "claude/add-x-1")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("error = %v, want ErrAuth", err)
	}
	if !strings.Contains(err.Error(), "could not read Username") {
		t.Errorf("error %q does not embed last git output", err)
	}

	// No SSH agent and no keys leaves the credential-helper and default strategies
	if got := len(mock.GetCalls()); got != 2 {
		t.Errorf("got %d push attempts, want 2", got)
	}
}
