package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/dispatch-core/logger"
)

// credentialStrategy is one way of authenticating a push. Strategies are
// tried in a fixed order; each is a pure attempt with no hidden retry state.
type credentialStrategy struct {
	name      string
	available func() bool
	env       func() []string // extra environment for the push, nil for git defaults
}

// pushStrategies returns the ordered credential strategies: SSH agent,
// on-disk SSH keys at the conventional paths, the system credential helper,
// then git's default mechanism.
func pushStrategies() []credentialStrategy {
	home, _ := os.UserHomeDir()
	sshKey := func(file string) credentialStrategy {
		path := filepath.Join(home, ".ssh", file)
		return credentialStrategy{
			name: "ssh-key-" + file,
			available: func() bool {
				_, err := os.Stat(path)
				return err == nil
			},
			env: func() []string {
				return []string{"GIT_SSH_COMMAND=ssh -i " + path + " -o IdentitiesOnly=yes"}
			},
		}
	}

	return []credentialStrategy{
		{
			name: "ssh-agent",
			available: func() bool {
				return os.Getenv("SSH_AUTH_SOCK") != ""
			},
			env: func() []string { return nil },
		},
		sshKey("id_ed25519"),
		sshKey("id_rsa"),
		{
			name:      "credential-helper",
			available: func() bool { return true },
			env:       func() []string { return nil },
		},
		{
			name:      "default",
			available: func() bool { return true },
			env:       func() []string { return nil },
		},
	}
}

// PushToRemote pushes branchName to the remote named "origin", creating or
// updating the corresponding remote branch. Credential strategies are tried
// in order, stopping at the first success; if all fail the error wraps
// ErrAuth with the last git output.
func (s *GitService) PushToRemote(ctx context.Context, repoPath, branchName string) error {
	log := logger.WithComponent("git")
	refspec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", branchName, branchName)

	var lastOutput string
	for _, strategy := range pushStrategies() {
		if !strategy.available() {
			continue
		}

		log.Debug("attempting push", "branch", branchName, "strategy", strategy.name)
		_, stderr, err := s.executor.RunEnv(ctx, repoPath, strategy.env(),
			"git", "push", "origin", refspec)
		if err == nil {
			log.Info("pushed branch", "branch", branchName, "strategy", strategy.name)
			return nil
		}

		lastOutput = strings.TrimSpace(string(stderr))
		log.Debug("push attempt failed", "strategy", strategy.name, "output", lastOutput)
	}

	return fmt.Errorf("%w: push of %s to origin failed: %s", ErrAuth, branchName, lastOutput)
}
