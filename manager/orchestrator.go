// Package manager contains the per-session orchestrator: the state machine
// that sequences isolation, the agent process, and the publish pipeline,
// reporting progress through the session registry.
package manager

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zhubert/dispatch-core/checkout"
	"github.com/zhubert/dispatch-core/claude"
	"github.com/zhubert/dispatch-core/config"
	pexec "github.com/zhubert/dispatch-core/exec"
	"github.com/zhubert/dispatch-core/git"
	"github.com/zhubert/dispatch-core/logger"
	"github.com/zhubert/dispatch-core/process"
	"github.com/zhubert/dispatch-core/registry"
)

// cancelledMessage is stored on the session record when a caller cancels.
const cancelledMessage = "cancelled by caller"

// CheckoutService is the isolation surface the orchestrator needs.
type CheckoutService interface {
	Isolate(ctx context.Context, sourcePath, sessionID string) (string, error)
	Cleanup(sessionID string) error
}

// GitWorkflow is the publish surface the orchestrator needs.
type GitWorkflow interface {
	CreateFeatureBranch(ctx context.Context, repoPath, branchName string) error
	CommitAndPush(ctx context.Context, repoPath, message string) error
	CreatePullRequest(ctx context.Context, repoPath, title, body, headBranch, baseBranch string) (string, error)
}

// AgentRunner is the agent-process surface the orchestrator needs.
type AgentRunner interface {
	ComposeInstructions(base, additional, fileContent string) string
	Spawn(ctx context.Context, workDir, instructions string) (pexec.CommandHandle, error)
	Wait(handle pexec.CommandHandle) (claude.Result, error)
}

// KillFunc forcefully terminates an OS process by pid.
type KillFunc func(ctx context.Context, pid int) error

// Compile-time interface satisfaction checks.
var (
	_ CheckoutService = (*checkout.Service)(nil)
	_ GitWorkflow     = (*git.GitService)(nil)
	_ AgentRunner     = (*claude.Runner)(nil)
	_ KillFunc        = process.Kill
)

// Orchestrator runs coding-task sessions. Each StartSession launches the
// pipeline on its own goroutine; callers observe progress by polling the
// shared registry, which is the only synchronization point between
// concurrent sessions.
type Orchestrator struct {
	registry  *registry.Registry
	checkouts CheckoutService
	git       GitWorkflow
	agent     AgentRunner
	kill      KillFunc

	mu   sync.Mutex
	done map[string]chan struct{}
	wg   sync.WaitGroup
}

// NewOrchestrator creates an orchestrator with explicit injected
// collaborators.
func NewOrchestrator(reg *registry.Registry, checkouts CheckoutService, gitSvc GitWorkflow, agent AgentRunner, kill KillFunc) *Orchestrator {
	return &Orchestrator{
		registry:  reg,
		checkouts: checkouts,
		git:       gitSvc,
		agent:     agent,
		kill:      kill,
		done:      make(map[string]chan struct{}),
	}
}

// NewDefaultOrchestrator wires an orchestrator with the real service
// implementations and a fresh registry.
func NewDefaultOrchestrator() *Orchestrator {
	return NewOrchestrator(
		registry.NewRegistry(),
		checkout.NewService(),
		git.NewGitService(),
		claude.NewRunner(),
		process.Kill,
	)
}

// Registry exposes the session registry for status queries and listing.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// StartSession registers a new session and launches its pipeline on its own
// goroutine, returning the session id immediately. The caller polls the
// registry to observe progress.
func (o *Orchestrator) StartSession(cfg RunConfig) (string, error) {
	id := uuid.New().String()
	log := logger.WithSession(id)

	if cfg.BaseBranch == "" {
		cfg.BaseBranch = defaultBaseBranch()
	}

	instructions := o.agent.ComposeInstructions(cfg.Instructions, cfg.AdditionalInstructions, cfg.InstructionsFile)

	info, err := o.registry.Create(id, cfg.GitDirectory, instructions, "", "")
	if err != nil {
		return "", err
	}
	if err := registry.SaveRecord(info); err != nil {
		log.Warn("failed to persist session record", "error", err)
	}

	done := make(chan struct{})
	o.mu.Lock()
	o.done[id] = done
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(done)
		o.run(id, cfg, instructions)
	}()

	log.Info("session started", "gitDirectory", cfg.GitDirectory, "baseBranch", cfg.BaseBranch)
	return id, nil
}

// defaultBaseBranch resolves the fallback PR base branch from settings.
func defaultBaseBranch() string {
	settings, err := config.LoadSettings()
	if err != nil || settings.GetDefaultBaseBranch() == "" {
		return "main"
	}
	return settings.GetDefaultBaseBranch()
}

// run executes the session pipeline. The first failure aborts the
// remainder; every terminal transition is persisted to the record file.
func (o *Orchestrator) run(id string, cfg RunConfig, instructions string) {
	log := logger.WithSession(id)
	ctx := context.Background()

	workDir, err := o.checkouts.Isolate(ctx, cfg.GitDirectory, id)
	if err != nil {
		o.fail(id, fmt.Sprintf("failed to isolate repository: %v", err))
		return
	}
	if err := o.registry.SetWorkDir(id, workDir); err != nil {
		o.fail(id, fmt.Sprintf("failed to record working copy: %v", err))
		return
	}

	branchName := git.GenerateBranchName(cfg.Instructions)
	if err := o.git.CreateFeatureBranch(ctx, workDir, branchName); err != nil {
		o.fail(id, fmt.Sprintf("failed to create feature branch: %v", err))
		return
	}
	if err := o.registry.SetBranchName(id, branchName); err != nil {
		o.fail(id, fmt.Sprintf("failed to record branch name: %v", err))
		return
	}

	handle, err := o.agent.Spawn(ctx, workDir, instructions)
	if err != nil {
		o.fail(id, fmt.Sprintf("failed to start agent process: %v", err))
		return
	}
	if err := o.registry.SetWorking(id, handle.Pid()); err != nil {
		o.fail(id, fmt.Sprintf("failed to record agent process: %v", err))
		return
	}
	o.persist(id)

	result, err := o.agent.Wait(handle)
	if err != nil {
		o.fail(id, fmt.Sprintf("agent process failed: %v", err))
		return
	}
	if result.ExitCode != 0 {
		o.fail(id, fmt.Sprintf("agent process exited with code %d: %s",
			result.ExitCode, strings.TrimSpace(result.Stderr)))
		return
	}

	title := summarize(cfg.Instructions)
	if err := o.git.CommitAndPush(ctx, workDir, title); err != nil {
		o.fail(id, fmt.Sprintf("failed to publish changes: %v", err))
		return
	}

	prURL, err := o.git.CreatePullRequest(ctx, workDir, title, cfg.Instructions, branchName, cfg.BaseBranch)
	if err != nil {
		o.fail(id, fmt.Sprintf("failed to create pull request: %v", err))
		return
	}

	if err := o.registry.SetCompleted(id, prURL); err != nil {
		log.Error("failed to mark session completed", "error", err)
		return
	}
	o.persist(id)
	log.Info("session completed", "prURL", prURL)
}

// fail records a terminal error on the session, then reclaims the working
// copy best-effort. Cleanup failure is logged, never escalated, so the
// primary error stays visible.
func (o *Orchestrator) fail(id, message string) {
	log := logger.WithSession(id)
	log.Error("session failed", "message", message)

	if err := o.registry.SetError(id, message); err != nil {
		log.Error("failed to record session error", "error", err)
	}
	o.persist(id)

	if err := o.checkouts.Cleanup(id); err != nil {
		log.Warn("failed to clean up working copy", "error", err)
	}
}

// persist re-writes the session's record file after a registry transition.
func (o *Orchestrator) persist(id string) {
	info, err := o.registry.GetInfo(id)
	if err != nil {
		return
	}
	if err := registry.SaveRecord(info); err != nil {
		logger.WithSession(id).Warn("failed to persist session record", "error", err)
	}
}

// Cancel kills a session's agent process if one is running, reclaims its
// working copy, and records the cancellation. A cancel racing natural
// completion is last-write-wins; the pid read is a consistent snapshot
// from the registry.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	log := logger.WithSession(id)

	pid, hasProcess, err := o.registry.GetProcessID(id)
	if err != nil {
		return err
	}

	if hasProcess {
		if err := o.kill(ctx, pid); err != nil {
			// Best-effort: the process may have already exited
			log.Warn("failed to kill agent process", "pid", pid, "error", err)
		}
	}

	if err := o.checkouts.Cleanup(id); err != nil {
		log.Warn("failed to clean up working copy", "error", err)
	}

	if err := o.registry.SetError(id, cancelledMessage); err != nil {
		return err
	}
	o.persist(id)

	log.Info("session cancelled")
	return nil
}

// WaitFor blocks until the session's pipeline goroutine finishes. Intended
// for tests and shutdown paths; regular callers poll the registry.
func (o *Orchestrator) WaitFor(id string) {
	o.mu.Lock()
	done, ok := o.done[id]
	o.mu.Unlock()
	if ok {
		<-done
	}
}

// Shutdown waits for every in-flight session to reach a terminal state.
func (o *Orchestrator) Shutdown() {
	o.wg.Wait()
}

// summarize derives a one-line title from a task description: the first
// non-blank line, truncated to 72 characters. Truncation counts runes so a
// multi-byte character is never split.
func summarize(instructions string) string {
	for _, line := range strings.Split(instructions, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > 72 {
			return string(runes[:69]) + "..."
		}
		return line
	}
	return "Automated coding task"
}
