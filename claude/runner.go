package claude

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	pexec "github.com/zhubert/dispatch-core/exec"
	"github.com/zhubert/dispatch-core/logger"
)

// Sentinel errors for agent process failures.
var (
	// ErrSpawn indicates the agent process could not be started.
	ErrSpawn = errors.New("failed to spawn agent process")
	// ErrIO indicates an output stream could not be drained.
	ErrIO = errors.New("agent output stream error")
)

// ExitError reports an agent process that exited non-zero.
type ExitError struct {
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("agent process exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("agent process exited with code %d: %s", e.ExitCode, stderr)
}

// Result holds the outcome of a completed agent process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Section headers used when composing the instruction payload.
const (
	additionalHeader = "## Additional Instructions"
	fileHeader       = "## Instructions from File"
	guidelinesHeader = "## Important Guidelines"
)

// closingGuidance is appended to every instruction payload. The agent makes
// the changes and runs tests; version control is handled by the pipeline.
const closingGuidance = guidelinesHeader + `
- Make the requested changes to the codebase
- Run the test suite if one is available and make sure it passes
- Do NOT run any git commands (commit, push, branch, config) - version control is handled for you
- Stop when the task is complete`

// Runner builds and supervises invocations of the claude CLI.
type Runner struct {
	executor pexec.CommandExecutor
}

// NewRunner creates a Runner with the default real executor.
func NewRunner() *Runner {
	return &Runner{executor: pexec.NewRealExecutor()}
}

// NewRunnerWithExecutor creates a Runner with a custom executor.
// This is primarily used for testing where a mock executor is needed.
func NewRunnerWithExecutor(exec pexec.CommandExecutor) *Runner {
	return &Runner{executor: exec}
}

// ComposeInstructions assembles the final instruction payload: the base
// text, an Additional Instructions section if additional is non-blank, an
// Instructions from File section if fileContent is non-blank, then the fixed
// closing guidance. Blank optional inputs add no section at all.
func (r *Runner) ComposeInstructions(base, additional, fileContent string) string {
	var b strings.Builder
	b.WriteString(base)

	if trimmed := strings.TrimSpace(additional); trimmed != "" {
		b.WriteString("\n\n")
		b.WriteString(additionalHeader)
		b.WriteString("\n")
		b.WriteString(trimmed)
	}

	if trimmed := strings.TrimSpace(fileContent); trimmed != "" {
		b.WriteString("\n\n")
		b.WriteString(fileHeader)
		b.WriteString("\n")
		b.WriteString(trimmed)
	}

	b.WriteString("\n\n")
	b.WriteString(closingGuidance)
	return b.String()
}

// BuildInvocation constructs the agent command: non-interactive print mode,
// the fixed tool allowlist, a permission-prompt delegate, the comma-joined
// safe shell command allowlist, and the instructions as the task argument.
func (r *Runner) BuildInvocation(instructions string) (name string, args []string) {
	args = []string{
		"--print",
		"--allowedTools", strings.Join(AllowedTools, ","),
		"--permission-prompt-tool", "Bash",
		"--allowedCommands", strings.Join(SafeCommands, ","),
		"-p", instructions,
	}
	return "claude", args
}

// Spawn starts the agent process in workDir with stdout/stderr captured.
// Failure to start wraps ErrSpawn with the underlying OS error.
func (r *Runner) Spawn(ctx context.Context, workDir, instructions string) (pexec.CommandHandle, error) {
	log := logger.WithComponent("claude")

	name, args := r.BuildInvocation(instructions)
	handle, err := r.executor.Start(ctx, workDir, name, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	log.Info("agent process started", "workDir", workDir, "pid", handle.Pid())
	return handle, nil
}

// Wait blocks until the agent process exits, draining stdout and stderr
// concurrently line-by-line so the two streams can never deadlock against
// each other.
func (r *Runner) Wait(handle pexec.CommandHandle) (Result, error) {
	var stdout, stderr strings.Builder
	var stdoutErr, stderrErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		stdoutErr = drainLines(handle.Stdout(), &stdout)
	}()
	go func() {
		defer wg.Done()
		stderrErr = drainLines(handle.Stderr(), &stderr)
	}()
	wg.Wait()

	exitCode, err := handle.Wait()
	if err != nil {
		return Result{}, fmt.Errorf("failed to wait for agent process: %w", err)
	}
	if stdoutErr != nil {
		return Result{}, fmt.Errorf("%w: stdout: %v", ErrIO, stdoutErr)
	}
	if stderrErr != nil {
		return Result{}, fmt.Errorf("%w: stderr: %v", ErrIO, stderrErr)
	}

	return Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// drainLines accumulates reader output line-by-line into out.
func drainLines(reader io.Reader, out *strings.Builder) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		out.WriteString(scanner.Text())
		out.WriteString("\n")
	}
	return scanner.Err()
}

// Run spawns the agent process and waits for it to complete. A non-zero
// exit returns an *ExitError carrying the exit code and captured stderr.
func (r *Runner) Run(ctx context.Context, workDir, instructions string) (Result, error) {
	log := logger.WithComponent("claude")
	startTime := time.Now()

	handle, err := r.Spawn(ctx, workDir, instructions)
	if err != nil {
		return Result{}, err
	}

	result, err := r.Wait(handle)
	if err != nil {
		return Result{}, err
	}

	log.Info("agent process finished",
		"workDir", workDir,
		"exitCode", result.ExitCode,
		"duration", time.Since(startTime))

	if result.ExitCode != 0 {
		return result, &ExitError{ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return result, nil
}
