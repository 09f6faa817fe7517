// Package process provides OS-level process termination for agent processes.
package process

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	pexec "github.com/zhubert/dispatch-core/exec"
	"github.com/zhubert/dispatch-core/logger"
)

// Kill sends a forceful termination signal to the process with the given
// pid. Best-effort: an error from the underlying OS call is surfaced but
// does not imply the process is still alive (it may have already exited).
func Kill(ctx context.Context, pid int) error {
	return KillWithExecutor(ctx, pexec.GetDefaultExecutor(), pid)
}

// KillWithExecutor is Kill with an injected executor for testing.
func KillWithExecutor(ctx context.Context, executor pexec.CommandExecutor, pid int) error {
	log := logger.WithComponent("process")
	log.Info("killing process", "pid", pid)

	var name string
	var args []string
	switch runtime.GOOS {
	case "windows":
		name = "taskkill"
		args = []string{"/F", "/PID", strconv.Itoa(pid)}
	default:
		name = "kill"
		args = []string{"-9", strconv.Itoa(pid)}
	}

	if _, stderr, err := executor.Run(ctx, "", name, args...); err != nil {
		return fmt.Errorf("failed to kill process %d: %s: %w", pid, string(stderr), err)
	}
	return nil
}
