package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	pexec "github.com/zhubert/dispatch-core/exec"
)

func TestComposeInstructionsBaseOnly(t *testing.T) {
	r := NewRunner()
	got := r.ComposeInstructions("Add X", "", "")

	if !strings.Contains(got, "Add X") {
		t.Error("composed instructions missing base text")
	}
	if !strings.Contains(got, guidelinesHeader) {
		t.Error("composed instructions missing closing guidance")
	}
	if strings.Contains(got, additionalHeader) {
		t.Error("blank additional input emitted a section")
	}
	if strings.Contains(got, fileHeader) {
		t.Error("blank file input emitted a section")
	}
}

func TestComposeInstructionsAllSections(t *testing.T) {
	r := NewRunner()
	got := r.ComposeInstructions("Add X", "Use tabs", "File says Y")

	baseIdx := strings.Index(got, "Add X")
	addIdx := strings.Index(got, additionalHeader)
	fileIdx := strings.Index(got, fileHeader)
	guideIdx := strings.Index(got, guidelinesHeader)

	if baseIdx == -1 || addIdx == -1 || fileIdx == -1 || guideIdx == -1 {
		t.Fatalf("missing sections in:\n%s", got)
	}
	if !(baseIdx < addIdx && addIdx < fileIdx && fileIdx < guideIdx) {
		t.Errorf("sections out of order: base=%d additional=%d file=%d guidance=%d",
			baseIdx, addIdx, fileIdx, guideIdx)
	}
	if !strings.Contains(got, "Use tabs") {
		t.Error("additional text missing")
	}
	if !strings.Contains(got, "File says Y") {
		t.Error("file content missing")
	}
}

func TestComposeInstructionsBlankOptionalInputs(t *testing.T) {
	r := NewRunner()

	// Whitespace-only optional inputs must not emit sections
	got := r.ComposeInstructions("Add X", "   \n\t", "  ")
	if strings.Contains(got, additionalHeader) || strings.Contains(got, fileHeader) {
		t.Errorf("whitespace-only inputs emitted sections:\n%s", got)
	}
}

func TestComposeInstructionsFileOnly(t *testing.T) {
	r := NewRunner()
	got := r.ComposeInstructions("Add X", "", "from file")

	if strings.Contains(got, additionalHeader) {
		t.Error("unexpected additional section")
	}
	if !strings.Contains(got, fileHeader+"\nfrom file") {
		t.Errorf("file section malformed:\n%s", got)
	}
}

func TestBuildInvocation(t *testing.T) {
	r := NewRunner()
	name, args := r.BuildInvocation("do the task")

	if name != "claude" {
		t.Errorf("name = %q, want claude", name)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--print",
		"--allowedTools " + strings.Join(AllowedTools, ","),
		"--permission-prompt-tool Bash",
		"--allowedCommands " + strings.Join(SafeCommands, ","),
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q in %q", want, joined)
		}
	}
	if args[len(args)-1] != "do the task" {
		t.Errorf("instructions not the final argument: %v", args)
	}
	if args[len(args)-2] != "-p" {
		t.Errorf("instructions not passed via -p: %v", args)
	}
}

func TestRunSuccess(t *testing.T) {
	mock := pexec.NewMockExecutor(nil)
	mock.AddPrefixMatch("claude", []string{"--print"}, pexec.MockResponse{
		Stdout: []byte("line one\nline two\n"),
		Pid:    321,
	})

	r := NewRunnerWithExecutor(mock)
	result, err := r.Run(context.Background(), "/work", "do it")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Stdout != "line one\nline two\n" {
		t.Errorf("Stdout = %q", result.Stdout)
	}

	calls := mock.GetCalls()
	if len(calls) != 1 || calls[0].Dir != "/work" {
		t.Errorf("agent not started in workDir: %+v", calls)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	mock := pexec.NewMockExecutor(nil)
	mock.AddPrefixMatch("claude", []string{"--print"}, pexec.MockResponse{
		Stderr:   []byte("something broke\n"),
		ExitCode: 2,
	})

	r := NewRunnerWithExecutor(mock)
	_, err := r.Run(context.Background(), "/work", "do it")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run error = %v, want *ExitError", err)
	}
	if exitErr.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", exitErr.ExitCode)
	}
	if !strings.Contains(exitErr.Stderr, "something broke") {
		t.Errorf("Stderr = %q", exitErr.Stderr)
	}
}

func TestSpawnFailure(t *testing.T) {
	mock := pexec.NewMockExecutor(nil)
	mock.AddPrefixMatch("claude", []string{"--print"}, pexec.MockResponse{
		Err: fmt.Errorf("executable not found"),
	})

	r := NewRunnerWithExecutor(mock)
	_, err := r.Spawn(context.Background(), "/work", "do it")
	if !errors.Is(err, ErrSpawn) {
		t.Errorf("Spawn error = %v, want ErrSpawn", err)
	}
}

func TestWaitDrainsBothStreams(t *testing.T) {
	// A real process writing to both streams exercises the concurrent drain.
	e := pexec.NewRealExecutor()
	handle, err := e.Start(context.Background(), "", "sh", "-c",
		"echo out1; echo err1 >&2; echo out2; echo err2 >&2")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	r := NewRunner()
	result, err := r.Wait(handle)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result.Stdout != "out1\nout2\n" {
		t.Errorf("Stdout = %q", result.Stdout)
	}
	if result.Stderr != "err1\nerr2\n" {
		t.Errorf("Stderr = %q", result.Stderr)
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{ExitCode: 3, Stderr: "boom\n"}
	if got := err.Error(); !strings.Contains(got, "3") || !strings.Contains(got, "boom") {
		t.Errorf("Error() = %q", got)
	}

	bare := &ExitError{ExitCode: 1}
	if got := bare.Error(); !strings.Contains(got, "exited with code 1") {
		t.Errorf("Error() = %q", got)
	}
}

func TestAllowedToolsComposition(t *testing.T) {
	want := []string{"Edit", "Write", "Read", "Bash"}
	if len(AllowedTools) != len(want) {
		t.Fatalf("AllowedTools = %v, want %v", AllowedTools, want)
	}
	for i := range want {
		if AllowedTools[i] != want[i] {
			t.Errorf("AllowedTools[%d] = %q, want %q", i, AllowedTools[i], want[i])
		}
	}
}

func TestComposeTools(t *testing.T) {
	got := ComposeTools([]string{"Read", "Edit"}, []string{"Edit", "Bash"})
	want := []string{"Read", "Edit", "Bash"}
	if len(got) != len(want) {
		t.Fatalf("ComposeTools = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ComposeTools[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
