// Package claude runs the external Claude Code CLI as the coding agent for
// a session. It composes the instruction payload, builds the constrained
// invocation (non-interactive print mode, fixed tool and shell-command
// allowlists), and supervises the process: spawn, concurrent stream
// draining, and exit-status reporting.
package claude
