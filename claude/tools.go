package claude

// Allowlists passed to the agent invocation. The tool surface is fixed:
// file edits plus a shell restricted to the safe command list below.

// FileTools are the tools for reading and modifying the working copy.
var FileTools = []string{
	"Edit",
	"Write",
	"Read",
}

// ShellTools grants the shell, restricted to SafeCommands by the
// permission-prompt delegate.
var ShellTools = []string{
	"Bash",
}

// AllowedTools is the fixed tool-permission allowlist for agent sessions.
var AllowedTools = ComposeTools(FileTools, ShellTools)

// SafeCommands is the fixed allowlist of shell commands the agent may run:
// test runners for the ecosystems a target repository is likely to use.
var SafeCommands = []string{
	"npm test",
	"npm run test",
	"yarn test",
	"cargo test",
	"cargo check",
	"go test ./...",
	"go vet ./...",
	"pytest",
	"python -m pytest",
	"npx jest",
}

// ComposeTools merges multiple tool sets into a single deduplicated slice.
// Order is preserved (first occurrence wins).
func ComposeTools(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, set := range sets {
		for _, tool := range set {
			if _, exists := seen[tool]; !exists {
				seen[tool] = struct{}{}
				result = append(result, tool)
			}
		}
	}
	return result
}
