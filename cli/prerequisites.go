// Package cli verifies the external command-line tools the pipeline needs.
package cli

import (
	"fmt"
	"os/exec"
	"strings"
)

// Prerequisite represents an external CLI tool the pipeline depends on.
type Prerequisite struct {
	Name        string // Command name (e.g., "claude", "git")
	Required    bool   // Whether the tool is required to run sessions
	Description string // Human-readable description
	InstallURL  string // URL for installation instructions
}

// DefaultPrerequisites returns the CLI tools Dispatch needs: the agent and
// git are required; gh is optional and only improves token resolution.
func DefaultPrerequisites() []Prerequisite {
	return []Prerequisite{
		{
			Name:        "claude",
			Required:    true,
			Description: "Claude Code CLI",
			InstallURL:  "https://claude.ai/code",
		},
		{
			Name:        "git",
			Required:    true,
			Description: "Git version control",
			InstallURL:  "https://git-scm.com/downloads",
		},
		{
			Name:        "gh",
			Required:    false,
			Description: "GitHub CLI (optional, used for token resolution)",
			InstallURL:  "https://cli.github.com",
		},
	}
}

// CheckResult contains the result of checking a prerequisite.
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string // Path to the executable if found
	Version      string // Version string if available
}

// Check verifies that a CLI tool is available in PATH.
func Check(prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}

	path, err := exec.LookPath(prereq.Name)
	if err != nil {
		return result
	}

	result.Found = true
	result.Path = path
	result.Version = getVersion(prereq.Name)
	return result
}

// CheckAll verifies all prerequisites and returns results.
func CheckAll(prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = Check(prereq)
	}
	return results
}

// ValidateRequired checks that all required prerequisites are met.
// Returns nil if every required tool is found, otherwise an aggregated
// error naming each missing tool with its install URL.
func ValidateRequired(prereqs []Prerequisite) error {
	var missing []string

	for _, prereq := range prereqs {
		if !prereq.Required {
			continue
		}
		if result := Check(prereq); !result.Found {
			missing = append(missing, fmt.Sprintf("  - %s (%s)\n    Install: %s",
				prereq.Name, prereq.Description, prereq.InstallURL))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required CLI tools:\n%s", strings.Join(missing, "\n"))
	}

	return nil
}

// getVersion attempts to get the version of a CLI tool.
func getVersion(name string) string {
	for _, flag := range []string{"--version", "-v", "version"} {
		output, err := exec.Command(name, flag).Output()
		if err != nil {
			continue
		}
		version, _, _ := strings.Cut(string(output), "\n")
		version = strings.TrimSpace(version)
		if len(version) > 100 {
			version = version[:100] + "..."
		}
		if version != "" {
			return version
		}
	}
	return ""
}
