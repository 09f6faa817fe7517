package cli

import (
	"strings"
	"testing"
)

func TestCheckMissingTool(t *testing.T) {
	result := Check(Prerequisite{Name: "definitely-not-a-real-tool-xyz", Required: true})
	if result.Found {
		t.Error("nonexistent tool reported as found")
	}
	if result.Path != "" {
		t.Errorf("Path = %q for missing tool", result.Path)
	}
}

func TestCheckExistingTool(t *testing.T) {
	// Any PATH will have a shell
	result := Check(Prerequisite{Name: "sh", Required: true})
	if !result.Found {
		t.Skip("sh not in PATH")
	}
	if result.Path == "" {
		t.Error("found tool has no path")
	}
}

func TestCheckAll(t *testing.T) {
	results := CheckAll([]Prerequisite{
		{Name: "sh"},
		{Name: "definitely-not-a-real-tool-xyz"},
	})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestValidateRequiredMissing(t *testing.T) {
	err := ValidateRequired([]Prerequisite{
		{
			Name:        "definitely-not-a-real-tool-xyz",
			Required:    true,
			Description: "Imaginary tool",
			InstallURL:  "https://example.com/install",
		},
	})
	if err == nil {
		t.Fatal("expected error for missing required tool")
	}
	if !strings.Contains(err.Error(), "definitely-not-a-real-tool-xyz") ||
		!strings.Contains(err.Error(), "https://example.com/install") {
		t.Errorf("error %q missing tool name or install URL", err)
	}
}

func TestValidateRequiredIgnoresOptional(t *testing.T) {
	err := ValidateRequired([]Prerequisite{
		{Name: "definitely-not-a-real-tool-xyz", Required: false},
	})
	if err != nil {
		t.Errorf("optional missing tool failed validation: %v", err)
	}
}

func TestDefaultPrerequisites(t *testing.T) {
	prereqs := DefaultPrerequisites()

	byName := map[string]Prerequisite{}
	for _, p := range prereqs {
		byName[p.Name] = p
	}

	for _, name := range []string{"claude", "git"} {
		p, ok := byName[name]
		if !ok || !p.Required {
			t.Errorf("%s missing or not required", name)
		}
	}
	if p, ok := byName["gh"]; !ok || p.Required {
		t.Error("gh must be present and optional")
	}
}
