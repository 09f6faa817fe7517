package manager

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// taskFile is the YAML shape of a declarative run description.
type taskFile struct {
	GitDirectory     string `yaml:"git_directory"`
	Instructions     string `yaml:"instructions"`
	Additional       string `yaml:"additional"`
	InstructionsFile string `yaml:"instructions_file"`
	Base             string `yaml:"base"`
}

// LoadTaskFile reads a YAML task description into a RunConfig. Decoding is
// strict: unknown keys are errors. git_directory and instructions are
// required. instructions_file, when set, names a file whose content is read
// into the config; a relative path is resolved against the task file's
// directory.
func LoadTaskFile(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("failed to read task file: %w", err)
	}

	var task taskFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&task); err != nil {
		return RunConfig{}, fmt.Errorf("failed to parse task file %s: %w", path, err)
	}

	if task.GitDirectory == "" {
		return RunConfig{}, fmt.Errorf("task file %s: git_directory is required", path)
	}
	if task.Instructions == "" {
		return RunConfig{}, fmt.Errorf("task file %s: instructions is required", path)
	}

	cfg := RunConfig{
		GitDirectory:           task.GitDirectory,
		Instructions:           task.Instructions,
		AdditionalInstructions: task.Additional,
		BaseBranch:             task.Base,
	}

	if task.InstructionsFile != "" {
		filePath := task.InstructionsFile
		if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(filepath.Dir(path), filePath)
		}
		content, err := os.ReadFile(filePath)
		if err != nil {
			return RunConfig{}, fmt.Errorf("failed to read instructions file %s: %w", filePath, err)
		}
		cfg.InstructionsFile = string(content)
	}

	return cfg, nil
}
