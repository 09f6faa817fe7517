// Package config holds the small persisted configuration surface: the
// credentials file consumed by the publish pipeline and the app settings
// file. Both are JSON files under the config directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhubert/dispatch-core/paths"
)

// Credentials holds tokens read from credentials.json.
type Credentials struct {
	GitHubToken string `json:"github_token,omitempty"`
}

// LoadCredentials reads the credentials file. A missing file is not an
// error: it returns zero-value credentials.
func LoadCredentials() (Credentials, error) {
	path, err := paths.CredentialsFilePath()
	if err != nil {
		return Credentials{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	return creds, nil
}

// SaveCredentials writes the credentials file, creating the config
// directory if needed.
func SaveCredentials(creds Credentials) error {
	path, err := paths.CredentialsFilePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Settings holds the persisted application settings.
type Settings struct {
	DefaultBaseBranch string `json:"default_base_branch,omitempty"` // Base branch for PRs when a run doesn't specify one
	Debug             bool   `json:"debug,omitempty"`               // Enables debug-level logging

	mu       sync.RWMutex
	filePath string
}

// LoadSettings reads settings from disk, or returns defaults if the file
// doesn't exist.
func LoadSettings() (*Settings, error) {
	path, err := paths.SettingsFilePath()
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		DefaultBaseBranch: "main",
		filePath:          path,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if settings.DefaultBaseBranch == "" {
		settings.DefaultBaseBranch = "main"
	}
	return settings, nil
}

// Save writes the settings to disk wholesale.
func (s *Settings) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0644)
}

// SetFilePath overrides where the settings are saved. This is intended for
// testing only.
func (s *Settings) SetFilePath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filePath = path
}

// GetDefaultBaseBranch returns the configured base branch for PRs.
func (s *Settings) GetDefaultBaseBranch() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DefaultBaseBranch
}

// SetDefaultBaseBranch updates the configured base branch.
func (s *Settings) SetDefaultBaseBranch(branch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DefaultBaseBranch = branch
}
