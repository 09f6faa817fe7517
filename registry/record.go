package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhubert/dispatch-core/paths"
)

// recordPath returns the on-disk location of a session's record file.
func recordPath(id string) (string, error) {
	dir, err := paths.SessionsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, id+".json"), nil
}

// SaveRecord writes a session's full info to its record file wholesale.
// The sessions directory is created if needed.
func SaveRecord(info SessionInfo) error {
	path, err := recordPath(info.ID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}
	return nil
}

// LoadRecord reads a session's record file back verbatim.
// A missing file is not an error: it returns (nil, nil).
func LoadRecord(id string) (*SessionInfo, error) {
	path, err := recordPath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	var info SessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse session record %s: %w", path, err)
	}
	return &info, nil
}

// RemoveRecord deletes a session's record file. Removing a missing record
// is not an error.
func RemoveRecord(id string) error {
	path, err := recordPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session record: %w", err)
	}
	return nil
}

// ListRecords loads every persisted session record from the sessions
// directory. A missing directory yields an empty list.
func ListRecords() ([]SessionInfo, error) {
	dir, err := paths.SessionsDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var infos []SessionInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".json")]
		info, err := LoadRecord(id)
		if err != nil || info == nil {
			continue
		}
		infos = append(infos, *info)
	}
	return infos, nil
}
