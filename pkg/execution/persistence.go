package execution

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PositionFile 持仓快照文件结构
type PositionFile struct {
	SavedAt   time.Time               `json:"saved_at"`
	Positions map[string]PositionView `json:"positions"` // instrument -> position
}

// SavePositionFile writes all tracked positions to <dir>/positions.json.
// Called on shutdown so the next session starts from known state until the
// first reconciliation pass confirms it.
func SavePositionFile(dir string, positions map[string]PositionView) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create position data directory: %w", err)
	}

	file := PositionFile{
		SavedAt:   time.Now(),
		Positions: positions,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal position file: %w", err)
	}

	path := filepath.Join(dir, "positions.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write position file: %w", err)
	}
	return nil
}

// LoadPositionFile reads a saved position file. A missing file returns
// (nil, nil), it is not an error.
func LoadPositionFile(dir string) (*PositionFile, error) {
	path := filepath.Join(dir, "positions.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read position file: %w", err)
	}

	var file PositionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position file: %w", err)
	}
	return &file, nil
}
