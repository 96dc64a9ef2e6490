package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/imgharvest/internal/model"
)

// ErrNoSnapshot is returned by LoadSnapshot when no snapshot exists.
var ErrNoSnapshot = errors.New("no inventory snapshot")

// SaveSnapshot writes records to path as a JSON array.
func SaveSnapshot(path string, records []model.RemoteFileRecord) error {
	if records == nil {
		records = []model.RemoteFileRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode inventory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create inventory directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write inventory: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace inventory: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot or by older tools
// that stored creation dates as strings.
func LoadSnapshot(path string) ([]model.RemoteFileRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	var records []model.RemoteFileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse inventory %s: %w", path, err)
	}
	return records, nil
}
