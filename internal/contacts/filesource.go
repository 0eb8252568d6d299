package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource reads identities from a JSON contacts export on disk. It is the
// concrete stand-in for the platform identity service: access is granted
// exactly when the export file is readable.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the given export path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// AccessStatus reports Granted when the export exists, Denied when it is
// known absent and Undetermined when the check itself fails.
func (s *FileSource) AccessStatus() AccessStatus {
	if s.path == "" {
		return AccessDenied
	}
	_, err := os.Stat(s.path)
	if err == nil {
		return AccessGranted
	}
	if os.IsNotExist(err) {
		return AccessDenied
	}
	return AccessUndetermined
}

// RequestAccess re-checks the export, so a file that appears after startup
// flips the status on the next load.
func (s *FileSource) RequestAccess(_ context.Context) (bool, error) {
	return s.AccessStatus() == AccessGranted, nil
}

// Identities reads and decodes the export.
func (s *FileSource) Identities(_ context.Context) ([]Identity, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read contacts export: %w", err)
	}
	var ids []Identity
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode contacts export: %w", err)
	}
	return ids, nil
}
