// Package state persists ledger snapshots to a local JSON file so a
// restarted process resumes with its positions, closed trades, and feed
// cursor intact.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/copytracker/internal/domain"
)

// FileStore writes snapshots with a temp-file rename so a crash mid-write
// never leaves a truncated state file behind.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path. Parent
// directories are created on the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save serializes the snapshot and atomically replaces the state file.
func (s *FileStore) Save(_ context.Context, snap domain.LedgerSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state: replace state file: %w", err)
	}
	return nil
}

// Load reads the last saved snapshot. A missing file is a clean first run,
// reported as ok=false with no error.
func (s *FileStore) Load(_ context.Context) (domain.LedgerSnapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.LedgerSnapshot{}, false, nil
		}
		return domain.LedgerSnapshot{}, false, fmt.Errorf("state: read state file: %w", err)
	}

	var snap domain.LedgerSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.LedgerSnapshot{}, false, fmt.Errorf("state: parse state file: %w", err)
	}
	return snap, true, nil
}

var _ domain.StateStore = (*FileStore)(nil)
