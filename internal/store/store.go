// Package store persists the meme collection as a single JSON snapshot.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meme-metadata/harvester/internal/meme"
)

// Store reads and writes the collection at a well-known path. Saves are
// atomic: the snapshot is written to a temp file and renamed onto the
// canonical path, so a concurrent reader sees either the old or the new
// collection, never a partial write.
type Store struct {
	path string
}

// New creates a store backed by the JSON file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the canonical collection path.
func (s *Store) Path() string {
	return s.path
}

// BackupPath returns the sibling backup path (memes.json -> memes.backup.json).
func (s *Store) BackupPath() string {
	ext := filepath.Ext(s.path)
	return strings.TrimSuffix(s.path, ext) + ".backup" + ext
}

// Load reads the full collection. A missing file is a first run and yields
// an empty collection; an unreadable or unparseable file is an error.
func (s *Store) Load() (meme.Collection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return meme.Collection{}, nil
		}
		return nil, fmt.Errorf("failed to read collection %s: %w", s.path, err)
	}

	var records meme.Collection
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse collection %s: %w", s.path, err)
	}
	if records == nil {
		records = meme.Collection{}
	}
	return records, nil
}

// Save writes the full collection, superseding the prior snapshot.
func (s *Store) Save(records meme.Collection) error {
	return atomicWriteJSON(s.path, records)
}

// BackupOnce writes a pristine copy next to the collection if no backup
// exists yet. It reports whether a backup was written.
func (s *Store) BackupOnce(records meme.Collection) (bool, error) {
	backupPath := s.BackupPath()
	if _, err := os.Stat(backupPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat backup %s: %w", backupPath, err)
	}

	slog.Info("Creating collection backup", "path", backupPath)
	if err := atomicWriteJSON(backupPath, records); err != nil {
		return false, err
	}
	return true, nil
}

func atomicWriteJSON(path string, records meme.Collection) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
