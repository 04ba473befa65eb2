package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CheckpointStore persists the high-water mark of the indexing pipeline: the
// instant up to which catalog changes have been embedded and upserted.
type CheckpointStore interface {
	// Load returns the last committed checkpoint. A missing checkpoint
	// means nothing has been indexed yet and reads as the Unix epoch.
	Load() (time.Time, error)

	// Commit advances the checkpoint. Commits never move the checkpoint
	// backwards.
	Commit(t time.Time) error
}

// FileCheckpoint stores the checkpoint as a single RFC3339 timestamp in a
// plaintext file, written atomically.
type FileCheckpoint struct {
	path string
}

var _ CheckpointStore = (*FileCheckpoint)(nil)

func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

func (c *FileCheckpoint) Load() (time.Time, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return time.Unix(0, 0).UTC(), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read checkpoint: %w", err)
	}

	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse checkpoint %s: %w", c.path, err)
	}
	return t.UTC(), nil
}

func (c *FileCheckpoint) Commit(t time.Time) error {
	current, err := c.Load()
	if err != nil {
		return err
	}
	if !t.After(current) {
		// Re-running over an already indexed window is legal and must not
		// rewind the checkpoint.
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	content := t.UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(tmpPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
