package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// FileBackend persists the record in a single JSON file on disk.
type FileBackend struct {
	path string
}

// NewFileBackend creates a JSON file backend.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the record from disk.
func (b *FileBackend) Load(context.Context) ([]byte, bool, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save writes the record and creates parent directories.
func (b *FileBackend) Save(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}

	tmpPath := b.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, b.path)
}
