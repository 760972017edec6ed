// Package store persists uploaded chart images on local disk.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound reports that no stored chart matches the requested filename.
var ErrNotFound = errors.New("chart not found")

// Uploads is a flat directory of stored chart images.
type Uploads struct {
	dir string
}

// NewUploads creates the upload directory if needed and returns the store.
func NewUploads(dir string) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir %s: %w", dir, err)
	}
	return &Uploads{dir: dir}, nil
}

// SaveChart writes an uploaded image under a name derived from id, keeping
// the original file's extension. Returns the stored filename.
func (u *Uploads) SaveChart(id, originalName string, content []byte) (string, error) {
	ext := filepath.Ext(filepath.Base(originalName))
	if ext == "" {
		ext = ".png"
	}
	filename := "chart_" + id + ext
	if err := os.WriteFile(filepath.Join(u.dir, filename), content, 0o644); err != nil {
		return "", fmt.Errorf("writing chart %s: %w", filename, err)
	}
	return filename, nil
}

// Path resolves a stored filename to its on-disk path. Names that would
// escape the upload directory and names of missing files yield ErrNotFound.
func (u *Uploads) Path(filename string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return "", ErrNotFound
	}
	path := filepath.Join(u.dir, filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}
