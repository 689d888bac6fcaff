package extractor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// SanitizeFilename replaces path separators, colons and spaces with underscores.
func SanitizeFilename(title string) string {
	return filenameReplacer.Replace(title)
}

// FileStore writes article files into one directory.
type FileStore struct {
	Dir string
	Ext string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir, ext string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{Dir: dir, Ext: ext}, nil
}

// Save writes content under the sanitized title unless a file with that name
// already exists. It returns the file name and whether it was written.
func (s *FileStore) Save(title, content string) (string, bool, error) {
	name := SanitizeFilename(title) + s.Ext
	path := filepath.Join(s.Dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return name, false, nil
	}
	if err != nil {
		return name, false, fmt.Errorf("failed to create %s: %w", name, err)
	}

	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return name, false, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return name, false, fmt.Errorf("failed to close %s: %w", name, err)
	}
	return name, true, nil
}
