// Package corpus lists and reads the saved article files.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is an article file found in the data directory.
type File struct {
	Name string // File name relative to the data directory
	Path string // Path including the data directory
}

// Corpus is a flat directory of article files sharing one extension.
type Corpus struct {
	Dir string
	Ext string
}

// New creates a Corpus for dir and ext.
func New(dir, ext string) *Corpus {
	return &Corpus{Dir: dir, Ext: ext}
}

// Scan returns the regular files in the data directory with the corpus
// extension, sorted by name. Subdirectories are not visited.
func (c *Corpus) Scan(ctx context.Context) ([]File, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", c.Dir, err)
	}

	var files []File
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), c.Ext) {
			continue
		}
		files = append(files, File{
			Name: entry.Name(),
			Path: filepath.Join(c.Dir, entry.Name()),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Read returns the content of f and its SHA256 hex digest.
func Read(f File) (string, string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	sum := sha256.Sum256(data)
	return string(data), hex.EncodeToString(sum[:]), nil
}

// Title is the first non-empty line of an article file.
func Title(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
