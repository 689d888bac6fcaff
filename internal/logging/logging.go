// Package logging selects the per-subsystem log file and builds the process slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Category names a subsystem whose records share one active log file.
type Category struct {
	Dir    string
	Prefix string
}

var (
	DataExtraction = Category{Dir: "DataExtraction", Prefix: "Data_extraction_"}
	Vector         = Category{Dir: "Vector", Prefix: "Vector_store_"}
	Chatbot        = Category{Dir: "Chatbot", Prefix: "Chatbot_"}
)

const timestampLayout = "20060102150405"

// Options configures Setup.
type Options struct {
	Root     string
	MaxSize  int64
	Level    slog.Level
	Format   string // "json" or "text"
	Stdout   io.Writer
	Now      func() time.Time
	Category Category
}

// Setup opens the active log file for opts.Category and returns a logger that
// writes to it and to stdout. The caller owns the returned closer.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	f, err := OpenFile(opts.Root, opts.Category, opts.MaxSize, now())
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = f
	if opts.Stdout != nil {
		w = io.MultiWriter(f, opts.Stdout)
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler).With("component", opts.Category.Dir), f, nil
}

// OpenFile returns the active log file for cat under root. The most recently
// modified file with the category prefix is reused while it is smaller than
// maxSize; otherwise a new timestamped file is created.
func OpenFile(root string, cat Category, maxSize int64, now time.Time) (*os.File, error) {
	dir := filepath.Join(root, cat.Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path, err := activeFile(dir, cat.Prefix, maxSize)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = filepath.Join(dir, cat.Prefix+now.Format(timestampLayout)+".log")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

// activeFile returns the newest reusable log file in dir, or "" when a new one is needed.
func activeFile(dir, prefix string, maxSize int64) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*.log"))
	if err != nil {
		return "", fmt.Errorf("failed to list log files: %w", err)
	}

	var latest string
	var latestInfo os.FileInfo
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if latestInfo == nil || info.ModTime().After(latestInfo.ModTime()) ||
			(info.ModTime().Equal(latestInfo.ModTime()) && m > latest) {
			latest, latestInfo = m, info
		}
	}

	if latestInfo == nil || (maxSize > 0 && latestInfo.Size() >= maxSize) {
		return "", nil
	}
	return latest, nil
}
