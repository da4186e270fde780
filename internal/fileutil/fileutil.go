// Package fileutil provides file and path helpers shared by the render
// pipeline, config loading and the HTTP surface.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrEmptyPath = errors.New("path cannot be empty")
	ErrEmptyData = errors.New("refusing to write empty file")
)

// WriteFileAtomic writes data to path through a temporary file in the same
// directory followed by a rename, so readers never observe a partial file.
// Empty data is rejected: every artifact the pipeline writes must be non-empty.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(data) == 0 {
		return ErrEmptyData
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// FileExists returns true if path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// NonEmptyFile returns true if path is a regular file with at least one byte.
func NonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// IsFilePath returns true if s looks like a file path rather than a name.
// Detects paths by the presence of path separators (/ or \).
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// IsURL returns true if s starts with http:// or https://.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
