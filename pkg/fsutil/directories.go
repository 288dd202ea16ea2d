// Package fsutil provides utility functions and constants for file system operations.
package fsutil

import (
	"os"
	"path/filepath"
)

// EnsureDir creates a directory and all necessary parents with DirModeDefault.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of a file path if it doesn't exist.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// FileExists returns true if a file or directory with the given path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
