package util

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ScratchDir creates a fresh temporary directory under dir (os.TempDir when empty)
func ScratchDir(dir, pattern string) (string, error) {
	if dir != "" {
		if err := EnsureDir(dir); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(dir, pattern)
}

// CleanupFiles removes multiple files, ignoring errors
func CleanupFiles(paths ...string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}

// ReplaceExtension swaps the extension of path for ext (which includes the dot)
func ReplaceExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
