package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindProjectRoot walks up from startDir looking for a directory that holds
// one of the marker files (go.mod when none are given) and returns its
// absolute path.
//
// Example:
//
//	root, err := FindProjectRoot("/srv/app/cmd/worker", ".credx", "go.mod")
//	if err != nil {
//	    // no marker found, use a relative path
//	}
func FindProjectRoot(startDir string, markers ...string) (string, error) {
	if len(markers) == 0 {
		markers = []string{"go.mod"}
	}

	absPath, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absPath
	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(currentDir, marker)); err == nil {
				return currentDir, nil
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", fmt.Errorf("none of %v found in any parent directory of %s", markers, absPath)
		}
		currentDir = parentDir
	}
}
