// Package fileutil resolves unit-script file names against a directory's
// actual entries, case-insensitively, so a CLI invocation like
// "unitscript ./bots/Tower.us" finds "tower.us" on a case-sensitive file
// system.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FindFileCaseInsensitive looks for filename among the entries of dir,
// comparing names case-insensitively, and returns the on-disk path of the
// first match.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s)", filename, dir)
}
