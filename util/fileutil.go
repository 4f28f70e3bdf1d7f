package util

import (
	"os"
	"path/filepath"
	"strings"
)

// FileExists returns true if the file at path exists.
// This returns false if the file exists but the user
// does not have permission to stat it.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExpandTilde expands the tilde in a file path to the current
// user's home directory.
func ExpandTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	separatorIndex := strings.Index(filePath, string(os.PathSeparator))
	if separatorIndex < 0 {
		return homeDir, nil
	}
	return filepath.Join(homeDir, filePath[separatorIndex:]), nil
}

// LooksSafeToDelete returns true if path looks like a path we can
// safely delete with a recursive remove. To guard against deleting
// system directories, the path must have a minimum length and a
// minimum number of path separators.
func LooksSafeToDelete(path string, minLength, minSeparators int) bool {
	separatorCount := strings.Count(path, string(os.PathSeparator))
	return len(path) >= minLength && separatorCount >= minSeparators
}
