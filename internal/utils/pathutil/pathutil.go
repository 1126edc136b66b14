package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrUserHomeUnsupported = errors.New("expanding paths with ~username is not supported")

// ExpandPath expands the path using the user's home directory.
// If the path starts with "~", it is replaced with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}

	if path != "~" && !strings.HasPrefix(path, "~/") {
		return "", ErrUserHomeUnsupported
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	// Replace "~" with the home directory path
	return filepath.Join(homeDir, path[1:]), nil
}

// LastSegment returns the last slash separated segment of a hub identifier,
// e.g. "sample" for "org/sample".
func LastSegment(id string) string {
	id = strings.TrimRight(id, "/")
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		return id[idx+1:]
	}

	return id
}

// IsSymlink reports whether path itself (not its target) is a symbolic link.
func IsSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeSymlink != 0
}
