package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/atomicwriter"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/.cache/huggingface
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// CopyFile writes the contents of src to dst atomically: readers of dst see
// either the previous file or the complete copy.
func CopyFile(src, dst string, perm os.FileMode) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := atomicwriter.WriteFile(dst, b, perm); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// IsFile reports whether path exists and is not a directory.
func IsFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// SafeJoin joins rel onto root and rejects results that escape root.
func SafeJoin(root string, rel ...string) (string, error) {
	path := filepath.Join(append([]string{root}, rel...)...)
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(path)
	r, err := filepath.Rel(cleanRoot, cleanPath)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected: %s", path)
	}
	return cleanPath, nil
}
