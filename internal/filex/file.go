// Package filex holds small filesystem helpers.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureParentDir creates the directory that will hold file, if needed.
// SQLite DSNs that are not plain paths (":memory:", "file:" URIs) are left
// alone.
func EnsureParentDir(file string) (string, error) {
	if file == "" || strings.HasPrefix(file, ":") || strings.HasPrefix(file, "file:") {
		return "", nil
	}

	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}
