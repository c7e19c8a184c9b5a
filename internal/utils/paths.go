package utils

import "path/filepath"

// ResolvePath resolves path relative to baseDir. Empty and absolute paths are
// returned unchanged.
func ResolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
