package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext. ext may be compound, such
// as ".quiz.json"; a leading dot is added when missing.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	if lastDot := strings.LastIndex(filename, "."); lastDot > 0 {
		filename = filename[:lastDot]
	}
	return filepath.Join(dir, filename+ext)
}
