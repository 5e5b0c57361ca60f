package file

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindByExt walks dir and returns regular files whose extension matches one
// of exts, compared case-insensitively. Hidden directories are skipped.
func FindByExt(dir string, exts ...string) ([]string, error) {
	want := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		want[strings.ToLower(ext)] = struct{}{}
	}

	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := want[strings.ToLower(filepath.Ext(path))]; ok {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}
