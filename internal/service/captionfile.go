package service

import (
	"path/filepath"
	"strings"
)

// ResolveCaptionFile maps a requested caption file onto the caption
// directory. Relative paths are taken relative to dir. Paths that leave dir,
// and any path when dir is empty, are rejected with ErrValidation.
func ResolveCaptionFile(dir, path string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", NewError(ErrValidation, "caption_file is not accepted: CAPTION_DIR is not set")
	}
	if strings.TrimSpace(path) == "" {
		return "", NewError(ErrValidation, "caption_file is empty")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", WrapError(err, ErrConfig, "invalid CAPTION_DIR")
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NewError(ErrValidation, "caption_file must be inside CAPTION_DIR")
	}
	return target, nil
}
