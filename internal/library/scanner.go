package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/krishnaadithya/edqa.ai/pkg/file"
)

var captionExts = []string{".srt", ".vtt"}

type scannerOptions struct {
	cacheTTL time.Duration
}

type Option func(*scannerOptions)

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *scannerOptions) {
		o.cacheTTL = ttl
	}
}

type scanCache struct {
	version uint64
	scanned time.Time
	entries []Entry
}

// Scanner lists caption files under a directory and whether a quiz has been
// generated for each of them.
type Scanner struct {
	dir string

	mu       sync.RWMutex
	cacheTTL time.Duration
	cache    *scanCache
	version  uint64
}

func NewScanner(dir string, opts ...Option) *Scanner {
	options := scannerOptions{cacheTTL: 5 * time.Second}
	for _, opt := range opts {
		opt(&options)
	}
	// Entries carry paths under dir; keep them absolute so callers can
	// check containment regardless of the working directory.
	if dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	return &Scanner{
		dir:      dir,
		cacheTTL: options.cacheTTL,
	}
}

func (s *Scanner) Dir() string {
	return s.dir
}

// Invalidate drops the cached listing, e.g. after a quiz file was written.
func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.version++
	s.mu.Unlock()
}

// Scan returns caption entries sorted by path. An empty or missing
// directory yields no entries.
func (s *Scanner) Scan(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	cache := s.cache
	version := s.version
	ttl := s.cacheTTL
	s.mu.RUnlock()

	if cache != nil && cache.version == version && ttl > 0 && time.Since(cache.scanned) < ttl {
		return cloneEntries(cache.entries), nil
	}

	entries, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.version == version {
		s.cache = &scanCache{version: version, scanned: time.Now(), entries: entries}
	}
	s.mu.Unlock()
	return cloneEntries(entries), nil
}

func (s *Scanner) scan(ctx context.Context) ([]Entry, error) {
	if strings.TrimSpace(s.dir) == "" {
		return []Entry{}, nil
	}
	paths, err := file.FindByExt(s.dir, captionExts...)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, err
	}
	sort.Strings(paths)

	entries := make([]Entry, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		entries = append(entries, newEntry(path, info.ModTime()))
	}
	return entries, nil
}

func newEntry(path string, modTime time.Time) Entry {
	ext := filepath.Ext(path)
	quizPath := QuizPathFor(path)

	hasQuiz := false
	if info, err := os.Stat(quizPath); err == nil && !info.IsDir() {
		hasQuiz = !info.ModTime().Before(modTime)
	}

	return Entry{
		Name:        strings.TrimSuffix(filepath.Base(path), ext),
		CaptionPath: path,
		Format:      strings.ToLower(strings.TrimPrefix(ext, ".")),
		QuizPath:    quizPath,
		HasQuiz:     hasQuiz,
		ModTime:     modTime,
	}
}

// QuizPathFor returns where the quiz for a caption file is written.
func QuizPathFor(captionPath string) string {
	return file.ReplaceExt(captionPath, QuizSuffix)
}

func cloneEntries(in []Entry) []Entry {
	out := make([]Entry, len(in))
	copy(out, in)
	return out
}
