package segment

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
)

// Strategy decides whether, and how well, a segment matches a title.
type Strategy string

const (
	// StrategySubstring picks the first segment containing any title keyword
	// as a case-insensitive substring.
	StrategySubstring Strategy = "substring"
	// StrategyWholeWord is StrategySubstring with keywords required to sit on
	// word boundaries.
	StrategyWholeWord Strategy = "whole_word"
	// StrategyScored picks the segment with the most distinct keyword hits;
	// ties go to the earlier segment.
	StrategyScored Strategy = "scored"
)

// ParseStrategy validates a strategy name. The empty string selects the default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategySubstring:
		return StrategySubstring, nil
	case StrategyWholeWord, "wholeword", "word":
		return StrategyWholeWord, nil
	case StrategyScored, "score", "overlap":
		return StrategyScored, nil
	default:
		return "", fmt.Errorf("unknown match strategy: %q", s)
	}
}

// Matcher reconciles analysis blocks with caption segments.
type Matcher struct {
	strategy Strategy
}

type Option func(*Matcher)

func WithStrategy(strategy Strategy) Option {
	return func(m *Matcher) {
		m.strategy = strategy
	}
}

func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{strategy: StrategySubstring}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matcher) Strategy() Strategy {
	return m.strategy
}

// Match returns one KeySegment per analysis block that matches a segment, in
// block order. Blocks with no match are dropped.
func (m *Matcher) Match(analysis string, segments []caption.Segment) []KeySegment {
	ret := make([]KeySegment, 0)
	for _, block := range SplitBlocks(analysis) {
		idx := m.find(Keywords(block.Title), segments)
		if idx < 0 {
			continue
		}
		seg := segments[idx]
		ret = append(ret, KeySegment{
			Start:    seg.Start,
			End:      seg.End,
			Title:    block.Title,
			Text:     seg.Text,
			Analysis: block.Analysis,
		})
	}
	return ret
}

// Match reconciles with the default substring strategy.
func Match(analysis string, segments []caption.Segment) []KeySegment {
	return NewMatcher().Match(analysis, segments)
}

func (m *Matcher) find(keywords []string, segments []caption.Segment) int {
	if len(keywords) == 0 {
		return -1
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	switch m.strategy {
	case StrategyScored:
		best, bestScore := -1, 0
		for i, seg := range segments {
			if score := overlap(strings.ToLower(seg.Text), lowered); score > bestScore {
				best, bestScore = i, score
			}
		}
		return best
	case StrategyWholeWord:
		for i, seg := range segments {
			text := strings.ToLower(seg.Text)
			for _, kw := range lowered {
				if containsWord(text, kw) {
					return i
				}
			}
		}
		return -1
	default:
		for i, seg := range segments {
			text := strings.ToLower(seg.Text)
			for _, kw := range lowered {
				if strings.Contains(text, kw) {
					return i
				}
			}
		}
		return -1
	}
}

// SplitBlocks splits analysis text on Marker. Text before the first marker is
// preamble and is discarded.
func SplitBlocks(analysis string) []Block {
	parts := strings.Split(analysis, Marker)
	if len(parts) < 2 {
		return nil
	}

	blocks := make([]Block, 0, len(parts)-1)
	for _, part := range parts[1:] {
		trimmed := strings.TrimSpace(part)
		title, _, _ := strings.Cut(trimmed, "\n")
		blocks = append(blocks, Block{
			Title:    strings.TrimSpace(title),
			Analysis: trimmed,
		})
	}
	return blocks
}

// Keywords splits a title on whitespace.
func Keywords(title string) []string {
	return strings.Fields(title)
}

// overlap counts distinct keywords found in text as substrings.
func overlap(text string, keywords []string) int {
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		if _, ok := seen[kw]; ok {
			continue
		}
		if strings.Contains(text, kw) {
			seen[kw] = struct{}{}
		}
	}
	return len(seen)
}

// containsWord reports whether kw occurs in text with no letter or digit
// directly on either side.
func containsWord(text, kw string) bool {
	if kw == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(kw); {
		i := strings.Index(text[offset:], kw)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(kw)
		if isBoundary(text, start, true) && isBoundary(text, end, false) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func isBoundary(text string, pos int, before bool) bool {
	var r rune
	if before {
		if pos == 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(text[:pos])
	} else {
		if pos >= len(text) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(text[pos:])
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
