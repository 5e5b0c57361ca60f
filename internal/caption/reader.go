package caption

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// ReadFile reads and leniently parses a caption file (.srt, .vtt or .txt).
func ReadFile(path string) (*Transcript, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("caption file does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to read caption file: %w", err)
	}

	transcript := ReadBytes(data, format)
	transcript.Path = path
	return transcript, nil
}

// ReadBytes parses caption content already in memory.
func ReadBytes(data []byte, format string) *Transcript {
	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	raw = strings.TrimPrefix(raw, "\ufeff")
	if format == "VTT" {
		raw = normalizeVTT(raw)
	}

	segments := Parse(raw)
	return &Transcript{
		Segments: segments,
		Language: DetectLanguage(segments),
		Format:   format,
	}
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		return "SRT", nil
	case ".vtt":
		return "VTT", nil
	case ".txt":
		return "TXT", nil
	default:
		return "", fmt.Errorf("unsupported caption format: %s", path)
	}
}

// normalizeVTT rewrites WebVTT cues into the SRT shape Parse expects: the
// header and NOTE blocks are dropped, cue settings after the end clock are
// removed, MM:SS.mmm clocks gain an hour component and every cue gets a
// numeric index line.
func normalizeVTT(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	skipping := false
	cue := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if i == 0 && strings.HasPrefix(trimmed, "WEBVTT") {
			skipping = true
			continue
		}
		if strings.HasPrefix(trimmed, "NOTE") || strings.HasPrefix(trimmed, "STYLE") {
			skipping = true
			continue
		}
		if skipping {
			if trimmed == "" {
				skipping = false
			}
			continue
		}
		if left, right, ok := strings.Cut(trimmed, timingSeparator); ok {
			// cue identifiers are optional in VTT; replace them with an index
			if n := len(out); n > 0 && strings.TrimSpace(out[n-1]) != "" &&
				(n == 1 || strings.TrimSpace(out[n-2]) == "") {
				out = out[:n-1]
			}
			cue++
			fields := strings.Fields(right)
			end := ""
			if len(fields) > 0 {
				end = fields[0]
			}
			out = append(out,
				strconv.Itoa(cue),
				padClock(strings.TrimSpace(left))+" "+timingSeparator+" "+padClock(end))
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func padClock(s string) string {
	if strings.Count(s, ":") == 1 {
		return "00:" + s
	}
	return s
}

// DetectLanguage returns the most common language among segment texts.
func DetectLanguage(segments []Segment) language.Tag {
	if len(segments) == 0 {
		return language.Und
	}

	counts := make(map[string]int)
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		counts[whatlanggo.DetectLang(seg.Text).Iso6391()]++
	}

	var top string
	var topCount int
	for lang, count := range counts {
		if count > topCount || (count == topCount && lang < top) {
			top = lang
			topCount = count
		}
	}
	if top == "" {
		return language.Und
	}

	tag, err := language.Parse(top)
	if err != nil {
		return language.Und
	}
	return tag
}
