package caption

import (
	"errors"
	"strings"
	"unicode"
)

const timingSeparator = "-->"

// Parse turns a sequential caption transcript (index line, timing line, text
// lines, blank separators) into ordered segments. It never fails: malformed
// clocks become 0 and unexpected lines are treated as text.
func Parse(raw string) []Segment {
	segments, _ := parse(raw, false)
	return segments
}

// ParseStrict parses like Parse but stops at the first malformed clock and
// returns a *TimestampError for it.
func ParseStrict(raw string) ([]Segment, error) {
	return parse(raw, true)
}

// parseState is the accumulator folded over the lines of a transcript.
type parseState struct {
	current   Segment
	started   bool
	completed []Segment
}

func (s *parseState) flush() {
	if s.started {
		s.completed = append(s.completed, s.current)
	}
	s.current = Segment{}
	s.started = false
}

func parse(raw string, strict bool) ([]Segment, error) {
	state := parseState{completed: make([]Segment, 0)}
	if raw == "" {
		return state.completed, nil
	}

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			// block separator only
		case isIndexLine(line):
			state.flush()
		case strings.Contains(line, timingSeparator):
			left, right, _ := strings.Cut(line, timingSeparator)
			start, err := parseClock(left, i+1, strict)
			if err != nil {
				return nil, err
			}
			end, err := parseClock(right, i+1, strict)
			if err != nil {
				return nil, err
			}
			state.current.Start = start
			state.current.End = end
			state.started = true
		default:
			if state.current.Text != "" {
				state.current.Text += " " + line
			} else {
				state.current.Text = line
			}
			state.started = true
		}
	}
	state.flush()

	return state.completed, nil
}

func parseClock(s string, lineNo int, strict bool) (float64, error) {
	v, err := ParseTimestampStrict(strings.TrimSpace(s))
	if err == nil {
		return v, nil
	}
	if !strict {
		return 0, nil
	}
	var tsErr *TimestampError
	if errors.As(err, &tsErr) {
		tsErr.Line = lineNo
	}
	return 0, err
}

func isIndexLine(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// JoinText concatenates the text of all segments with single spaces.
func JoinText(segments []Segment) string {
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	return strings.Join(texts, " ")
}
