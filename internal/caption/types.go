package caption

import "golang.org/x/text/language"

// Segment is one caption block: a time range in seconds and its text.
// End >= Start is expected but not enforced.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns End-Start, or 0 for inverted ranges.
func (s Segment) Duration() float64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Transcript is a parsed caption file.
type Transcript struct {
	Segments []Segment   `json:"segments"`
	Language language.Tag `json:"language"`
	Format   string       `json:"format"` // SRT, VTT or TXT
	Path     string       `json:"path,omitempty"`
}

// FullText joins all segment texts with a single space.
func (t Transcript) FullText() string {
	return JoinText(t.Segments)
}
