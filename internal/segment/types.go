package segment

import "github.com/krishnaadithya/edqa.ai/internal/caption"

// Marker introduces each block in the model's analysis text.
const Marker = "SEGMENT:"

// Block is one marker-delimited chunk of analysis. Title is its first line,
// Analysis the whole trimmed chunk including the title.
type Block struct {
	Title    string
	Analysis string
}

// KeySegment is a caption segment paired with the analysis block it matched.
type KeySegment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Analysis string  `json:"analysis"`
}

// Segment returns the caption part of the key segment.
func (k KeySegment) Segment() caption.Segment {
	return caption.Segment{Start: k.Start, End: k.End, Text: k.Text}
}

// Reconciler maps analysis output back onto timestamped segments.
type Reconciler interface {
	Match(analysis string, segments []caption.Segment) []KeySegment
}
