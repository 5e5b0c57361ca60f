package quiz

import (
	"fmt"
	"math"
	"strings"
)

// Item is one generated question anchored to a video offset in seconds.
type Item struct {
	Timestamp float64 `json:"timestamp"`
	Question  string  `json:"question"`
	Answer    string  `json:"answer"`
}

// Result is the response for one processed video.
type Result struct {
	VideoID   string `json:"video_id"`
	Questions []Item `json:"questions"`
}

var answerMarkers = []string{"\nAnswer: ", "\nA: "}

// ParseQuestions extracts question/answer pairs from model output. Pairs are
// separated by blank lines; inside a pair the answer starts on a line
// beginning with "Answer: " (or "A: "). Chunks without an answer are skipped.
func ParseQuestions(raw string, timestamp float64) []Item {
	items := make([]Item, 0)
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	for _, chunk := range strings.Split(raw, "\n\n") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		question, answer, ok := splitAnswer(chunk)
		if !ok {
			continue
		}
		question = strings.ReplaceAll(question, "Question: ", "")
		question = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(question), "Q: "))
		items = append(items, Item{
			Timestamp: timestamp,
			Question:  question,
			Answer:    strings.TrimSpace(answer),
		})
	}
	return items
}

// splitAnswer requires exactly one answer marker in the chunk.
func splitAnswer(chunk string) (string, string, bool) {
	for _, marker := range answerMarkers {
		parts := strings.Split(chunk, marker)
		if len(parts) == 2 {
			return parts[0], parts[1], true
		}
		if len(parts) > 2 {
			return "", "", false
		}
	}
	return "", "", false
}

// FormatClock renders seconds as M:SS, or H:MM:SS past the hour.
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
