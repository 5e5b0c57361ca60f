package library

import "time"

// QuizSuffix replaces the caption extension for generated quiz files.
const QuizSuffix = ".quiz.json"

// Entry is one caption file found in the caption directory.
type Entry struct {
	Name        string    `json:"name"`
	CaptionPath string    `json:"caption_path"`
	Format      string    `json:"format"`
	QuizPath    string    `json:"quiz_path"`
	// HasQuiz is false when the quiz is missing or older than the captions.
	HasQuiz     bool      `json:"has_quiz"`
	ModTime     time.Time `json:"mod_time"`
}
