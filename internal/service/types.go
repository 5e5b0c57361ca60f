package service

import (
	"context"
	"time"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
	"github.com/krishnaadithya/edqa.ai/internal/persistence"
	"github.com/krishnaadithya/edqa.ai/internal/quiz"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
)

// Request asks for a quiz over one set of captions. Captions holds raw SRT
// text; CaptionFile points at a caption file on disk. Captions wins when both
// are set. Zero GradeLevel or NumQuestions falls back to the configured default.
type Request struct {
	VideoURL     string `json:"video_url"`
	Captions     string `json:"captions,omitempty"`
	CaptionFile  string `json:"caption_file,omitempty"`
	GradeLevel   int    `json:"grade_level"`
	NumQuestions int    `json:"num_questions"`
}

// QuizGenerator is the model-backed half of processing.
type QuizGenerator interface {
	IdentifyKeySegments(ctx context.Context, segments []caption.Segment) ([]segment.KeySegment, error)
	GenerateQuiz(ctx context.Context, keys []segment.KeySegment, grade, n int) ([]quiz.Item, error)
}

// Store caches transcripts and keeps the key segments of each job.
type Store interface {
	PutTranscript(ctx context.Context, entry persistence.TranscriptCacheEntry) error
	GetTranscript(ctx context.Context, cacheKey string, now time.Time) (caption.Transcript, bool, error)
	SaveKeySegments(ctx context.Context, jobID string, keys []segment.KeySegment) error
}
