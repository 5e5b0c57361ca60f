package jobs

import (
	"errors"
	"time"

	"github.com/krishnaadithya/edqa.ai/internal/quiz"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ErrSkipped is returned by an Executor that decided the job has nothing to do.
var ErrSkipped = errors.New("job skipped")

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

// JobPayload describes where the captions of a job come from. Exactly one of
// CaptionFile and Captions is expected to be set.
type JobPayload struct {
	VideoURL     string `json:"video_url,omitempty"`
	VideoID      string `json:"video_id,omitempty"`
	CaptionFile  string `json:"caption_file,omitempty"`
	Captions     string `json:"captions,omitempty"`
	QuizFile     string `json:"quiz_file,omitempty"`
	GradeLevel   int    `json:"grade_level"`
	NumQuestions int    `json:"num_questions"`
}

type ProcessJob struct {
	ID        string       `json:"id"`
	Source    string       `json:"source"`
	DedupeKey string       `json:"dedupe_key"`
	Payload   JobPayload   `json:"payload"`
	Status    Status       `json:"status"`
	Error     string       `json:"error,omitempty"`
	Result    *quiz.Result `json:"result,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Terminal reports whether the job will not change state again.
func (j *ProcessJob) Terminal() bool {
	return j.Status != StatusPending && j.Status != StatusRunning
}
