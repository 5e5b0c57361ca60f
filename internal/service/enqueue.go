package service

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/krishnaadithya/edqa.ai/internal/jobs"
	"github.com/krishnaadithya/edqa.ai/internal/video"
)

const (
	SourceManual = "manual"
	SourceCron   = "cron"
)

// EnqueueRequestFor builds the queue request for req. Manual and scheduled
// requests for the same captions share a dedupe key.
func EnqueueRequestFor(source string, req Request) jobs.EnqueueRequest {
	return jobs.EnqueueRequest{
		Source:    source,
		DedupeKey: DedupeKey(req),
		Payload: jobs.JobPayload{
			VideoURL:     req.VideoURL,
			VideoID:      video.ExtractID(req.VideoURL),
			CaptionFile:  req.CaptionFile,
			Captions:     req.Captions,
			GradeLevel:   req.GradeLevel,
			NumQuestions: req.NumQuestions,
		},
	}
}

// DedupeKey identifies the captions of a request: inline text by content
// hash, files by absolute path.
func DedupeKey(req Request) string {
	if req.Captions != "" {
		return "text|" + contentHash(req.Captions)
	}
	if req.CaptionFile != "" {
		if abs, err := filepath.Abs(req.CaptionFile); err == nil {
			return "file|" + abs
		}
		return "file|" + filepath.Clean(req.CaptionFile)
	}
	return ""
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func requestFromPayload(p jobs.JobPayload) Request {
	return Request{
		VideoURL:     p.VideoURL,
		Captions:     p.Captions,
		CaptionFile:  p.CaptionFile,
		GradeLevel:   p.GradeLevel,
		NumQuestions: p.NumQuestions,
	}
}
