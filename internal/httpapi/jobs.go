package httpapi

import (
	"net/http"
	"strings"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
	"github.com/krishnaadithya/edqa.ai/internal/service"
	"github.com/krishnaadithya/edqa.ai/internal/video"
)

type createJobResponse struct {
	Created bool `json:"created"`
	Job     any  `json:"job"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.jobSnapshot(r))
	case http.MethodPost:
		var req processRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Captions) == "" && strings.TrimSpace(req.CaptionFile) == "" {
			writeError(w, http.StatusBadRequest, "captions or caption_file is required")
			return
		}
		if req.VideoURL != "" && video.ExtractID(req.VideoURL) == "" {
			writeError(w, http.StatusBadRequest, "invalid video url")
			return
		}

		if req.Captions == "" {
			path, err := service.ResolveCaptionFile(s.captionDir(), req.CaptionFile)
			if err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}
			req.CaptionFile = path
		}

		job, created := s.queue.Enqueue(service.EnqueueRequestFor(service.SourceManual, req.toService()))
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, createJobResponse{Created: created, Job: job})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// captionDir is the only directory caption_file may point into. Without a
// library there is none.
func (s *Server) captionDir() string {
	if s.scanner == nil {
		return ""
	}
	return s.scanner.Dir()
}

// handleJobDetailRoutes serves /api/jobs/{id}, /api/jobs/{id}/key_segments
// and /api/jobs/{id}/segments.srt.
func (s *Server) handleJobDetailRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	job, ok := s.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch sub {
	case "":
		writeJSON(w, http.StatusOK, job)
	case "key_segments", "segments.srt":
		if s.keys == nil {
			writeError(w, http.StatusNotImplemented, "key segment store is not configured")
			return
		}
		keys, err := s.keys.LoadKeySegments(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if sub == "key_segments" {
			writeJSON(w, http.StatusOK, keys)
			return
		}
		segments := make([]caption.Segment, 0, len(keys))
		for _, k := range keys {
			segments = append(segments, k.Segment())
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(caption.Format(segments)))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}
