package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
	"github.com/krishnaadithya/edqa.ai/internal/config"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
	"github.com/krishnaadithya/edqa.ai/internal/service"
	"github.com/krishnaadithya/edqa.ai/pkg/log"
)

// maxBodyBytes bounds request bodies; captions of long lectures stay well below.
const maxBodyBytes = 8 << 20

type processRequest struct {
	VideoURL     string `json:"video_url"`
	GradeLevel   int    `json:"grade_level"`
	NumQuestions int    `json:"num_questions"`
	Captions     string `json:"captions"`
	CaptionFile  string `json:"caption_file"`
}

func (r processRequest) toService() service.Request {
	return service.Request{
		VideoURL:     r.VideoURL,
		Captions:     r.Captions,
		CaptionFile:  r.CaptionFile,
		GradeLevel:   r.GradeLevel,
		NumQuestions: r.NumQuestions,
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req processRequest
	if !decodeBody(w, r, &req) {
		return
	}

	log.Info("[%s] Processing video %q", r.Header.Get(requestIDHeader), req.VideoURL)
	result, err := s.processor.Process(r.Context(), req.toService())
	if err != nil {
		log.Error("[%s] Process failed: %v", r.Header.Get(requestIDHeader), err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type parseRequest struct {
	Captions string `json:"captions"`
}

type parseErrorResponse struct {
	Error string `json:"error"`
	Line  int    `json:"line"`
	Value string `json:"value"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req parseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if !isTruthy(r.URL.Query().Get("strict")) {
		writeJSON(w, http.StatusOK, caption.Parse(req.Captions))
		return
	}

	segments, err := caption.ParseStrict(req.Captions)
	if err != nil {
		var tsErr *caption.TimestampError
		if errors.As(err, &tsErr) {
			writeJSON(w, http.StatusUnprocessableEntity, parseErrorResponse{
				Error: err.Error(),
				Line:  tsErr.Line,
				Value: tsErr.Value,
			})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, segments)
}

type matchRequest struct {
	Analysis string            `json:"analysis"`
	Segments []caption.Segment `json:"segments"`
	Captions string            `json:"captions"`
	Strategy string            `json:"strategy"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req matchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	strategy, err := segment.ParseStrategy(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	segments := req.Segments
	if len(segments) == 0 && req.Captions != "" {
		segments = caption.Parse(req.Captions)
	}
	matcher := segment.NewMatcher(segment.WithStrategy(strategy))
	writeJSON(w, http.StatusOK, matcher.Match(req.Analysis, segments))
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.scanner == nil {
		writeError(w, http.StatusNotImplemented, "caption library is not configured")
		return
	}
	entries, err := s.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.scheduler == nil {
		writeError(w, http.StatusNotImplemented, "scheduler is not configured")
		return
	}
	created, err := s.scheduler.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":      true,
		"created": created,
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.scheduler == nil {
		writeError(w, http.StatusNotImplemented, "scheduler is not configured")
		return
	}
	status, err := s.scheduler.Status(time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if !decodeBody(w, r, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch service.TypeOf(err) {
	case service.ErrValidation:
		return http.StatusBadRequest
	case service.ErrFileNotFound:
		return http.StatusNotFound
	case service.ErrParse:
		return http.StatusUnprocessableEntity
	case service.ErrAPI, service.ErrGeneration:
		return http.StatusBadGateway
	case service.ErrNetwork:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func isTruthy(raw string) bool {
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
