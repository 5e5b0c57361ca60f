package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/krishnaadithya/edqa.ai/internal/jobs"
)

// jobSnapshot lists queued jobs, optionally narrowed by ?status=a,b.
func (s *Server) jobSnapshot(r *http.Request) []*jobs.ProcessJob {
	all := s.queue.List()
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return all
	}

	want := make(map[jobs.Status]struct{})
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			want[jobs.Status(strings.ToLower(part))] = struct{}{}
		}
	}
	out := make([]*jobs.ProcessJob, 0, len(all))
	for _, job := range all {
		if _, ok := want[job.Status]; ok {
			out = append(out, job)
		}
	}
	return out
}

// handleJobStream sends a "jobs" event with the job list on every tick.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var last []byte
	send := func() bool {
		payload, err := json.Marshal(s.jobSnapshot(r))
		if err != nil {
			return false
		}
		if last != nil && string(payload) == string(last) {
			// unchanged: comment line keeps proxies from closing the stream
			_, err = fmt.Fprint(w, ": keep-alive\n\n")
		} else {
			_, err = fmt.Fprintf(w, "event: jobs\ndata: %s\n\n", payload)
			last = payload
		}
		if err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
