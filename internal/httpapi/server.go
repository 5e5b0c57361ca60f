package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/krishnaadithya/edqa.ai/internal/config"
	"github.com/krishnaadithya/edqa.ai/internal/jobs"
	"github.com/krishnaadithya/edqa.ai/internal/library"
	"github.com/krishnaadithya/edqa.ai/internal/quiz"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
	"github.com/krishnaadithya/edqa.ai/internal/service"
)

type processor interface {
	Process(ctx context.Context, req service.Request) (*quiz.Result, error)
}

type keySegmentStore interface {
	LoadKeySegments(ctx context.Context, jobID string) ([]segment.KeySegment, error)
}

type scheduler interface {
	RunOnce(ctx context.Context) (int, error)
	Status(now time.Time) (service.Status, error)
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

const requestIDHeader = "X-Request-ID"

type Server struct {
	processor processor
	queue     *jobs.Queue
	scanner   *library.Scanner
	keys      keySegmentStore
	scheduler scheduler
	settings  runtimeSettingsStore
	apply     runtimeSettingsApplier

	uiEnabled   bool
	uiStaticDir string

	streamInterval time.Duration
	upgrader       websocket.Upgrader

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func WithLibrary(scanner *library.Scanner) Option {
	return func(s *Server) {
		s.scanner = scanner
	}
}

func WithKeySegmentStore(store keySegmentStore) Option {
	return func(s *Server) {
		s.keys = store
	}
}

func WithScheduler(sched scheduler) Option {
	return func(s *Server) {
		s.scheduler = sched
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

// WithStreamInterval sets how often job snapshots are pushed to SSE and
// websocket clients.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func NewServer(p processor, queue *jobs.Queue, opts ...Option) *Server {
	s := &Server{
		processor:      p,
		queue:          queue,
		uiEnabled:      false,
		streamInterval: time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/process", s.handleProcess)
	s.mux.HandleFunc("/api/parse", s.handleParse)
	s.mux.HandleFunc("/api/match", s.handleMatch)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/jobs/ws", s.handleJobSocket)
	s.mux.HandleFunc("/api/jobs/", s.handleJobDetailRoutes)
	s.mux.HandleFunc("/api/library", s.handleLibrary)
	s.mux.HandleFunc("/api/scan", s.handleScan)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/", s.handleStatic)
}

// withRequestID echoes the caller's X-Request-ID or assigns a new one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
