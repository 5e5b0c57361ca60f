package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/krishnaadithya/edqa.ai/internal/config"
	"github.com/krishnaadithya/edqa.ai/internal/jobs"
	"github.com/krishnaadithya/edqa.ai/internal/library"
	"github.com/krishnaadithya/edqa.ai/pkg/icron"
	"github.com/krishnaadithya/edqa.ai/pkg/log"
)

// Scheduler periodically scans the caption directory and queues a job for
// every caption file without a current quiz.
type Scheduler struct {
	scanner *library.Scanner
	queue   *jobs.Queue
	cron    *cron.Cron
	group   singleflight.Group

	mu       sync.Mutex
	ctx      context.Context
	cronExpr string
	entryID  cron.EntryID
	lastRun  time.Time
}

func NewScheduler(scanner *library.Scanner, queue *jobs.Queue, cronEngine *cron.Cron, cronExpr string) *Scheduler {
	return &Scheduler{
		scanner:  scanner,
		queue:    queue,
		cron:     cronEngine,
		cronExpr: cronExpr,
	}
}

// Schedule registers the scan with the cron engine.
func (s *Scheduler) Schedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanner.Dir() == "" {
		log.Info("CAPTION_DIR not set, caption scan is disabled")
		return nil
	}
	s.ctx = ctx
	return s.scheduleLocked(s.cronExpr)
}

func (s *Scheduler) scheduleLocked(expr string) error {
	id, err := s.cron.AddFunc(expr, func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			log.Error("Caption scan failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule caption scan %q: %w", expr, err)
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	s.entryID = id
	s.cronExpr = expr
	log.Info("Caption scan of %s scheduled with %q", s.scanner.Dir(), expr)
	return nil
}

// ApplyRuntimeSettings reschedules the scan when the cron expression changed.
func (s *Scheduler) ApplyRuntimeSettings(settings config.RuntimeSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.CronExpr == "" || settings.CronExpr == s.cronExpr {
		return nil
	}
	if s.entryID == 0 {
		s.cronExpr = settings.CronExpr
		return nil
	}
	return s.scheduleLocked(settings.CronExpr)
}

func (s *Scheduler) CronExpr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cronExpr
}

// Status describes the schedule for the API.
type Status struct {
	Enabled    bool               `json:"enabled"`
	CaptionDir string             `json:"caption_dir"`
	LastRun    time.Time          `json:"last_run"`
	Trigger    *icron.TriggerInfo `json:"trigger,omitempty"`
}

func (s *Scheduler) Status(now time.Time) (Status, error) {
	s.mu.Lock()
	status := Status{
		Enabled:    s.entryID != 0,
		CaptionDir: s.scanner.Dir(),
		LastRun:    s.lastRun,
	}
	expr := s.cronExpr
	s.mu.Unlock()

	info, err := icron.GetTriggerInfo(expr, now)
	if err != nil {
		return status, err
	}
	status.Trigger = info
	return status, nil
}

// RunOnce scans the caption directory and enqueues missing quizzes.
// Concurrent calls share one scan. It returns the number of new jobs.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	// The scan is shared with callers that join it, so it must outlive the
	// caller that started it.
	scanCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do("scan", func() (any, error) {
		runID := uuid.NewString()
		log.Info("Caption scan %s started in %s", runID, s.scanner.Dir())

		s.scanner.Invalidate()
		entries, err := s.scanner.Scan(scanCtx)
		if err != nil {
			return 0, err
		}

		created := 0
		for _, entry := range entries {
			if entry.HasQuiz {
				continue
			}
			if _, ok := s.EnqueueEntry(SourceCron, entry); ok {
				created++
			}
		}

		s.mu.Lock()
		s.lastRun = time.Now()
		s.mu.Unlock()

		log.Info("Caption scan %s found %d caption files, queued %d jobs", runID, len(entries), created)
		return created, nil
	})
	if err != nil {
		return 0, err
	}
	if shared {
		log.Debug("Caption scan joined an in-flight run")
	}
	return v.(int), nil
}

// EnqueueEntry queues a library caption file. The quiz is written next to it.
func (s *Scheduler) EnqueueEntry(source string, entry library.Entry) (*jobs.ProcessJob, bool) {
	req := EnqueueRequestFor(source, Request{CaptionFile: entry.CaptionPath})
	req.Payload.QuizFile = entry.QuizPath
	return s.queue.Enqueue(req)
}
