package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/krishnaadithya/edqa.ai/internal/assistant"
	"github.com/krishnaadithya/edqa.ai/internal/caption"
	"github.com/krishnaadithya/edqa.ai/internal/config"
	"github.com/krishnaadithya/edqa.ai/internal/jobs"
	"github.com/krishnaadithya/edqa.ai/internal/llm"
	"github.com/krishnaadithya/edqa.ai/internal/persistence"
	"github.com/krishnaadithya/edqa.ai/internal/quiz"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
	"github.com/krishnaadithya/edqa.ai/internal/video"
	"github.com/krishnaadithya/edqa.ai/pkg/log"
)

// GeneratorFactory builds the quiz generator for a configuration.
type GeneratorFactory func(cfg config.Config) (QuizGenerator, error)

// NewGenerator wires an LLM client into an assistant using the configured
// match strategy and concurrency.
func NewGenerator(cfg config.Config) (QuizGenerator, error) {
	client, err := llm.NewClient(cfg.LLMClientConfig())
	if err != nil {
		return nil, WrapError(err, ErrConfig, "failed to create LLM client")
	}
	return assistant.New(
		client,
		assistant.WithMatcher(segment.NewMatcher(segment.WithStrategy(cfg.MatchStrategy()))),
		assistant.WithConcurrency(cfg.Quiz.Concurrency),
	)
}

type processorOptions struct {
	store   Store
	factory GeneratorFactory
	written func(path string)
}

type ProcessorOption func(*processorOptions)

func WithStore(store Store) ProcessorOption {
	return func(o *processorOptions) {
		o.store = store
	}
}

func WithGeneratorFactory(factory GeneratorFactory) ProcessorOption {
	return func(o *processorOptions) {
		o.factory = factory
	}
}

// WithQuizWrittenHook is called after a quiz file was written for a job.
func WithQuizWrittenHook(fn func(path string)) ProcessorOption {
	return func(o *processorOptions) {
		o.written = fn
	}
}

// Processor turns captions into a quiz: parse, find key segments, generate
// questions per key segment.
type Processor struct {
	store   Store
	factory GeneratorFactory
	written func(path string)

	mu  sync.RWMutex
	cfg config.Config
	gen QuizGenerator
}

func NewProcessor(cfg config.Config, opts ...ProcessorOption) (*Processor, error) {
	options := processorOptions{factory: NewGenerator}
	for _, opt := range opts {
		opt(&options)
	}

	gen, err := options.factory(cfg)
	if err != nil {
		return nil, err
	}
	return &Processor{
		store:   options.store,
		factory: options.factory,
		written: options.written,
		cfg:     cfg,
		gen:     gen,
	}, nil
}

// ApplyRuntimeSettings rebuilds the generator with the new model settings.
// The previous generator stays in place when the rebuild fails.
func (p *Processor) ApplyRuntimeSettings(settings config.RuntimeSettings) error {
	p.mu.RLock()
	next := p.cfg
	p.mu.RUnlock()

	config.WithRuntimeSettings(settings)(&next)
	gen, err := p.factory(next)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = next
	p.gen = gen
	p.mu.Unlock()
	log.Info("Processor now uses model %s with %s matching", next.LLM.Model, next.Quiz.MatchStrategy)
	return nil
}

func (p *Processor) snapshot() (config.Config, QuizGenerator) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, p.gen
}

// Process runs a request synchronously.
func (p *Processor) Process(ctx context.Context, req Request) (*quiz.Result, error) {
	return p.process(ctx, "", req)
}

// Execute adapts Process to the job queue. Jobs carrying a quiz file path
// write their result there and are skipped when the file is already current.
func (p *Processor) Execute(ctx context.Context, job *jobs.ProcessJob) (result *quiz.Result, err error) {
	if job.Payload.QuizFile != "" && quizUpToDate(job.Payload.QuizFile, job.Payload.CaptionFile) {
		log.Info("Job %s: quiz %s is up to date", job.ID, job.Payload.QuizFile)
		return nil, jobs.ErrSkipped
	}

	result, err = p.processRecovering(ctx, job.ID, requestFromPayload(job.Payload))
	if err != nil {
		return nil, err
	}

	if job.Payload.QuizFile != "" {
		if err := writeQuizFile(job.Payload.QuizFile, result); err != nil {
			return nil, WrapError(err, ErrFileWrite, "failed to write quiz file").
				With("path", job.Payload.QuizFile)
		}
		log.Info("Job %s: wrote %d questions to %s", job.ID, len(result.Questions), job.Payload.QuizFile)
		if p.written != nil {
			p.written(job.Payload.QuizFile)
		}
	}
	return result, nil
}

// processRecovering turns a panic in a worker into an ErrUnknown job failure.
func (p *Processor) processRecovering(ctx context.Context, jobID string, req Request) (result *quiz.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, NewError(ErrUnknown, fmt.Sprintf("panic while processing: %v", r))
		}
	}()
	return p.process(ctx, jobID, req)
}

func (p *Processor) process(ctx context.Context, jobID string, req Request) (*quiz.Result, error) {
	cfg, gen := p.snapshot()

	videoID := video.ExtractID(req.VideoURL)
	if req.VideoURL != "" && videoID == "" {
		return nil, NewError(ErrValidation, "invalid YouTube URL").With("video_url", req.VideoURL)
	}
	if strings.TrimSpace(req.Captions) == "" && req.CaptionFile == "" {
		return nil, NewError(ErrValidation, "captions or caption_file is required")
	}
	if req.Captions == "" {
		path, err := ResolveCaptionFile(cfg.Quiz.CaptionDir, req.CaptionFile)
		if err != nil {
			return nil, err
		}
		req.CaptionFile = path
	}
	grade := req.GradeLevel
	if grade <= 0 {
		grade = cfg.Quiz.GradeLevel
	}
	n := req.NumQuestions
	if n <= 0 {
		n = cfg.Quiz.NumQuestions
	}

	transcript, err := p.loadTranscript(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &quiz.Result{VideoID: videoID, Questions: []quiz.Item{}}
	if len(transcript.Segments) == 0 {
		log.Warn("No caption segments found, returning an empty quiz")
		return result, nil
	}

	keys, err := gen.IdentifyKeySegments(ctx, transcript.Segments)
	if err != nil {
		return nil, classifyModelError(err, "failed to identify key segments")
	}
	log.Info("Identified %d key segments from %d caption segments", len(keys), len(transcript.Segments))

	if jobID != "" && p.store != nil {
		if err := p.store.SaveKeySegments(ctx, jobID, keys); err != nil {
			log.Error("Failed to save key segments for job %s: %v", jobID, err)
		}
	}

	items, err := gen.GenerateQuiz(ctx, keys, grade, n)
	if err != nil {
		return nil, classifyModelError(err, "failed to generate questions")
	}
	result.Questions = items
	return result, nil
}

func (p *Processor) loadTranscript(ctx context.Context, req Request) (caption.Transcript, error) {
	key, path := "", ""
	if req.Captions != "" {
		key = "text|" + contentHash(req.Captions)
	} else {
		path = req.CaptionFile
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return caption.Transcript{}, WrapError(err, ErrFileNotFound, "caption file does not exist").With("path", path)
			}
			return caption.Transcript{}, WrapError(err, ErrFileRead, "failed to stat caption file").With("path", path)
		}
		key = fmt.Sprintf("file|%s|%d", filepath.Clean(path), info.ModTime().UnixNano())
	}

	if p.store != nil {
		cached, ok, err := p.store.GetTranscript(ctx, key, time.Now())
		if err != nil {
			log.Warn("Transcript cache lookup failed: %v", err)
		} else if ok {
			log.Debug("Transcript cache hit for %s", key)
			return cached, nil
		}
	}

	var transcript *caption.Transcript
	if path == "" {
		format := "SRT"
		if strings.HasPrefix(strings.TrimPrefix(strings.TrimSpace(req.Captions), "\ufeff"), "WEBVTT") {
			format = "VTT"
		}
		transcript = caption.ReadBytes([]byte(req.Captions), format)
	} else {
		var err error
		transcript, err = caption.ReadFile(path)
		if err != nil {
			return caption.Transcript{}, WrapError(err, ErrParse, "failed to read caption file").With("path", path)
		}
	}

	if p.store != nil {
		if err := p.store.PutTranscript(ctx, persistence.TranscriptCacheEntry{
			CacheKey:   key,
			SourcePath: path,
			Transcript: *transcript,
		}); err != nil {
			log.Warn("Failed to cache transcript: %v", err)
		}
	}
	return *transcript, nil
}

func classifyModelError(err error, message string) *EdQAError {
	if code := llm.StatusCode(err); code != 0 {
		return WrapError(err, ErrAPI, message).With("status", code)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return WrapError(err, ErrNetwork, message)
	}
	return WrapError(err, ErrGeneration, message)
}

func quizUpToDate(quizPath, captionPath string) bool {
	quizInfo, err := os.Stat(quizPath)
	if err != nil {
		return false
	}
	if captionPath == "" {
		return true
	}
	captionInfo, err := os.Stat(captionPath)
	if err != nil {
		return false
	}
	return !quizInfo.ModTime().Before(captionInfo.ModTime())
}

func writeQuizFile(path string, result *quiz.Result) error {
	content, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
