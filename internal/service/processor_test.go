package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
	"github.com/krishnaadithya/edqa.ai/internal/config"
	"github.com/krishnaadithya/edqa.ai/internal/jobs"
	"github.com/krishnaadithya/edqa.ai/internal/persistence"
	"github.com/krishnaadithya/edqa.ai/internal/quiz"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
)

const lessonSRT = `1
00:00:01,000 --> 00:00:04,000
Welcome to class

2
00:00:04,000 --> 00:00:09,500
Plants use photosynthesis to make food
`

type fakeGenerator struct {
	mu        sync.Mutex
	segments  []caption.Segment
	grade, n  int
	identify  error
	calls     int
}

func (f *fakeGenerator) IdentifyKeySegments(_ context.Context, segments []caption.Segment) ([]segment.KeySegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.segments = segments
	if f.identify != nil {
		return nil, f.identify
	}
	return segment.Match("SEGMENT: photosynthesis\nKEY POINTS: food", segments), nil
}

func (f *fakeGenerator) GenerateQuiz(_ context.Context, keys []segment.KeySegment, grade, n int) ([]quiz.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grade, f.n = grade, n
	items := make([]quiz.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, quiz.Item{Timestamp: k.Start, Question: "What is " + k.Title + "?", Answer: k.Text})
	}
	return items, nil
}

type memoryStore struct {
	mu          sync.Mutex
	transcripts map[string]caption.Transcript
	keys        map[string][]segment.KeySegment
	puts        int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		transcripts: make(map[string]caption.Transcript),
		keys:        make(map[string][]segment.KeySegment),
	}
}

func (m *memoryStore) PutTranscript(_ context.Context, entry persistence.TranscriptCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.transcripts[entry.CacheKey] = entry.Transcript
	return nil
}

func (m *memoryStore) GetTranscript(_ context.Context, key string, _ time.Time) (caption.Transcript, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transcripts[key]
	return t, ok, nil
}

func (m *memoryStore) SaveKeySegments(_ context.Context, jobID string, keys []segment.KeySegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[jobID] = keys
	return nil
}

func testConfig() config.Config {
	return config.Config{
		LLM:  config.LLMConfig{APIKey: "k", APIURL: "https://example.test/v1", Model: "m", MaxTokens: 10, TopP: 1, Timeout: 5},
		Quiz: config.QuizConfig{GradeLevel: 2, NumQuestions: 3, MatchStrategy: "substring", Concurrency: 1},
	}
}

func newTestProcessor(t *testing.T, gen *fakeGenerator, opts ...ProcessorOption) *Processor {
	t.Helper()
	return newTestProcessorIn(t, "", gen, opts...)
}

// newTestProcessorIn builds a processor that accepts caption files under dir.
func newTestProcessorIn(t *testing.T, dir string, gen *fakeGenerator, opts ...ProcessorOption) *Processor {
	t.Helper()
	cfg := testConfig()
	cfg.Quiz.CaptionDir = dir
	opts = append([]ProcessorOption{WithGeneratorFactory(func(config.Config) (QuizGenerator, error) { return gen, nil })}, opts...)
	p, err := NewProcessor(cfg, opts...)
	require.NoError(t, err)
	return p
}

func TestProcessor_Process(t *testing.T) {
	gen := &fakeGenerator{}
	p := newTestProcessor(t, gen)

	result, err := p.Process(context.Background(), Request{
		VideoURL: "https://www.youtube.com/watch?v=D1Ymc311XS8",
		Captions: lessonSRT,
	})
	require.NoError(t, err)

	assert.Equal(t, "D1Ymc311XS8", result.VideoID)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, 4.0, result.Questions[0].Timestamp)
	assert.Equal(t, "What is photosynthesis?", result.Questions[0].Question)
	assert.Equal(t, 2, gen.grade)
	assert.Equal(t, 3, gen.n)
	require.Len(t, gen.segments, 2)
}

func TestProcessor_Process_Validation(t *testing.T) {
	dir := t.TempDir()
	p := newTestProcessorIn(t, dir, &fakeGenerator{})

	_, err := p.Process(context.Background(), Request{VideoURL: "https://example.com/x", Captions: lessonSRT})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrValidation))

	_, err = p.Process(context.Background(), Request{Captions: "  "})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrValidation))

	_, err = p.Process(context.Background(), Request{CaptionFile: filepath.Join(dir, "missing.srt")})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrFileNotFound))
}

func TestProcessor_Process_CaptionFileMustBeInCaptionDir(t *testing.T) {
	captionDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(captionDir, "lesson.srt"), []byte(lessonSRT), 0o644))
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("photosynthesis password=hunter2"), 0o644))

	gen := &fakeGenerator{}
	p := newTestProcessorIn(t, captionDir, gen)

	for _, path := range []string{
		outside,
		filepath.Join(captionDir, "..", filepath.Base(filepath.Dir(outside)), "secret.txt"),
		"../secret.txt",
		captionDir,
	} {
		_, err := p.Process(context.Background(), Request{CaptionFile: path})
		require.Error(t, err, path)
		assert.True(t, IsErrorType(err, ErrValidation), path)
		assert.NotContains(t, err.Error(), "hunter2")
	}
	assert.Equal(t, 0, gen.calls)

	result, err := p.Process(context.Background(), Request{CaptionFile: "lesson.srt"})
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, 1, gen.calls)
}

func TestProcessor_Process_CaptionFileRejectedWithoutCaptionDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lesson.srt")
	require.NoError(t, os.WriteFile(path, []byte(lessonSRT), 0o644))
	gen := &fakeGenerator{}
	p := newTestProcessor(t, gen)

	_, err := p.Process(context.Background(), Request{CaptionFile: path})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrValidation))
	assert.Equal(t, 0, gen.calls)

	_, err = p.Process(context.Background(), Request{Captions: lessonSRT, CaptionFile: path})
	require.NoError(t, err)
}

func TestResolveCaptionFile(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveCaptionFile(dir, "unit1/lesson.srt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "unit1", "lesson.srt"), got)

	got, err = ResolveCaptionFile(dir, filepath.Join(dir, "unit1", "..", "lesson.srt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lesson.srt"), got)

	_, err = ResolveCaptionFile(dir, "unit1/../../etc/passwd.srt")
	assert.True(t, IsErrorType(err, ErrValidation))
	_, err = ResolveCaptionFile("", "lesson.srt")
	assert.True(t, IsErrorType(err, ErrValidation))
}

func TestProcessor_Process_NoSegmentsSkipsModel(t *testing.T) {
	gen := &fakeGenerator{}
	p := newTestProcessor(t, gen)

	result, err := p.Process(context.Background(), Request{Captions: "1\n2\n"})
	require.NoError(t, err)
	assert.NotNil(t, result.Questions)
	assert.Empty(t, result.Questions)
	assert.Equal(t, 0, gen.calls)
}

func TestProcessor_Process_ModelErrorClassified(t *testing.T) {
	p := newTestProcessor(t, &fakeGenerator{identify: errors.New("bad reply")})

	_, err := p.Process(context.Background(), Request{Captions: lessonSRT})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrGeneration))
	assert.Contains(t, err.Error(), "bad reply")
}

func TestProcessor_Process_ExplicitGradeAndCount(t *testing.T) {
	gen := &fakeGenerator{}
	p := newTestProcessor(t, gen)

	_, err := p.Process(context.Background(), Request{Captions: lessonSRT, GradeLevel: 8, NumQuestions: 5})
	require.NoError(t, err)
	assert.Equal(t, 8, gen.grade)
	assert.Equal(t, 5, gen.n)
}

func TestProcessor_TranscriptCache(t *testing.T) {
	store := newMemoryStore()
	p := newTestProcessor(t, &fakeGenerator{}, WithStore(store))

	for range 2 {
		_, err := p.Process(context.Background(), Request{Captions: lessonSRT})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.puts)
	assert.Len(t, store.transcripts, 1)
}

func TestProcessor_Execute_WritesQuizFile(t *testing.T) {
	dir := t.TempDir()
	captionPath := filepath.Join(dir, "lesson.srt")
	require.NoError(t, os.WriteFile(captionPath, []byte(lessonSRT), 0o644))
	quizPath := filepath.Join(dir, "lesson.quiz.json")

	store := newMemoryStore()
	var written []string
	p := newTestProcessorIn(t, dir, &fakeGenerator{}, WithStore(store), WithQuizWrittenHook(func(path string) {
		written = append(written, path)
	}))

	job := &jobs.ProcessJob{ID: "job-3", Payload: jobs.JobPayload{CaptionFile: captionPath, QuizFile: quizPath}}
	result, err := p.Execute(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, []string{quizPath}, written)

	data, err := os.ReadFile(quizPath)
	require.NoError(t, err)
	var onDisk quiz.Result
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, *result, onDisk)

	require.Len(t, store.keys["job-3"], 1)
	assert.Equal(t, "photosynthesis", store.keys["job-3"][0].Title)

	_, err = p.Execute(context.Background(), job)
	assert.ErrorIs(t, err, jobs.ErrSkipped)
}

func TestProcessor_Execute_RecoversPanic(t *testing.T) {
	p, err := NewProcessor(testConfig(), WithGeneratorFactory(func(config.Config) (QuizGenerator, error) {
		return panicGenerator{}, nil
	}))
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), &jobs.ProcessJob{ID: "job-1", Payload: jobs.JobPayload{Captions: lessonSRT}})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrUnknown))
}

type panicGenerator struct{}

func (panicGenerator) IdentifyKeySegments(context.Context, []caption.Segment) ([]segment.KeySegment, error) {
	panic("boom")
}

func (panicGenerator) GenerateQuiz(context.Context, []segment.KeySegment, int, int) ([]quiz.Item, error) {
	return nil, nil
}

func TestProcessor_ApplyRuntimeSettings(t *testing.T) {
	var models []string
	p, err := NewProcessor(testConfig(), WithGeneratorFactory(func(cfg config.Config) (QuizGenerator, error) {
		models = append(models, cfg.LLM.Model)
		if cfg.LLM.Model == "broken" {
			return nil, errors.New("cannot build")
		}
		return &fakeGenerator{}, nil
	}))
	require.NoError(t, err)

	require.NoError(t, p.ApplyRuntimeSettings(config.RuntimeSettings{LLMModel: "next", GradeLevel: 6}))
	cfg, _ := p.snapshot()
	assert.Equal(t, "next", cfg.LLM.Model)
	assert.Equal(t, 6, cfg.Quiz.GradeLevel)

	require.Error(t, p.ApplyRuntimeSettings(config.RuntimeSettings{LLMModel: "broken"}))
	cfg, _ = p.snapshot()
	assert.Equal(t, "next", cfg.LLM.Model)
	assert.Equal(t, []string{"m", "next", "broken"}, models)
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(testConfig())
	require.NoError(t, err)
	assert.NotNil(t, gen)

	bad := testConfig()
	bad.LLM.APIKey = ""
	_, err = NewGenerator(bad)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrConfig))
}
