package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishnaadithya/edqa.ai/internal/caption"
	"github.com/krishnaadithya/edqa.ai/internal/config"
	"github.com/krishnaadithya/edqa.ai/internal/jobs"
	"github.com/krishnaadithya/edqa.ai/internal/library"
	"github.com/krishnaadithya/edqa.ai/internal/quiz"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
	"github.com/krishnaadithya/edqa.ai/internal/service"
)

const sampleSRT = "1\n00:00:01,000 --> 00:00:04,000\nPlants make food from sunlight.\n\n" +
	"2\n00:00:05,000 --> 00:00:09,000\nThis is called photosynthesis.\n"

type fakeProcessor struct {
	got    service.Request
	result *quiz.Result
	err    error
}

func (f *fakeProcessor) Process(_ context.Context, req service.Request) (*quiz.Result, error) {
	f.got = req
	return f.result, f.err
}

type fakeSettingsStore struct {
	current   config.RuntimeSettings
	updateErr error
}

func (f *fakeSettingsStore) GetRuntimeSettings() (config.RuntimeSettings, error) {
	return f.current, nil
}

func (f *fakeSettingsStore) UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error) {
	if f.updateErr != nil {
		return config.RuntimeSettings{}, f.updateErr
	}
	f.current = next
	return f.current, nil
}

type fakeKeyStore struct {
	keys map[string][]segment.KeySegment
}

func (f *fakeKeyStore) LoadKeySegments(_ context.Context, jobID string) ([]segment.KeySegment, error) {
	return f.keys[jobID], nil
}

type fakeScheduler struct {
	created int
	err     error
	status  service.Status
}

func (f *fakeScheduler) RunOnce(context.Context) (int, error) {
	return f.created, f.err
}

func (f *fakeScheduler) Status(time.Time) (service.Status, error) {
	return f.status, nil
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Process(t *testing.T) {
	p := &fakeProcessor{result: &quiz.Result{
		VideoID:   "D1Ymc311XS8",
		Questions: []quiz.Item{{Timestamp: 1, Question: "What?", Answer: "Food."}},
	}}
	srv := NewServer(p, jobs.NewQueue(1, nil))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/process", map[string]any{
		"video_url":     "https://www.youtube.com/watch?v=D1Ymc311XS8",
		"grade_level":   4,
		"num_questions": 2,
		"captions":      sampleSRT,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var got quiz.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *p.result, got)
	assert.Equal(t, 4, p.got.GradeLevel)
	assert.Equal(t, 2, p.got.NumQuestions)
	assert.Equal(t, sampleSRT, p.got.Captions)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestServer_Process_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: service.NewError(service.ErrValidation, "bad url"), want: http.StatusBadRequest},
		{name: "missing file", err: service.NewError(service.ErrFileNotFound, "nope"), want: http.StatusNotFound},
		{name: "model", err: service.NewError(service.ErrAPI, "rate limited"), want: http.StatusBadGateway},
		{name: "generation", err: service.NewError(service.ErrGeneration, "empty"), want: http.StatusBadGateway},
		{name: "network", err: service.NewError(service.ErrNetwork, "timeout"), want: http.StatusGatewayTimeout},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeProcessor{err: tt.err}, jobs.NewQueue(1, nil))
			rec := doJSON(t, srv.Handler(), http.MethodPost, "/process", map[string]any{"captions": "x"})
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestServer_Process_RejectsBadMethodAndBody(t *testing.T) {
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/process", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RequestIDEchoed(t *testing.T) {
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil))
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestServer_Parse(t *testing.T) {
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/parse", map[string]string{"captions": sampleSRT})

	require.Equal(t, http.StatusOK, rec.Code)
	var segments []caption.Segment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &segments))
	require.Len(t, segments, 2)
	assert.Equal(t, 5.0, segments[1].Start)
	assert.Equal(t, "This is called photosynthesis.", segments[1].Text)
}

func TestServer_ParseStrict_ReportsBadTimestamp(t *testing.T) {
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil))
	captions := "1\nbad --> 00:00:04,000\nHello\n"

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/parse?strict=1", map[string]string{"captions": captions})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body parseErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Line)
	assert.Equal(t, "bad", body.Value)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/parse", map[string]string{"captions": captions})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Match(t *testing.T) {
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil))
	analysis := "SEGMENT: photosynthesis\nKEY POINTS: naming the process\nIMPORTANCE: core term"

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/match", map[string]any{
		"analysis": analysis,
		"captions": sampleSRT,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var keys []segment.KeySegment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keys))
	require.Len(t, keys, 1)
	assert.Equal(t, 5.0, keys[0].Start)
	assert.Equal(t, "photosynthesis", keys[0].Title)
}

func TestServer_Match_UnknownStrategy(t *testing.T) {
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil))
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/match", map[string]any{
		"analysis": "SEGMENT: x",
		"strategy": "telepathy",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateJob_Dedupes(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := NewServer(&fakeProcessor{}, queue)
	body := map[string]any{
		"video_url": "https://youtu.be/D1Ymc311XS8",
		"captions":  sampleSRT,
	}

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/jobs", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var first struct {
		Created bool            `json:"created"`
		Job     jobs.ProcessJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.True(t, first.Created)
	assert.Equal(t, service.SourceManual, first.Job.Source)
	assert.Equal(t, "D1Ymc311XS8", first.Job.Payload.VideoID)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/jobs", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":false`)
	assert.Len(t, queue.List(), 1)
}

func TestServer_CreateJob_Validation(t *testing.T) {
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/jobs", map[string]any{"video_url": "https://youtu.be/D1Ymc311XS8"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/jobs", map[string]any{"video_url": "nope", "captions": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_JobDetailRoutes(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	job, _ := queue.Enqueue(jobs.EnqueueRequest{Source: service.SourceManual, DedupeKey: "k"})
	keys := &fakeKeyStore{keys: map[string][]segment.KeySegment{
		job.ID: {{Start: 5, End: 9, Title: "photosynthesis", Text: "This is called photosynthesis."}},
	}}
	srv := NewServer(&fakeProcessor{}, queue, WithKeySegmentStore(keys))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), job.ID)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs/"+job.ID+"/key_segments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "photosynthesis")

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs/"+job.ID+"/segments.srt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "00:00:05,000 --> 00:00:09,000")

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs/job-999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs/"+job.ID+"/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Library(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lesson.srt"), []byte(sampleSRT), 0o644))
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil), WithLibrary(library.NewScanner(dir)))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/library", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []library.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "lesson", entries[0].Name)
	assert.False(t, entries[0].HasQuiz)
}

func TestServer_ScanAndSchedule(t *testing.T) {
	sched := &fakeScheduler{created: 3, status: service.Status{Enabled: true, CaptionDir: "/captions"}}
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil), WithScheduler(sched))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/scan", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":3`)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/captions")
}

func TestServer_UnconfiguredOptionalRoutes(t *testing.T) {
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil))
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/library"},
		{http.MethodPost, "/api/scan"},
		{http.MethodGet, "/api/schedule"},
		{http.MethodGet, "/api/settings"},
	} {
		rec := doJSON(t, srv.Handler(), tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotImplemented, rec.Code, tc.path)
	}
}

func validSettings() config.RuntimeSettings {
	return config.RuntimeSettings{
		LLMAPIURL:    "https://api.groq.com/openai/v1",
		LLMAPIKey:    "key",
		LLMModel:     "llama-3.3-70b-versatile",
		CronExpr:     "0 * * * *",
		GradeLevel:   2,
		NumQuestions: 3,
	}
}

func TestServer_Settings(t *testing.T) {
	store := &fakeSettingsStore{current: validSettings()}
	var applied config.RuntimeSettings
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil),
		WithRuntimeSettingsStore(store),
		WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
			applied = next
			return nil
		}),
	)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "llama-3.3-70b-versatile")

	next := store.current
	next.GradeLevel = 5
	next.MatchStrategy = "whole_word"
	rec = doJSON(t, srv.Handler(), http.MethodPut, "/api/settings", next)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, applied.GradeLevel)
	assert.Equal(t, 5, store.current.GradeLevel)
}

func TestServer_Settings_RejectsInvalid(t *testing.T) {
	store := &fakeSettingsStore{}
	srv := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil), WithRuntimeSettingsStore(store))

	bad := validSettings()
	bad.CronExpr = "not a cron"
	rec := doJSON(t, srv.Handler(), http.MethodPut, "/api/settings", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.updateErr = errors.New("disk full")
	rec = doJSON(t, srv.Handler(), http.MethodPut, "/api/settings", validSettings())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_JobSocket_PushesSnapshot(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	queue.Enqueue(jobs.EnqueueRequest{Source: service.SourceManual, DedupeKey: "k"})
	srv := NewServer(&fakeProcessor{}, queue, WithStreamInterval(20*time.Millisecond))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/jobs/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var got []jobs.ProcessJob
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	require.Len(t, got, 1)
	assert.Equal(t, jobs.StatusPending, got[0].Status)
}

func TestServer_ListJobs_StatusFilter(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	queue.Enqueue(jobs.EnqueueRequest{Source: service.SourceManual, DedupeKey: "a"})
	srv := NewServer(&fakeProcessor{}, queue)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/jobs?status=failed,success", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServer_JobStream_SendsEvent(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	queue.Enqueue(jobs.EnqueueRequest{Source: service.SourceManual, DedupeKey: "a"})
	srv := NewServer(&fakeProcessor{}, queue, WithStreamInterval(20*time.Millisecond))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/jobs/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)
	event, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: jobs\n", event)
	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data, "data: ["))
	assert.Contains(t, data, `"job-1"`)
}

type countingGenerator struct {
	calls int
}

func (g *countingGenerator) IdentifyKeySegments(_ context.Context, segments []caption.Segment) ([]segment.KeySegment, error) {
	g.calls++
	return segment.Match("SEGMENT: photosynthesis", segments), nil
}

func (g *countingGenerator) GenerateQuiz(_ context.Context, keys []segment.KeySegment, _, _ int) ([]quiz.Item, error) {
	items := make([]quiz.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, quiz.Item{Timestamp: k.Start, Question: "Q?", Answer: k.Text})
	}
	return items, nil
}

func newCaptionProcessor(t *testing.T, captionDir string, gen *countingGenerator) *service.Processor {
	t.Helper()
	cfg := config.Config{Quiz: config.QuizConfig{GradeLevel: 2, NumQuestions: 3, CaptionDir: captionDir}}
	p, err := service.NewProcessor(cfg, service.WithGeneratorFactory(func(config.Config) (service.QuizGenerator, error) {
		return gen, nil
	}))
	require.NoError(t, err)
	return p
}

func TestServer_Process_RejectsCaptionFileOutsideDir(t *testing.T) {
	captionDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(captionDir, "lesson.srt"), []byte(sampleSRT), 0o644))
	secret := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("photosynthesis password=hunter2"), 0o644))
	missing := filepath.Join(t.TempDir(), "missing.srt")

	gen := &countingGenerator{}
	srv := NewServer(newCaptionProcessor(t, captionDir, gen), jobs.NewQueue(1, nil))

	for _, path := range []string{secret, missing, "../secret.txt"} {
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/process", map[string]any{"caption_file": path})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "hunter2")
	}
	assert.Equal(t, 0, gen.calls)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/process", map[string]any{"caption_file": "lesson.srt"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This is called photosynthesis.")
	assert.Equal(t, 1, gen.calls)
}

func TestServer_Process_RejectsCaptionFileWithoutCaptionDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lesson.srt")
	require.NoError(t, os.WriteFile(path, []byte(sampleSRT), 0o644))

	gen := &countingGenerator{}
	srv := NewServer(newCaptionProcessor(t, "", gen), jobs.NewQueue(1, nil))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/process", map[string]any{"caption_file": path})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, gen.calls)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/process", map[string]any{"captions": sampleSRT})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CreateJob_CaptionFileMustBeInLibrary(t *testing.T) {
	captionDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(captionDir, "lesson.srt"), []byte(sampleSRT), 0o644))
	outside := filepath.Join(t.TempDir(), "other.srt")

	queue := jobs.NewQueue(1, nil)
	srv := NewServer(&fakeProcessor{}, queue, WithLibrary(library.NewScanner(captionDir)))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/jobs", map[string]any{"caption_file": outside})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/jobs", map[string]any{"caption_file": "lesson.srt"})
	require.Equal(t, http.StatusCreated, rec.Code)
	list := queue.List()
	require.Len(t, list, 1)
	assert.Equal(t, filepath.Join(captionDir, "lesson.srt"), list[0].Payload.CaptionFile)

	noLibrary := NewServer(&fakeProcessor{}, jobs.NewQueue(1, nil))
	rec = doJSON(t, noLibrary.Handler(), http.MethodPost, "/api/jobs", map[string]any{"caption_file": "lesson.srt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
